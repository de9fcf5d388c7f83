package device

import (
	"fmt"
	"sort"
	"sync"
)

// Registered device names.
const (
	NameNative = "native"
	NameSoft   = "soft"
)

// Factory creates a new, uninitialized device.
type Factory func() Device

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for Default (first available wins).
	// Native GPU first, software reference as fallback.
	priority = []string{NameNative, NameSoft}
)

// Register registers a device factory under name.
// This is typically called from init() functions in device packages.
// A factory already registered under the same name is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a device from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered device names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a device with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Get returns a new device instance by name.
func Get(name string) (Device, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrNotFound, name, Available())
	}
	d := factory()
	if d == nil {
		return nil, fmt.Errorf("%w: %q factory returned nil", ErrNotFound, name)
	}
	return d, nil
}

// Default returns the best available device based on priority.
// Returns nil if no devices are registered.
func Default() Device {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range priority {
		if factory, ok := factories[name]; ok {
			if d := factory(); d != nil {
				return d
			}
		}
	}

	// Fallback: first registered name in sorted order, for determinism.
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if d := factories[name](); d != nil {
			return d
		}
	}
	return nil
}

// Fallback returns the software device if registered and name is not
// already the software device. It is used after a failed Init.
func Fallback(name string) Device {
	if name == NameSoft {
		return nil
	}
	d, err := Get(NameSoft)
	if err != nil {
		return nil
	}
	return d
}
