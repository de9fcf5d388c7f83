package device

import (
	"errors"
	"fmt"
)

// Device errors.
var (
	// ErrNotInitialized is returned when a method is called before Init.
	ErrNotInitialized = errors.New("device: not initialized")

	// ErrUnknownID is returned for IDs the device never issued or already
	// destroyed.
	ErrUnknownID = errors.New("device: unknown resource id")

	// ErrUnsupported is returned for features the device cannot provide.
	ErrUnsupported = errors.New("device: unsupported")

	// ErrOutOfMemory is returned when an allocation exceeds device limits.
	ErrOutOfMemory = errors.New("device: out of memory")

	// ErrInvalidArgument is returned for malformed descriptors.
	ErrInvalidArgument = errors.New("device: invalid argument")

	// ErrCompile marks shader compilation failures.
	ErrCompile = errors.New("device: shader compilation failed")

	// ErrLink marks pipeline link failures.
	ErrLink = errors.New("device: pipeline link failed")

	// ErrNotFound is returned by Get for unregistered names.
	ErrNotFound = errors.New("device: not registered")
)

// ShaderError carries the device diagnostic log of a failed compile or link.
type ShaderError struct {
	Stage Stage
	Label string
	Log   string
	Err   error // ErrCompile or ErrLink
}

func (e *ShaderError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%v: %s %q: %s", e.Err, e.Stage, e.Label, e.Log)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Log)
}

func (e *ShaderError) Unwrap() error { return e.Err }

// CompileErrorf builds a compile ShaderError with a formatted log.
func CompileErrorf(stage Stage, label, format string, args ...any) *ShaderError {
	return &ShaderError{Stage: stage, Label: label, Log: fmt.Sprintf(format, args...), Err: ErrCompile}
}

// LinkErrorf builds a link ShaderError with a formatted log.
func LinkErrorf(format string, args ...any) *ShaderError {
	return &ShaderError{Stage: StageVertex, Log: fmt.Sprintf(format, args...), Err: ErrLink}
}
