package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the demo configuration. Flags override file values.
type Config struct {
	Output string   `toml:"output"`
	Width  int      `toml:"width"`
	Height int      `toml:"height"`
	Demos  []string `toml:"demos"`
	Arena  uint64   `toml:"arena"`
	Log    string   `toml:"log"`
}

var allDemos = []string{"triangle", "instancing", "feedback"}

func defaultConfig() Config {
	return Config{
		Output: ".",
		Width:  256,
		Height: 256,
		Demos:  allDemos,
		Arena:  1 << 20,
		Log:    "info",
	}
}

// loadConfig reads path over the defaults. An empty path yields the
// defaults. Unknown keys are rejected.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", c.Width, c.Height)
	}
	for _, d := range c.Demos {
		if !contains(allDemos, d) {
			return fmt.Errorf("unknown demo %q (have %s)", d, strings.Join(allDemos, ", "))
		}
	}
	return nil
}

func (c Config) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
