// Package config loads the optional `.bmakerc.yaml` project file
// (SPEC_FULL.md §6 "Debug/config file"): a place to check in a shared
// debug-subsystem profile and default parallelism instead of retyping
// `-d`/`-j` on every invocation. It only adjusts CLI defaults before
// the core runs; it is not part of the graph/scheduler core itself.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors the handful of fields a `.bmakerc.yaml` may set.
type Config struct {
	Jobs    int                 `yaml:"jobs"`
	Debug   []string            `yaml:"debug"`
	Profile string              `yaml:"profile"`
	Named   map[string][]string `yaml:"named_debug_masks"`
}

// Load reads path if it exists; a missing file is not an error (the
// config is entirely optional), mirroring the `sinclude`/`-include`
// tolerance spec §4.3 describes for makefiles themselves.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ResolveDebug expands a named debug profile (e.g. "profile: verbose"
// referencing a "named_debug_masks" entry) into its flat subsystem
// list, falling back to Debug verbatim when no profile is set.
func (c *Config) ResolveDebug() []string {
	if c.Profile == "" {
		return c.Debug
	}
	if masks, ok := c.Named[c.Profile]; ok {
		return append(append([]string{}, c.Debug...), masks...)
	}
	return c.Debug
}
