// Package config holds the pipeline's recognized options (spec.md §6),
// loaded with the precedence CLI flags > YAML file > built-in defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the recognized option set.
type Config struct {
	Verbose        bool     `yaml:"verbose"`
	MipmapSize     int      `yaml:"mipmapSize"`
	SkipSMT        bool     `yaml:"skipSmt"`
	Water          bool     `yaml:"water"`
	ParseResources bool     `yaml:"parseResources"`
	Resources      []string `yaml:"resources"`
	ParseSkybox    bool     `yaml:"parseSkybox"`
}

// Default returns the built-in defaults from spec.md §6.
func Default() Config {
	return Config{
		Verbose:        false,
		MipmapSize:     4,
		SkipSMT:        false,
		Water:          true,
		ParseResources: false,
		Resources:      nil,
		ParseSkybox:    false,
	}
}

var validMipmapSizes = map[int]bool{4: true, 8: true, 16: true, 32: true}

// LoadYAML reads a YAML config file and overlays it onto base, leaving any
// field the file omits at base's value. Callers pass config.Default() as
// base and apply CLI flags on top of the result, per the precedence CLI >
// YAML file > built-in defaults.
func LoadYAML(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("config: read %q: %w", path, err)
	}

	out := base
	if err := yaml.Unmarshal(data, &out); err != nil {
		return base, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return out, nil
}

// Validate rejects a MipmapSize outside the declared {4,8,16,32} set.
func (c Config) Validate() error {
	if !validMipmapSizes[c.MipmapSize] {
		return fmt.Errorf("config: mipmapSize %d must be one of 4, 8, 16, 32", c.MipmapSize)
	}
	return nil
}
