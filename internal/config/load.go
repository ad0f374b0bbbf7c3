package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// EnvOverrider applies environment overrides after the file is decoded.
type EnvOverrider interface {
	ApplyEnv()
}

// Load reads a YAML file into target, expanding ${ENV} references first, then applies
// environment overrides and validates it.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", filename, err)
	}
	return finish(target)
}

// LoadIfExists is Load for an optional file. A missing file leaves target as it is,
// still with overrides applied and validated.
func LoadIfExists[T any](filename string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return finish(target)
	}
	return Load(filename, target)
}

func finish(target any) error {
	if e, ok := target.(EnvOverrider); ok {
		e.ApplyEnv()
	}
	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// LoadApp builds the application config: defaults, then the file when it exists, then
// credential overrides from the environment.
func LoadApp(filename string) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := LoadIfExists(filename, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
