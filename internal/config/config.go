package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"idlepower/internal/configdir"
)

const (
	systemConfigFile = "config.yaml"
	// EnvPrefix prefixes every environment override, e.g. IDLEPOWER_IDLE_MIN_IDLE_MINUTES.
	EnvPrefix = "IDLEPOWER"
)

// Load loads configuration from the system file and the environment
// Priority: defaults < system config < environment
func Load() (Config, error) {
	cfg := DefaultConfig()

	if err := mergeConfigFile(&cfg, SystemConfigPath()); err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to load system config: %w", err)
		}
		// System config not existing is OK, continue with defaults
	}

	return finish(cfg)
}

// LoadFrom loads configuration from a specific file path
// Priority: defaults < file < environment
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := mergeConfigFile(&cfg, path); err != nil {
		return cfg, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	return finish(cfg)
}

func finish(cfg Config) (Config, error) {
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}

	if validationErrors := cfg.Validate(); len(validationErrors) > 0 {
		return cfg, fmt.Errorf("config.validation.error: %v", formatValidationErrors(validationErrors))
	}

	return cfg, nil
}

// ApplyEnv overlays IDLEPOWER_* environment variables onto cfg. Unset
// variables leave the current value untouched.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}

// mergeConfigFile decodes a YAML file on top of cfg. Keys absent from the
// file keep their current values, explicit false and zero values win.
func mergeConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path is operator supplied
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// formatValidationErrors formats validation errors for display
func formatValidationErrors(errors []ValidationError) string {
	if len(errors) == 0 {
		return ""
	}
	if len(errors) == 1 {
		return errors[0].Error()
	}
	result := fmt.Sprintf("%d validation errors:\n", len(errors))
	for _, err := range errors {
		result += "  - " + err.Error() + "\n"
	}
	return result
}

// SystemConfigPath returns the path to the system configuration file
func SystemConfigPath() string {
	return filepath.Join(configdir.ConfigDir(), systemConfigFile)
}
