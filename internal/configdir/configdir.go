package configdir

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDir = "/etc/idlepower"
	defaultStateDir  = "/var/lib/idlepower"
)

// ConfigDir resolves the configuration directory respecting overrides
func ConfigDir() string {
	return fromEnv("IDLEPOWER_CONFIG_DIR", defaultConfigDir)
}

// StateDir resolves the state directory respecting overrides
func StateDir() string {
	return fromEnv("IDLEPOWER_STATE_DIR", defaultStateDir)
}

func fromEnv(key, fallback string) string {
	if env := os.Getenv(key); env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
		return env
	}
	return fallback
}
