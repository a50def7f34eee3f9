package usbmon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"idlepower/internal/command"
	"idlepower/internal/logging"
)

// LoadModule runs `modprobe usbmon`. Failure is logged and returned; the
// module may be built in, so callers decide whether it is fatal.
func LoadModule(ctx context.Context, runner command.Runner, logger *logging.Logger) error {
	logger.Info("usbmon.module.loading", "Loading usbmon kernel module", nil)
	if _, err := runner.Run(ctx, "modprobe", "usbmon"); err != nil {
		logger.Warn("usbmon.module.failed", "Failed to load usbmon module", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("modprobe usbmon: %w", err)
	}
	logger.Info("usbmon.module.loaded", "usbmon module loaded", nil)
	return nil
}

// Open opens the monitor device for reading with operator-oriented errors.
func Open(path string) (*os.File, error) {
	f, err := os.Open(filepath.Clean(path)) // #nosec G304 -- device path from config
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("usb monitor %s not found (is the usbmon module loaded?): %w", path, err)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("permission denied opening %s (must run as root): %w", path, err)
		default:
			return nil, fmt.Errorf("open usb monitor %s: %w", path, err)
		}
	}
	return f, nil
}
