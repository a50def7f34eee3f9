package suspend

import (
	"context"
	"fmt"

	"idlepower/internal/logging"
)

// PrepareFunc runs right before the host is put to sleep
type PrepareFunc func(ctx context.Context) error

// HostOption configures a SystemctlSuspender
type HostOption func(*[]PrepareFunc)

// WithPrepare adds a step that runs before every host suspend, dry runs
// included. A failing step is logged and the suspend still proceeds.
func WithPrepare(name string, fn PrepareFunc) HostOption {
	return func(steps *[]PrepareFunc) {
		*steps = append(*steps, func(ctx context.Context) error {
			if err := fn(ctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
}

func runPrepare(ctx context.Context, steps []PrepareFunc, logger *logging.Logger) {
	for _, step := range steps {
		if err := step(ctx); err != nil {
			logger.Warn("suspend.host.prepare_failed", "Host preparation step failed, suspending anyway", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}
