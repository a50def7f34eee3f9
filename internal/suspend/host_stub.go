//go:build !linux

package suspend

import (
	"context"
	"fmt"

	"idlepower/internal/command"
	"idlepower/internal/logging"
)

// SystemctlSuspender is unavailable outside Linux
type SystemctlSuspender struct {
	logger *logging.Logger
	dryRun bool
	before []PrepareFunc
}

// NewSystemctlSuspender creates a host suspender (stub for non-Linux)
func NewSystemctlSuspender(_ command.Runner, logger *logging.Logger, dryRun bool, opts ...HostOption) *SystemctlSuspender {
	s := &SystemctlSuspender{logger: logger, dryRun: dryRun}
	for _, opt := range opts {
		opt(&s.before)
	}
	return s
}

// SuspendHost is only supported on Linux
func (s *SystemctlSuspender) SuspendHost(ctx context.Context) error {
	runPrepare(ctx, s.before, s.logger)

	if s.dryRun {
		s.logger.Info("suspend.host.dry_run", "Dry-run mode: would suspend host now", nil)
		return nil
	}
	return fmt.Errorf("host suspend only supported on Linux")
}

// CheckCanSuspend is only supported on Linux
func (s *SystemctlSuspender) CheckCanSuspend(context.Context) error {
	return fmt.Errorf("host suspend only supported on Linux")
}
