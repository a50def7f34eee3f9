//go:build linux

package suspend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"idlepower/internal/command"
	"idlepower/internal/logging"
)

// SystemctlSuspender suspends the host through systemd
type SystemctlSuspender struct {
	runner command.Runner
	logger *logging.Logger
	dryRun bool
	before []PrepareFunc
}

// NewSystemctlSuspender creates a host suspender. In dry-run mode the
// call is logged but nothing is executed.
func NewSystemctlSuspender(runner command.Runner, logger *logging.Logger, dryRun bool, opts ...HostOption) *SystemctlSuspender {
	s := &SystemctlSuspender{runner: runner, logger: logger, dryRun: dryRun}
	for _, opt := range opts {
		opt(&s.before)
	}
	return s
}

// SuspendHost runs `systemctl suspend`. systemd returns once the sleep
// job is queued, so the caller sees resume through the wake detector.
func (s *SystemctlSuspender) SuspendHost(ctx context.Context) error {
	runPrepare(ctx, s.before, s.logger)

	if s.dryRun {
		s.logger.Info("suspend.host.dry_run", "Dry-run mode: would suspend host now", nil)
		return nil
	}

	start := time.Now()
	if _, err := s.runner.Run(ctx, "systemctl", "suspend"); err != nil {
		return fmt.Errorf("execute suspend: %w", err)
	}

	s.logger.Info("suspend.host.issued", "System suspend command executed", map[string]interface{}{
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// CheckCanSuspend asks systemd whether suspend is available on this host
func (s *SystemctlSuspender) CheckCanSuspend(ctx context.Context) error {
	out, err := s.runner.Run(ctx, "systemctl", "can-suspend")
	answer := strings.TrimSpace(string(out))
	if err != nil {
		return fmt.Errorf("host cannot suspend: %w", err)
	}
	if answer != "" && answer != "yes" {
		return fmt.Errorf("host cannot suspend: systemd reports %q", answer)
	}
	return nil
}
