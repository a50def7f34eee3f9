package guard

import (
	"context"
	"fmt"
	"strings"

	"idlepower/internal/command"
	"idlepower/internal/logging"
)

// InhibitorGuard is active while systemd holds a sleep or shutdown inhibitor
type InhibitorGuard struct {
	runner command.Runner
	logger *logging.Logger
}

// NewInhibitorGuard creates a guard backed by systemd-inhibit
func NewInhibitorGuard(runner command.Runner, logger *logging.Logger) *InhibitorGuard {
	return &InhibitorGuard{runner: runner, logger: logger}
}

// Active implements Guard
func (g *InhibitorGuard) Active(ctx context.Context) (bool, string, error) {
	inhibitors, err := g.List(ctx)
	if err != nil {
		return true, "inhibitor check", err
	}
	if len(inhibitors) == 0 {
		return false, "", nil
	}
	return true, "inhibitor " + strings.Join(inhibitors, ","), nil
}

// List returns the names of processes holding sleep/shutdown inhibitors
func (g *InhibitorGuard) List(ctx context.Context) ([]string, error) {
	output, err := g.runner.Run(ctx, "systemd-inhibit", "--list", "--no-pager", "--no-legend")
	if err != nil {
		return nil, fmt.Errorf("list inhibitors: %w", err)
	}

	inhibitors := make([]string, 0)
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		// WHO UID USER PID COMM WHAT WHY MODE
		if !strings.Contains(line, "sleep") && !strings.Contains(line, "shutdown") {
			continue
		}
		// delay-mode inhibitors only postpone suspend
		if strings.HasSuffix(strings.TrimSpace(line), "delay") {
			continue
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			inhibitors = append(inhibitors, fields[0])
		}
	}

	g.logger.Debug("guard.inhibit.checked", "Checked for inhibitors", map[string]interface{}{
		"has_inhibit": len(inhibitors) > 0,
		"inhibitors":  inhibitors,
	})

	return inhibitors, nil
}
