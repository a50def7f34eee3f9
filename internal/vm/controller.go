// Package vm controls the guests that must be suspended before the host.
package vm

import (
	"context"
	"fmt"
	"time"

	"idlepower/internal/command"
	"idlepower/internal/config"
	"idlepower/internal/logging"
)

// commandTimeout bounds a single management call (qm, QMP round trip)
const commandTimeout = 30 * time.Second

// Controller enumerates, suspends and observes guests
type Controller interface {
	// ListRunning returns the ids of guests currently running
	ListRunning(ctx context.Context) ([]string, error)
	// Suspend asks the guest to suspend; confirmation is observed via IsRunning
	Suspend(ctx context.Context, id string) error
	// IsRunning reports whether the guest still runs
	IsRunning(ctx context.Context, id string) (bool, error)
}

// New builds the controller selected by cfg.Backend
func New(cfg config.VMConfig, runner command.Runner, logger *logging.Logger) (Controller, error) {
	switch cfg.Backend {
	case config.BackendProxmox:
		return NewProxmoxController(runner, logger), nil
	case config.BackendQMP:
		return NewQMPController(cfg.QMPSocketGlob, logger), nil
	case config.BackendNone, "":
		return NoneController{}, nil
	default:
		return nil, fmt.Errorf("unknown vm backend %q", cfg.Backend)
	}
}

// NoneController manages no guests; plans contain only the HOST unit
type NoneController struct{}

// ListRunning implements Controller
func (NoneController) ListRunning(context.Context) ([]string, error) { return nil, nil }

// Suspend implements Controller
func (NoneController) Suspend(_ context.Context, id string) error {
	return fmt.Errorf("no vm backend configured, cannot suspend %s", id)
}

// IsRunning implements Controller
func (NoneController) IsRunning(context.Context, string) (bool, error) { return false, nil }
