package suspend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"idlepower/internal/logging"
	"idlepower/internal/vm"
)

// Config controls plan execution
type Config struct {
	UnitTimeout  time.Duration
	PollInterval time.Duration
	HostEnabled  bool
}

// Orchestrator runs suspend plans, at most one at a time
type Orchestrator struct {
	cfg     Config
	vms     vm.Controller
	host    HostSuspender
	logger  *logging.Logger
	now     func() time.Time
	history Recorder

	mu         sync.Mutex
	running    bool
	hostIssued bool
	cancel     context.CancelCauseFunc
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock overrides the time source used for unit timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithHistory records every finished plan
func WithHistory(r Recorder) Option {
	return func(o *Orchestrator) { o.history = r }
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(cfg Config, vms vm.Controller, host HostSuspender, logger *logging.Logger, opts ...Option) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	o := &Orchestrator{
		cfg:    cfg,
		vms:    vms,
		host:   host,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// InProgress reports whether a plan is executing
func (o *Orchestrator) InProgress() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Cancel stops the running plan before its next step. It returns false
// when no plan runs or the host step has already been issued.
func (o *Orchestrator) Cancel(reason string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running || o.hostIssued || o.cancel == nil {
		return false
	}
	o.cancel(fmt.Errorf("%w: %s", ErrPlanCancelled, reason))
	return true
}

// Execute builds a plan from the guests running now and executes it.
// The returned plan is non-nil unless ErrPlanInProgress is returned.
func (o *Orchestrator) Execute(ctx context.Context) (*Plan, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrPlanInProgress
	}
	planCtx, cancel := context.WithCancelCause(ctx)
	o.running = true
	o.hostIssued = false
	o.cancel = cancel
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.cancel = nil
		o.mu.Unlock()
		cancel(nil)
	}()

	plan, err := o.execute(planCtx)
	plan.FinishedAt = o.now()

	fields := map[string]interface{}{
		"plan_id":  plan.ID,
		"outcome":  plan.Outcome,
		"units":    len(plan.Units),
		"duration": plan.FinishedAt.Sub(plan.CreatedAt).String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		o.logger.Warn("suspend.plan.finished", "Suspend plan did not complete", fields)
	} else {
		o.logger.Info("suspend.plan.finished", "Suspend plan completed", fields)
	}

	if o.history != nil {
		if recErr := o.history.Record(plan); recErr != nil {
			o.logger.Warn("suspend.history.write_failed", "Failed to record suspend plan", map[string]interface{}{
				"plan_id": plan.ID,
				"error":   recErr.Error(),
			})
		}
	}
	return plan, err
}

func (o *Orchestrator) execute(ctx context.Context) (*Plan, error) {
	ids, err := o.vms.ListRunning(ctx)
	if err != nil {
		plan := NewPlan(nil, o.now())
		plan.Host().Status = StatusSkipped
		plan.Outcome = OutcomeFailed
		return plan, fmt.Errorf("list running guests: %w", err)
	}

	plan := NewPlan(ids, o.now())
	o.logger.Info("suspend.plan.created", "Suspend plan created", map[string]interface{}{
		"plan_id": plan.ID,
		"vms":     ids,
		"host":    o.cfg.HostEnabled,
	})

	for i := 0; i < plan.VMCount(); i++ {
		if cause := cancelled(ctx); cause != nil {
			return o.abort(plan, i, OutcomeCancelled), cause
		}

		unit := &plan.Units[i]
		if err := o.suspendVM(ctx, unit); err != nil {
			o.fail(unit, err)
			if cause := cancelled(ctx); cause != nil {
				return o.abort(plan, i+1, OutcomeCancelled), cause
			}
			return o.abort(plan, i+1, OutcomeFailed), err
		}
	}

	return o.suspendHost(ctx, plan)
}

func (o *Orchestrator) suspendVM(ctx context.Context, unit *Unit) error {
	o.start(unit)

	unitCtx, cancel := context.WithTimeoutCause(ctx, o.cfg.UnitTimeout, ErrUnitTimeout)
	defer cancel()

	if err := o.vms.Suspend(unitCtx, unit.ID); err != nil {
		if cause := context.Cause(unitCtx); cause != nil {
			return cause
		}
		return fmt.Errorf("suspend vm %s: %w", unit.ID, err)
	}

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		running, err := o.vms.IsRunning(unitCtx, unit.ID)
		switch {
		case err != nil && unitCtx.Err() == nil:
			o.logger.Debug("suspend.unit.poll_error", "Status query failed, retrying", map[string]interface{}{
				"vm":    unit.ID,
				"error": err.Error(),
			})
		case err == nil && !running:
			o.confirm(unit)
			return nil
		}

		select {
		case <-unitCtx.Done():
			return fmt.Errorf("vm %s: %w", unit.ID, context.Cause(unitCtx))
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) suspendHost(ctx context.Context, plan *Plan) (*Plan, error) {
	host := plan.Host()

	if !o.cfg.HostEnabled {
		host.Status = StatusSkipped
		o.logger.Info("suspend.unit.skipped", "Host suspend disabled", map[string]interface{}{
			"plan_id": plan.ID,
			"unit":    host.ID,
		})
		plan.Outcome = OutcomeCompleted
		return plan, nil
	}

	if !plan.AllVMsConfirmed() {
		return o.abort(plan, len(plan.Units)-1, OutcomeFailed), errors.New("host suspend requires every guest confirmed")
	}

	o.mu.Lock()
	if cause := cancelled(ctx); cause != nil {
		o.mu.Unlock()
		return o.abort(plan, len(plan.Units)-1, OutcomeCancelled), cause
	}
	o.hostIssued = true
	o.mu.Unlock()

	o.start(host)
	// an issued host suspend cannot be taken back
	if err := o.host.SuspendHost(context.WithoutCancel(ctx)); err != nil {
		o.fail(host, err)
		plan.Outcome = OutcomeFailed
		return plan, fmt.Errorf("suspend host: %w", err)
	}
	o.confirm(host)
	plan.Outcome = OutcomeCompleted
	return plan, nil
}

func (o *Orchestrator) start(unit *Unit) {
	unit.Status = StatusInProgress
	unit.StartedAt = o.now()
	o.logger.Info("suspend.unit.started", "Suspending unit", map[string]interface{}{
		"kind": string(unit.Kind),
		"unit": unit.ID,
	})
}

func (o *Orchestrator) confirm(unit *Unit) {
	unit.Status = StatusConfirmed
	unit.FinishedAt = o.now()
	o.logger.Info("suspend.unit.confirmed", "Unit suspended", map[string]interface{}{
		"kind":     string(unit.Kind),
		"unit":     unit.ID,
		"duration": unit.FinishedAt.Sub(unit.StartedAt).String(),
	})
}

func (o *Orchestrator) fail(unit *Unit, err error) {
	unit.Status = StatusFailed
	unit.FinishedAt = o.now()
	unit.Error = err.Error()
	o.logger.Error("suspend.unit.failed", "Unit failed to suspend", map[string]interface{}{
		"kind":  string(unit.Kind),
		"unit":  unit.ID,
		"error": unit.Error,
	})
}

func (o *Orchestrator) abort(plan *Plan, from int, outcome string) *Plan {
	for i := from; i < len(plan.Units); i++ {
		if plan.Units[i].Status == StatusPending {
			o.logger.Info("suspend.unit.skipped", "Unit skipped", map[string]interface{}{
				"plan_id": plan.ID,
				"kind":    string(plan.Units[i].Kind),
				"unit":    plan.Units[i].ID,
			})
		}
	}
	plan.skipFrom(from)
	plan.Outcome = outcome
	return plan
}

// cancelled returns a non-nil error wrapping ErrPlanCancelled once the
// plan context has been cancelled.
func cancelled(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrPlanCancelled) {
		return cause
	}
	return fmt.Errorf("%w: %v", ErrPlanCancelled, cause)
}
