// Package agent runs the idlepower daemon: it owns the idle state machine
// and connects the samplers, the resume detector and the suspend
// orchestrator to it.
package agent

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"idlepower/internal/config"
	"idlepower/internal/guard"
	"idlepower/internal/idle"
	"idlepower/internal/logging"
	"idlepower/internal/metrics"
	"idlepower/internal/suspend"
	"idlepower/internal/usbmon"
	"idlepower/internal/wake"
)

// DefaultWakeInterval is how often the resume detector is polled
const DefaultWakeInterval = 5 * time.Second

// ActivitySource produces USB activity until ctx ends or the source dies
type ActivitySource interface {
	Run(ctx context.Context, out chan<- usbmon.ActivityEvent) error
	Stats() usbmon.Stats
}

// UtilizationSource samples utilization in the background
type UtilizationSource interface {
	Run(ctx context.Context) error
	CurrentMean() (float64, bool)
}

// Planner executes suspend plans
type Planner interface {
	Execute(ctx context.Context) (*suspend.Plan, error)
	Cancel(reason string) bool
	InProgress() bool
}

// ResumeDetector reports host resumes
type ResumeDetector interface {
	Check() (wake.Resume, bool, error)
}

// GovernorSetter switches the CPU scaling governor
type GovernorSetter interface {
	Set(name string) error
}

// Settings are the agent's timing and policy knobs
type Settings struct {
	Idle         idle.Config
	PollInterval time.Duration
	WakeInterval time.Duration
	ResumeGrace  time.Duration

	// StartupGovernor is applied at start and restored when leaving IDLE
	StartupGovernor string
	// IdleGovernor is applied while IDLE; empty leaves the governor alone
	IdleGovernor string
}

// SettingsFromConfig derives Settings from a validated config
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Idle: idle.Config{
			MinIdle:         time.Duration(cfg.Idle.MinIdleMinutes) * time.Minute,
			CPUEnabled:      cfg.CPU.Enabled,
			CPUThresholdPct: cfg.CPU.ThresholdPct,
		},
		PollInterval:    time.Duration(cfg.Idle.PollIntervalSeconds) * time.Second,
		WakeInterval:    DefaultWakeInterval,
		ResumeGrace:     time.Duration(cfg.Host.ResumeGraceMinutes) * time.Minute,
		StartupGovernor: cfg.Governor.Startup,
		IdleGovernor:    cfg.Governor.Idle,
	}
}

// Deps are the collaborators the agent drives. Activity and Planner are
// required; the rest may be nil.
type Deps struct {
	Activity    ActivitySource
	Utilization UtilizationSource
	Guard       guard.Guard
	Planner     Planner
	Wake        ResumeDetector
	Governor    GovernorSetter
	State       *idle.StateManager
	Exporter    *metrics.Exporter
	Clock       func() time.Time
}

type planResult struct {
	plan *suspend.Plan
	err  error
}

// Agent is the daemon's event loop
type Agent struct {
	settings Settings
	deps     Deps
	logger   *logging.Logger
	machine  *idle.Machine
	results  chan planResult
	start    time.Time
}

// New creates an agent. The machine starts ACTIVE with the idle timer
// running from now.
func New(settings Settings, deps Deps, logger *logging.Logger) *Agent {
	if settings.PollInterval <= 0 {
		settings.PollInterval = time.Second
	}
	if settings.WakeInterval <= 0 {
		settings.WakeInterval = DefaultWakeInterval
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	var util idle.UtilizationSource
	if deps.Utilization != nil {
		util = deps.Utilization
	}

	return &Agent{
		settings: settings,
		deps:     deps,
		logger:   logger,
		machine:  idle.NewMachine(settings.Idle, util, deps.Guard, logger, idle.WithClock(deps.Clock)),
		results:  make(chan planResult, 1),
		start:    deps.Clock(),
	}
}

// Machine exposes the state machine for inspection. Only the agent's
// loop may mutate it.
func (a *Agent) Machine() *idle.Machine {
	return a.machine
}

// Run starts every background goroutine and blocks until ctx ends or one
// of them fails. A cancelled ctx is a clean shutdown.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent.started", "Agent service started", map[string]interface{}{
		"pid":            os.Getpid(),
		"poll_interval":  a.settings.PollInterval.String(),
		"min_idle":       a.settings.Idle.MinIdle.String(),
		"cpu_monitoring": a.settings.Idle.CPUEnabled,
	})

	a.setGovernor(a.settings.StartupGovernor)

	g, gctx := errgroup.WithContext(ctx)
	activity := make(chan usbmon.ActivityEvent, 256)

	g.Go(func() error {
		return a.deps.Activity.Run(gctx, activity)
	})
	if a.deps.Utilization != nil {
		g.Go(func() error {
			return a.deps.Utilization.Run(gctx)
		})
	}
	g.Go(func() error {
		return a.loop(gctx, g, activity)
	})

	err := g.Wait()
	uptime := a.deps.Clock().Sub(a.start)
	if err != nil && !(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
		a.logger.Error("agent.failed", "Agent stopped on error", map[string]interface{}{
			"error":          err.Error(),
			"uptime_seconds": uptime.Seconds(),
		})
		return err
	}

	a.logger.Info("agent.stopped", "Agent service stopped", map[string]interface{}{
		"uptime_seconds": uptime.Seconds(),
	})
	return nil
}

func (a *Agent) loop(ctx context.Context, g *errgroup.Group, activity <-chan usbmon.ActivityEvent) error {
	ticker := time.NewTicker(a.settings.PollInterval)
	defer ticker.Stop()

	var wakeC <-chan time.Time
	if a.deps.Wake != nil {
		wakeTicker := time.NewTicker(a.settings.WakeInterval)
		defer wakeTicker.Stop()
		wakeC = wakeTicker.C
		a.checkWake()
	}

	a.publish()

	for {
		select {
		case <-ctx.Done():
			if a.deps.Planner.InProgress() {
				a.deps.Planner.Cancel("shutdown")
			}
			a.publish()
			return ctx.Err()

		case ev := <-activity:
			a.handleActivity(ev)

		case <-ticker.C:
			if a.handleTick(ctx) {
				g.Go(func() error {
					a.runPlan(ctx)
					return nil
				})
			}
			a.publish()

		case <-wakeC:
			a.checkWake()

		case res := <-a.results:
			a.handlePlanResult(res)
			a.publish()
		}
	}
}

// handleActivity feeds one USB event to the machine. Activity is the
// only thing that can leave IDLE early, so no full evaluation runs here.
func (a *Agent) handleActivity(ev usbmon.ActivityEvent) {
	if a.deps.Exporter != nil {
		a.deps.Exporter.ActivityEvents.Inc()
	}

	tr, changed := a.machine.ObserveActivity(ev)
	if a.deps.Planner.Cancel("usb activity") {
		a.logger.Info("agent.plan.cancel_requested", "Activity during suspend plan, cancelling", map[string]interface{}{
			"bus":    ev.Bus,
			"device": ev.Device,
		})
	}
	if changed {
		a.onTransition(tr)
		a.publish()
	}
}

// handleTick evaluates the machine and reports whether a plan should start
func (a *Agent) handleTick(ctx context.Context) bool {
	tr, changed := a.machine.Evaluate(ctx)
	if !changed {
		return false
	}
	a.onTransition(tr)
	return tr.To == idle.PhaseIdle
}

func (a *Agent) runPlan(ctx context.Context) {
	plan, err := a.deps.Planner.Execute(ctx)
	select {
	case a.results <- planResult{plan: plan, err: err}:
	case <-ctx.Done():
	}
}

func (a *Agent) handlePlanResult(res planResult) {
	if errors.Is(res.err, suspend.ErrPlanInProgress) {
		a.logger.Warn("agent.plan.overlap", "Suspend plan already running, new plan not started", nil)
		return
	}

	if res.plan != nil && a.deps.Exporter != nil {
		a.deps.Exporter.Plans.WithLabelValues(res.plan.Outcome).Inc()
		for _, u := range res.plan.Units {
			a.deps.Exporter.Units.WithLabelValues(string(u.Kind), string(u.Status)).Inc()
		}
	}

	var (
		tr      idle.Transition
		changed bool
	)
	switch {
	case res.err == nil:
		tr, changed = a.machine.Reset(idle.ReasonPlanDone, a.settings.ResumeGrace)
	case errors.Is(res.err, suspend.ErrPlanCancelled):
		// activity or resume already moved the machine back to ACTIVE
		return
	default:
		a.logger.Error("agent.plan.failed", "Suspend plan failed, returning to ACTIVE", map[string]interface{}{
			"error": res.err.Error(),
		})
		tr, changed = a.machine.Reset(idle.ReasonPlanFailed, 0)
	}
	if changed {
		a.onTransition(tr)
	}
}

func (a *Agent) checkWake() {
	r, resumed, err := a.deps.Wake.Check()
	if err != nil {
		a.logger.Warn("agent.wake.check_failed", "Resume check failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if !resumed {
		return
	}
	a.handleResume(r)
}

func (a *Agent) handleResume(r wake.Resume) {
	if a.deps.Exporter != nil {
		a.deps.Exporter.Resumes.Inc()
	}
	a.deps.Planner.Cancel("host resumed")

	tr, changed := a.machine.Reset(idle.ReasonResume, a.settings.ResumeGrace)
	a.logger.Info("agent.resume", "Host resumed, assuming activity", map[string]interface{}{
		"slept_seconds": int64(r.Slept.Seconds()),
		"grace":         a.settings.ResumeGrace.String(),
	})
	if changed {
		a.onTransition(tr)
	}
	a.publish()
}

func (a *Agent) onTransition(tr idle.Transition) {
	if a.deps.Exporter != nil {
		a.deps.Exporter.Transitions.WithLabelValues(string(tr.To)).Inc()
	}

	if a.settings.IdleGovernor == "" {
		return
	}
	if tr.To == idle.PhaseIdle {
		a.setGovernor(a.settings.IdleGovernor)
	} else {
		a.setGovernor(a.settings.StartupGovernor)
	}
}

func (a *Agent) setGovernor(name string) {
	if a.deps.Governor == nil || name == "" {
		return
	}
	if err := a.deps.Governor.Set(name); err != nil {
		a.logger.Warn("agent.governor.failed", "Failed to set CPU governor", map[string]interface{}{
			"governor": name,
			"error":    err.Error(),
		})
	}
}

// publish persists the snapshot and refreshes exported series
func (a *Agent) publish() {
	snap := a.machine.Snapshot()
	snap.PlanInProgress = a.deps.Planner.InProgress()

	if a.deps.State != nil {
		if err := a.deps.State.Save(snap); err != nil {
			a.logger.Warn("agent.idle.state_save_failed", "Failed to save idle state", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	exp := a.deps.Exporter
	if exp == nil {
		return
	}
	if snap.Phase == idle.PhaseIdle {
		exp.Phase.Set(1)
	} else {
		exp.Phase.Set(0)
	}
	exp.IdleSeconds.Set(float64(snap.IdleForSeconds))
	if snap.CPUMeanPct != nil {
		exp.CPUMean.Set(*snap.CPUMeanPct / 100)
	}
	exp.SkippedRecords.Set(float64(a.deps.Activity.Stats().Skipped))

	if err := exp.Flush(); err != nil {
		a.logger.Warn("agent.metrics.flush_failed", "Failed to write metrics textfile", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
