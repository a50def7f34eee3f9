package idle

import (
	"context"
	"time"

	"idlepower/internal/guard"
	"idlepower/internal/logging"
	"idlepower/internal/usbmon"
)

// Machine is the ACTIVE/IDLE state machine. It is not safe for concurrent
// use: a single goroutine owns it and feeds it activity, ticks and resets.
type Machine struct {
	cfg    Config
	util   UtilizationSource
	guard  guard.Guard
	logger *logging.Logger
	now    func() time.Time

	state     State
	holdUntil time.Time

	evaluations    int
	lastGating     []string
	guardReason    string
	cpuMean        float64
	cpuMeanOK      bool
	lastTransition *Transition
}

// Option customizes a Machine
type Option func(*Machine)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a machine in ACTIVE with the idle timer starting now.
// util may be nil when the CPU criterion is disabled; g may be nil.
func NewMachine(cfg Config, util UtilizationSource, g guard.Guard, logger *logging.Logger, opts ...Option) *Machine {
	if cfg.StatusEvery <= 0 {
		cfg.StatusEvery = DefaultStatusEvery
	}

	m := &Machine{
		cfg:    cfg,
		util:   util,
		guard:  g,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	start := m.now()
	m.state = State{
		Phase:          PhaseActive,
		LastActivityAt: start,
		EnteredPhaseAt: start,
	}
	return m
}

// State returns a copy of the current state
func (m *Machine) State() State {
	return m.state
}

// ObserveActivity records a USB event. While IDLE it returns the
// transition back to ACTIVE.
func (m *Machine) ObserveActivity(ev usbmon.ActivityEvent) (Transition, bool) {
	at := ev.Timestamp
	if at.IsZero() {
		at = m.now()
	}
	idleFor := m.idleFor(at)
	if at.After(m.state.LastActivityAt) {
		m.state.LastActivityAt = at
	}

	if m.state.Phase != PhaseIdle {
		return Transition{}, false
	}

	tr := m.transition(PhaseActive, at, ReasonActivity, idleFor)
	m.logger.Info("idle.activity.resumed", "USB activity detected while idle", map[string]interface{}{
		"bus":    ev.Bus,
		"device": ev.Device,
	})
	return tr, true
}

// Evaluate checks the idle criteria and returns the ACTIVE->IDLE transition
// when all of them hold. Evaluating while IDLE is a no-op.
func (m *Machine) Evaluate(ctx context.Context) (Transition, bool) {
	now := m.now()
	m.evaluations++

	if m.state.Phase == PhaseIdle {
		m.maybeLogStatus(now)
		return Transition{}, false
	}

	gating := make([]string, 0, 3)
	idleFor := m.idleFor(now)

	if now.Before(m.holdUntil) {
		gating = append(gating, GatingReasonResumeGrace)
	}
	if idleFor < m.cfg.MinIdle {
		gating = append(gating, GatingReasonBelowTimeout)
	}

	if m.cfg.CPUEnabled {
		m.cpuMeanOK = false
		if m.util != nil {
			m.cpuMean, m.cpuMeanOK = m.util.CurrentMean()
		}
		switch {
		case !m.cpuMeanOK:
			gating = append(gating, GatingReasonWarmingUp)
		case m.cpuMean*100 >= m.cfg.CPUThresholdPct:
			gating = append(gating, GatingReasonHighCPU)
		}
	}

	// The guard is only consulted once everything else allows IDLE.
	m.guardReason = ""
	if len(gating) == 0 && m.guard != nil {
		active, reason, err := m.guard.Active(ctx)
		if err != nil {
			m.logger.Warn("idle.guard.failed", "Guard check failed, treating as protected", map[string]interface{}{
				"error":  err.Error(),
				"reason": reason,
			})
			active = true
			if reason == "" {
				reason = "guard unavailable"
			}
		}
		if active {
			m.guardReason = reason
			gating = append(gating, GatingReasonProtected)
			m.logger.Info("idle.guard.active", "Protected operation active, idle transition held", map[string]interface{}{
				"reason":     reason,
				"idle_for_s": int(idleFor.Seconds()),
			})
		}
	}

	m.lastGating = gating
	m.maybeLogStatus(now)

	if len(gating) > 0 {
		return Transition{}, false
	}

	return m.transition(PhaseIdle, now, ReasonIdleTimeout, idleFor), true
}

// Reset forces ACTIVE, restarts the idle timer and assumes activity until
// hold has elapsed. It returns a transition only when the machine was IDLE.
func (m *Machine) Reset(reason string, hold time.Duration) (Transition, bool) {
	now := m.now()
	idleFor := m.idleFor(now)
	m.state.LastActivityAt = now
	if hold > 0 {
		m.holdUntil = now.Add(hold)
	} else {
		m.holdUntil = time.Time{}
	}

	m.logger.Info("idle.reset", "Idle timer reset", map[string]interface{}{
		"reason": reason,
		"hold_s": int(hold.Seconds()),
	})

	if m.state.Phase != PhaseIdle {
		return Transition{}, false
	}
	return m.transition(PhaseActive, now, reason, idleFor), true
}

// Snapshot returns a persisted view of the machine
func (m *Machine) Snapshot() Snapshot {
	now := m.now()
	snap := Snapshot{
		Phase:            m.state.Phase,
		LastActivityAt:   m.state.LastActivityAt,
		EnteredPhaseAt:   m.state.EnteredPhaseAt,
		IdleForSeconds:   int(m.idleFor(now).Seconds()),
		ThresholdSeconds: int(m.cfg.MinIdle.Seconds()),
		CPUEnabled:       m.cfg.CPUEnabled,
		CPUThresholdPct:  m.cfg.CPUThresholdPct,
		GuardReason:      m.guardReason,
		GatingReasons:    append([]string{}, m.lastGating...),
		LastTransition:   m.lastTransition,
		UpdatedAt:        now,
	}
	if now.Before(m.holdUntil) {
		hold := m.holdUntil
		snap.HoldUntil = &hold
	}
	if m.cfg.CPUEnabled && m.cpuMeanOK {
		pct := m.cpuMean * 100
		snap.CPUMeanPct = &pct
	}
	return snap
}

func (m *Machine) idleFor(now time.Time) time.Duration {
	since := m.state.LastActivityAt
	if m.holdUntil.After(since) {
		since = m.holdUntil
	}
	if now.Before(since) {
		return 0
	}
	return now.Sub(since)
}

func (m *Machine) transition(to Phase, at time.Time, reason string, idleFor time.Duration) Transition {
	tr := Transition{
		From:    m.state.Phase,
		To:      to,
		At:      at,
		Reason:  reason,
		IdleFor: idleFor,
	}

	m.state.Phase = to
	m.state.EnteredPhaseAt = at
	if to == PhaseActive {
		m.lastGating = nil
	}
	m.lastTransition = &tr

	m.logger.Info("idle.phase.changed", "Idle phase changed", map[string]interface{}{
		"from":       string(tr.From),
		"to":         string(tr.To),
		"reason":     tr.Reason,
		"idle_for_s": int(tr.IdleFor.Seconds()),
	})

	return tr
}

func (m *Machine) maybeLogStatus(now time.Time) {
	if m.evaluations%m.cfg.StatusEvery != 0 {
		return
	}

	payload := map[string]interface{}{
		"phase":          string(m.state.Phase),
		"usb_idle_s":     int(now.Sub(m.state.LastActivityAt).Seconds()),
		"threshold_s":    int(m.cfg.MinIdle.Seconds()),
		"gating_reasons": m.lastGating,
	}
	if m.cfg.CPUEnabled {
		payload["cpu_window_full"] = m.cpuMeanOK
		if m.cpuMeanOK {
			payload["cpu_mean_pct"] = m.cpuMean * 100
		}
	}
	if m.guardReason != "" {
		payload["guard"] = m.guardReason
	}

	m.logger.Info("idle.status", "Idle status", payload)
}
