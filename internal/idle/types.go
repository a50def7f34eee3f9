// Package idle implements the ACTIVE/IDLE state machine that decides when
// the host may be suspended.
package idle

import (
	"time"
)

// Phase is the machine's current phase
type Phase string

// Phases
const (
	PhaseActive Phase = "ACTIVE"
	PhaseIdle   Phase = "IDLE"
)

// Transition reasons
const (
	ReasonIdleTimeout = "idle_timeout"
	ReasonActivity    = "usb_activity"
	ReasonResume      = "resume"
	ReasonPlanFailed  = "plan_failed"
	ReasonPlanDone    = "plan_completed"
)

// Gating reasons keep the machine ACTIVE while the idle timer runs
const (
	GatingReasonBelowTimeout = "below_timeout"
	GatingReasonWarmingUp    = "warming_up"
	GatingReasonHighCPU      = "high_cpu"
	GatingReasonProtected    = "protected"
	GatingReasonResumeGrace  = "resume_grace"
)

// DefaultStatusEvery is how many evaluations pass between status lines
const DefaultStatusEvery = 10

// Config holds the thresholds the machine evaluates
type Config struct {
	// MinIdle is how long no activity must be seen before IDLE
	MinIdle time.Duration

	// CPUEnabled adds the utilization criterion
	CPUEnabled bool

	// CPUThresholdPct is the window mean (%) that must not be reached
	CPUThresholdPct float64

	// StatusEvery logs a status line every N evaluations (0 = default)
	StatusEvery int
}

// State is the machine's single mutable record
type State struct {
	Phase          Phase     `json:"phase"`
	LastActivityAt time.Time `json:"last_activity_at"`
	EnteredPhaseAt time.Time `json:"entered_phase_at"`
}

// Transition describes one phase change
type Transition struct {
	From    Phase         `json:"from"`
	To      Phase         `json:"to"`
	At      time.Time     `json:"at"`
	Reason  string        `json:"reason"`
	IdleFor time.Duration `json:"idle_for_ns"`
}

// Snapshot is the persisted, read-only view of the machine consumed by
// `idlepower status` and `idlepower watch`
type Snapshot struct {
	Phase            Phase       `json:"phase"`
	LastActivityAt   time.Time   `json:"last_activity_at"`
	EnteredPhaseAt   time.Time   `json:"entered_phase_at"`
	IdleForSeconds   int         `json:"idle_for_s"`
	ThresholdSeconds int         `json:"threshold_s"`
	HoldUntil        *time.Time  `json:"hold_until,omitempty"`
	CPUEnabled       bool        `json:"cpu_enabled"`
	CPUMeanPct       *float64    `json:"cpu_mean_pct,omitempty"`
	CPUThresholdPct  float64     `json:"cpu_threshold_pct"`
	GuardReason      string      `json:"guard_reason,omitempty"`
	GatingReasons    []string    `json:"gating_reasons"`
	LastTransition   *Transition `json:"last_transition,omitempty"`
	PlanInProgress   bool        `json:"plan_in_progress"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// UtilizationSource provides the rolling utilization mean (0..1)
type UtilizationSource interface {
	CurrentMean() (mean float64, ok bool)
}
