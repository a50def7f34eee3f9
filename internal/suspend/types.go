// Package suspend builds and executes suspend plans: guests first, in
// order, then the host.
package suspend

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPlanInProgress is returned when a plan is requested while another runs
	ErrPlanInProgress = errors.New("suspend plan already in progress")
	// ErrUnitTimeout marks a guest that did not confirm in time
	ErrUnitTimeout = errors.New("suspend unit timed out")
	// ErrPlanCancelled marks a plan stopped by activity or resume
	ErrPlanCancelled = errors.New("suspend plan cancelled")
)

// UnitKind distinguishes guest and host units
type UnitKind string

// Unit kinds
const (
	KindVM   UnitKind = "VM"
	KindHost UnitKind = "HOST"
)

// UnitStatus is a unit's lifecycle state
type UnitStatus string

// Unit statuses
const (
	StatusPending    UnitStatus = "PENDING"
	StatusInProgress UnitStatus = "IN_PROGRESS"
	StatusConfirmed  UnitStatus = "CONFIRMED"
	StatusFailed     UnitStatus = "FAILED"
	StatusSkipped    UnitStatus = "SKIPPED"
)

// Plan outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Unit is one step of a plan
type Unit struct {
	Kind       UnitKind   `json:"kind"`
	ID         string     `json:"id"`
	Status     UnitStatus `json:"status"`
	StartedAt  time.Time  `json:"started_at,omitempty"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Plan is the ordered list of units created for one IDLE transition
type Plan struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Units      []Unit    `json:"units"`
}

// NewPlan creates a plan with one VM unit per id, in ascending order,
// followed by the HOST unit.
func NewPlan(vmIDs []string, now time.Time) *Plan {
	ids := append([]string(nil), vmIDs...)
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })

	units := make([]Unit, 0, len(ids)+1)
	for _, id := range ids {
		units = append(units, Unit{Kind: KindVM, ID: id, Status: StatusPending})
	}
	units = append(units, Unit{Kind: KindHost, ID: "host", Status: StatusPending})

	return &Plan{
		ID:        uuid.New().String(),
		CreatedAt: now,
		Units:     units,
	}
}

// lessID orders numeric guest ids numerically and everything else lexically
func lessID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

// Host returns the HOST unit
func (p *Plan) Host() *Unit {
	return &p.Units[len(p.Units)-1]
}

// VMCount returns the number of guest units
func (p *Plan) VMCount() int {
	return len(p.Units) - 1
}

// AllVMsConfirmed reports whether every guest unit is CONFIRMED
func (p *Plan) AllVMsConfirmed() bool {
	for _, u := range p.Units[:p.VMCount()] {
		if u.Status != StatusConfirmed {
			return false
		}
	}
	return true
}

// skipFrom marks every still-pending unit from index i onward as SKIPPED
func (p *Plan) skipFrom(i int) {
	for ; i < len(p.Units); i++ {
		if p.Units[i].Status == StatusPending {
			p.Units[i].Status = StatusSkipped
		}
	}
}

// HostSuspender puts the host to sleep. The call may block until resume.
type HostSuspender interface {
	SuspendHost(ctx context.Context) error
}

// Recorder receives finished plans
type Recorder interface {
	Record(plan *Plan) error
}
