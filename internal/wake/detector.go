// Package wake detects that the host has been suspended and resumed.
//
// A clock that keeps running across suspend is compared with one that
// stops; when the gap between them grows, the host slept.
package wake

import (
	"fmt"
	"sync"
	"time"

	"idlepower/internal/logging"
)

// DefaultThreshold is the smallest sleep reported as a resume
const DefaultThreshold = 5 * time.Second

// SleepGap returns the total time the host has spent suspended, as seen
// by comparing a suspend-aware clock with one that is not.
type SleepGap func() (time.Duration, error)

// Resume describes one detected sleep
type Resume struct {
	At    time.Time
	Slept time.Duration
}

// Detector reports resumes by polling a SleepGap
type Detector struct {
	gap       SleepGap
	threshold time.Duration
	logger    *logging.Logger
	now       func() time.Time

	mu      sync.Mutex
	last    time.Duration
	primed  bool
	resumes int
}

// Option configures a Detector
type Option func(*Detector)

// WithSleepGap replaces the platform clock source
func WithSleepGap(gap SleepGap) Option {
	return func(d *Detector) { d.gap = gap }
}

// WithThreshold sets the minimum sleep reported
func WithThreshold(threshold time.Duration) Option {
	return func(d *Detector) { d.threshold = threshold }
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// NewDetector creates a resume detector using the platform clocks
func NewDetector(logger *logging.Logger, opts ...Option) *Detector {
	d := &Detector{
		gap:       platformSleepGap(),
		threshold: DefaultThreshold,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check samples the clocks and reports whether the host slept since the
// previous call. The first call only primes the baseline.
func (d *Detector) Check() (Resume, bool, error) {
	gap, err := d.gap()
	if err != nil {
		return Resume{}, false, fmt.Errorf("read clocks: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.primed {
		d.primed = true
		d.last = gap
		return Resume{}, false, nil
	}

	slept := gap - d.last
	d.last = gap
	if slept < d.threshold {
		return Resume{}, false, nil
	}

	d.resumes++
	r := Resume{At: d.now(), Slept: slept}
	d.logger.Info("wake.resume.detected", "Host resumed from suspend", map[string]interface{}{
		"slept_seconds": int64(slept.Seconds()),
		"resumes":       d.resumes,
	})
	return r, true, nil
}

// Resumes returns how many resumes were reported
func (d *Detector) Resumes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resumes
}
