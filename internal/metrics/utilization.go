package metrics

import (
	"context"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"idlepower/internal/logging"
)

// UtilizationSampler keeps a rolling window of busy fractions. Run is the
// only writer; CurrentMean may be called from any goroutine.
type UtilizationSampler struct {
	sources  []BusySource
	interval time.Duration
	logger   *logging.Logger
	now      func() time.Time

	mu     sync.RWMutex
	ring   []float64
	next   int
	count  int
	latest UtilizationSample
}

// NewUtilizationSampler creates a sampler holding window/interval samples.
// With several sources the busiest one is recorded for each tick.
func NewUtilizationSampler(interval, window time.Duration, logger *logging.Logger, sources ...BusySource) *UtilizationSampler {
	size := 1
	if interval > 0 && window >= interval {
		size = int(window / interval)
	}
	return &UtilizationSampler{
		sources:  sources,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		ring:     make([]float64, size),
	}
}

// Run samples every interval until ctx is cancelled. Source errors are
// logged and the tick is skipped.
func (u *UtilizationSampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.logger.Info("metrics.utilization.started", "Utilization sampler started", map[string]interface{}{
		"interval_ms": u.interval.Milliseconds(),
		"window_size": len(u.ring),
		"sources":     len(u.sources),
	})

	u.sample()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			u.sample()
		}
	}
}

func (u *UtilizationSampler) sample() {
	busiest, have := 0.0, false
	for _, src := range u.sources {
		busy, ok, err := src.Busy()
		if err != nil {
			u.logger.Warn("metrics.utilization.sample_failed", "Failed to sample utilization", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		if !ok {
			continue
		}
		if !have || busy > busiest {
			busiest = busy
		}
		have = true
	}

	if have {
		u.Record(UtilizationSample{Timestamp: u.now(), Busy: busiest})
	}
}

// Record appends a sample, evicting the oldest once the window is full
func (u *UtilizationSampler) Record(s UtilizationSample) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.ring[u.next] = s.Busy
	u.next = (u.next + 1) % len(u.ring)
	if u.count < len(u.ring) {
		u.count++
	}
	u.latest = s
}

// CurrentMean returns the mean busy fraction of the window. ok is false
// until the window has been filled once.
func (u *UtilizationSampler) CurrentMean() (float64, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.count < len(u.ring) {
		return 0, false
	}
	return stat.Mean(u.ring, nil), true
}

// Fill reports how many samples are held and the window capacity
func (u *UtilizationSampler) Fill() (held, capacity int) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.count, len(u.ring)
}

// Latest returns the most recent sample
func (u *UtilizationSampler) Latest() UtilizationSample {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.latest
}
