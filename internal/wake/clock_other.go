//go:build !linux

package wake

import (
	"sync"
	"time"
)

// platformSleepGap accumulates the drift between wall-clock and
// monotonic elapsed time. Wall clock adjustments also show up here.
func platformSleepGap() SleepGap {
	var (
		mu    sync.Mutex
		start = time.Now()
	)
	return func() (time.Duration, error) {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		wall := now.Round(0).Sub(start.Round(0))
		mono := now.Sub(start)
		return wall - mono, nil
	}
}
