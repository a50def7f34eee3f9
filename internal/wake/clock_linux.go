//go:build linux

package wake

import (
	"time"

	"golang.org/x/sys/unix"
)

// platformSleepGap compares CLOCK_BOOTTIME, which includes suspend, with
// CLOCK_MONOTONIC, which does not.
func platformSleepGap() SleepGap {
	return func() (time.Duration, error) {
		var boot, mono unix.Timespec
		if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &boot); err != nil {
			return 0, err
		}
		if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &mono); err != nil {
			return 0, err
		}
		return time.Duration(boot.Nano() - mono.Nano()), nil
	}
}
