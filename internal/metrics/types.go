package metrics

import (
	"time"
)

// UtilizationSample is one busy-fraction reading
type UtilizationSample struct {
	Timestamp time.Time `json:"ts"`
	Busy      float64   `json:"busy"` // 0..1
}

// CPUStats represents CPU statistics from /proc/stat
type CPUStats struct {
	User    uint64
	Nice    uint64
	System  uint64
	Idle    uint64
	IOWait  uint64
	IRQ     uint64
	SoftIRQ uint64
	Steal   uint64
}

// Total returns total CPU time
func (s CPUStats) Total() uint64 {
	return s.User + s.Nice + s.System + s.Idle + s.IOWait + s.IRQ + s.SoftIRQ + s.Steal
}

// IdleTime returns total idle time
func (s CPUStats) IdleTime() uint64 {
	return s.Idle + s.IOWait
}

// BusySource yields the busy fraction since its previous call. ok is false
// when no delta is available yet.
type BusySource interface {
	Busy() (busy float64, ok bool, err error)
}
