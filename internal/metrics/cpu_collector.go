package metrics

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultProcStat is the kernel's aggregate CPU accounting file
const DefaultProcStat = "/proc/stat"

// CPUCollector computes CPU busy fractions from /proc/stat deltas
type CPUCollector struct {
	statPath  string
	lastStats *CPUStats
}

// NewCPUCollector creates a collector reading statPath ("" means /proc/stat)
func NewCPUCollector(statPath string) *CPUCollector {
	if statPath == "" {
		statPath = DefaultProcStat
	}
	return &CPUCollector{statPath: statPath}
}

// Busy returns the busy fraction since the previous call. The first call
// only primes the counters and reports ok=false.
func (c *CPUCollector) Busy() (float64, bool, error) {
	currentStats, err := c.readCPUStats()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read CPU stats: %w", err)
	}

	prev := c.lastStats
	c.lastStats = currentStats
	if prev == nil {
		return 0, false, nil
	}

	return calculateBusy(prev, currentStats), true, nil
}

// readCPUStats reads the aggregate cpu line
// Format: cpu user nice system idle iowait irq softirq steal
func (c *CPUCollector) readCPUStats() (*CPUStats, error) {
	data, err := os.ReadFile(c.statPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.statPath, err)
	}

	firstLine, _, _ := strings.Cut(string(data), "\n")
	fields := strings.Fields(firstLine)
	if len(fields) < 8 || fields[0] != "cpu" {
		return nil, fmt.Errorf("invalid %s format", c.statPath)
	}

	values := make([]uint64, 0, 8)
	for _, field := range fields[1:min(len(fields), 9)] {
		v, parseErr := strconv.ParseUint(field, 10, 64)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid cpu stat value %q: %w", field, parseErr)
		}
		values = append(values, v)
	}
	for len(values) < 8 {
		values = append(values, 0)
	}

	return &CPUStats{
		User:    values[0],
		Nice:    values[1],
		System:  values[2],
		Idle:    values[3],
		IOWait:  values[4],
		IRQ:     values[5],
		SoftIRQ: values[6],
		Steal:   values[7],
	}, nil
}

// calculateBusy returns the non-idle share of elapsed jiffies, clamped to 0..1
func calculateBusy(prev, current *CPUStats) float64 {
	if current.Total() <= prev.Total() {
		return 0
	}
	totalDelta := current.Total() - prev.Total()

	var idleDelta uint64
	if current.IdleTime() > prev.IdleTime() {
		idleDelta = current.IdleTime() - prev.IdleTime()
	}

	busy := 1.0 - float64(idleDelta)/float64(totalDelta)
	if busy < 0 {
		busy = 0
	}
	if busy > 1 {
		busy = 1
	}
	return busy
}
