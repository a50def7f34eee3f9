package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProcStat(t *testing.T, path string, s CPUStats) {
	t.Helper()
	line := fmt.Sprintf("cpu  %d %d %d %d %d %d %d %d 0 0\ncpu0 1 2 3 4 5 6 7 8 0 0\nintr 12345\n",
		s.User, s.Nice, s.System, s.Idle, s.IOWait, s.IRQ, s.SoftIRQ, s.Steal)
	require.NoError(t, os.WriteFile(path, []byte(line), 0o600))
}

func TestCPUCollector_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultProcStat, NewCPUCollector("").statPath)
}

func TestCPUCollector_Busy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stat")
	c := NewCPUCollector(path)

	writeProcStat(t, path, CPUStats{User: 100, System: 50, Idle: 150})
	_, ok, err := c.Busy()
	require.NoError(t, err)
	assert.False(t, ok, "first sample only primes")

	// total delta 100, idle delta 25
	writeProcStat(t, path, CPUStats{User: 150, System: 75, Idle: 175})
	busy, ok, err := c.Busy()
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.75, busy, 1e-9)
}

func TestCPUCollector_MissingFile(t *testing.T) {
	c := NewCPUCollector(filepath.Join(t.TempDir(), "nope"))
	_, _, err := c.Busy()
	assert.Error(t, err)
}

func TestCPUCollector_InvalidFormat(t *testing.T) {
	tests := map[string]string{
		"wrong prefix":   "intr 1 2 3 4 5 6 7 8\n",
		"too few fields": "cpu 1 2 3\n",
		"non numeric":    "cpu 1 2 x 4 5 6 7 8\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "stat")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, _, err := NewCPUCollector(path).Busy()
			assert.Error(t, err)
		})
	}
}

func TestCalculateBusy(t *testing.T) {
	base := &CPUStats{User: 100, System: 50, Idle: 150}

	tests := []struct {
		name    string
		current *CPUStats
		want    float64
	}{
		{"zero delta", base, 0},
		{"fully idle", &CPUStats{User: 100, System: 50, Idle: 250}, 0},
		{"fully busy", &CPUStats{User: 200, System: 50, Idle: 150}, 1},
		{"iowait counts idle", &CPUStats{User: 150, System: 50, Idle: 150, IOWait: 50}, 0.5},
		{"counter went backwards", &CPUStats{User: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calculateBusy(base, tt.current), 1e-9)
		})
	}
}
