package governor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlepower/internal/logging"
)

func fakeSysfs(t *testing.T, cpus int, available string) string {
	t.Helper()
	root := t.TempDir()
	for i := 0; i < cpus; i++ {
		dir := filepath.Join(root, "cpu"+string(rune('0'+i)), "cpufreq")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "scaling_governor"), []byte("performance\n"), 0o644))
		if available != "" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "scaling_available_governors"), []byte(available), 0o644))
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cpufreq"), 0o755))
	return root
}

func TestGovernor_SetAllCPUs(t *testing.T) {
	root := fakeSysfs(t, 4, "performance powersave ondemand\n")
	g := New(root, logging.NewNopLogger())

	require.NoError(t, g.Set("ondemand"))

	for i := 0; i < 4; i++ {
		data, err := os.ReadFile(filepath.Join(root, "cpu"+string(rune('0'+i)), "cpufreq", "scaling_governor"))
		require.NoError(t, err)
		assert.Equal(t, "ondemand\n", string(data))
	}

	current, err := g.Current()
	require.NoError(t, err)
	assert.Equal(t, "ondemand", current)
}

func TestGovernor_RejectsUnavailable(t *testing.T) {
	root := fakeSysfs(t, 1, "performance powersave\n")
	g := New(root, logging.NewNopLogger())

	err := g.Set("schedutil")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")

	avail, err := g.Available()
	require.NoError(t, err)
	assert.Equal(t, []string{"performance", "powersave"}, avail)
}

func TestGovernor_NoCPUFreq(t *testing.T) {
	g := New(t.TempDir(), logging.NewNopLogger())
	assert.ErrorIs(t, g.Set("powersave"), ErrNoCPUFreq)

	_, err := g.Current()
	assert.ErrorIs(t, err, ErrNoCPUFreq)
}

func TestGovernor_EmptyNameIsNoop(t *testing.T) {
	g := New(t.TempDir(), logging.NewNopLogger())
	assert.NoError(t, g.Set("  "))
}

func TestGovernor_SkipsRewrite(t *testing.T) {
	root := fakeSysfs(t, 1, "")
	g := New(root, logging.NewNopLogger())

	require.NoError(t, g.Set("powersave"))
	path := filepath.Join(root, "cpu0", "cpufreq", "scaling_governor")
	require.NoError(t, os.WriteFile(path, []byte("marker\n"), 0o644))

	require.NoError(t, g.Set("powersave"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "marker\n", string(data))
}
