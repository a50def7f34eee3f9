package guard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlepower/internal/command"
	"idlepower/internal/logging"
)

func static(active bool, reason string, err error) Guard {
	return Func(func(context.Context) (bool, string, error) { return active, reason, err })
}

func TestComposite(t *testing.T) {
	boom := errors.New("probe failed")

	tests := []struct {
		name       string
		guards     []Guard
		wantActive bool
		wantReason string
		wantErr    bool
	}{
		{"no guards", nil, false, "", false},
		{"all clear", []Guard{static(false, "", nil), static(false, "", nil)}, false, "", false},
		{"second active", []Guard{static(false, "", nil), static(true, "backup", nil)}, true, "backup", false},
		{"first wins", []Guard{static(true, "a", nil), static(true, "b", nil)}, true, "a", false},
		{"error is active", []Guard{static(false, "probe", boom)}, true, "probe", true},
		{"nil entries dropped", []Guard{nil, static(false, "", nil)}, false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			active, reason, err := NewComposite(tt.guards...).Active(context.Background())
			assert.Equal(t, tt.wantActive, active)
			assert.Equal(t, tt.wantReason, reason)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestComposite_StopsAtFirstActive(t *testing.T) {
	called := false
	later := Func(func(context.Context) (bool, string, error) {
		called = true
		return false, "", nil
	})
	c := NewComposite(static(true, "x", nil), later)
	active, _, _ := c.Active(context.Background())
	assert.True(t, active)
	assert.False(t, called)
	assert.Equal(t, 2, c.Len())
}

func TestFlagFileGuard(t *testing.T) {
	dir := t.TempDir()
	flag := filepath.Join(dir, "backup.running")
	g := NewFlagFileGuard(filepath.Join(dir, "other"), flag)

	active, _, err := g.Active(context.Background())
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, os.WriteFile(flag, nil, 0o600))
	active, reason, err := g.Active(context.Background())
	require.NoError(t, err)
	assert.True(t, active)
	assert.Contains(t, reason, "backup.running")
}

func TestFlagFileGuard_StatErrorFailsSafe(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	// A path below a regular file yields ENOTDIR, not ENOENT.
	g := NewFlagFileGuard(filepath.Join(file, "child"))
	active, _, err := g.Active(context.Background())
	assert.True(t, active)
	assert.Error(t, err)
}

func TestInhibitorGuard(t *testing.T) {
	output := `NetworkManager 0 root 812 NetworkManager sleep NetworkManager needs to turn off networks delay
backup-tool 0 root 4242 restic sleep:shutdown Backup in progress block
gnome-session 1000 user 1500 gnome-session handle-power-key Session holds key block
`
	runner := command.RunnerFunc(func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "systemd-inhibit", name)
		assert.Equal(t, []string{"--list", "--no-pager", "--no-legend"}, args)
		return []byte(output), nil
	})

	g := NewInhibitorGuard(runner, logging.NewNopLogger())
	list, err := g.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"backup-tool"}, list)

	active, reason, err := g.Active(context.Background())
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, "inhibitor backup-tool", reason)
}

func TestInhibitorGuard_NoneAndFailure(t *testing.T) {
	empty := command.RunnerFunc(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("\n"), nil
	})
	active, _, err := NewInhibitorGuard(empty, logging.NewNopLogger()).Active(context.Background())
	require.NoError(t, err)
	assert.False(t, active)

	failing := command.RunnerFunc(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("not found")
	})
	active, _, err = NewInhibitorGuard(failing, logging.NewNopLogger()).Active(context.Background())
	assert.Error(t, err)
	assert.True(t, active)
}
