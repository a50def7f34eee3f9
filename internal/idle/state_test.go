package idle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlepower/internal/logging"
)

func TestStateManager_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "idle_state.json")
	manager := NewStateManager(path, logging.NewNopLogger())
	assert.Equal(t, path, manager.Path())
	assert.False(t, manager.Exists())

	mean := 12.5
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Phase:            PhaseIdle,
		LastActivityAt:   at,
		EnteredPhaseAt:   at.Add(15 * time.Minute),
		IdleForSeconds:   900,
		ThresholdSeconds: 900,
		CPUEnabled:       true,
		CPUMeanPct:       &mean,
		GatingReasons:    []string{},
		LastTransition: &Transition{
			From: PhaseActive, To: PhaseIdle, At: at.Add(15 * time.Minute),
			Reason: ReasonIdleTimeout, IdleFor: 15 * time.Minute,
		},
		PlanInProgress: true,
		UpdatedAt:      at.Add(16 * time.Minute),
	}

	require.NoError(t, manager.Save(snap))
	assert.True(t, manager.Exists())

	loaded, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, snap.Phase, loaded.Phase)
	assert.True(t, snap.LastActivityAt.Equal(loaded.LastActivityAt))
	require.NotNil(t, loaded.CPUMeanPct)
	assert.Equal(t, mean, *loaded.CPUMeanPct)
	require.NotNil(t, loaded.LastTransition)
	assert.Equal(t, 15*time.Minute, loaded.LastTransition.IdleFor)
	assert.True(t, loaded.PlanInProgress)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStateManager_LoadMissing(t *testing.T) {
	manager := NewStateManager(filepath.Join(t.TempDir(), "missing.json"), logging.NewNopLogger())
	_, err := manager.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStateManager_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idle_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := NewStateManager(path, logging.NewNopLogger()).Load()
	assert.Error(t, err)
}

func TestStateManager_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idle_state.json")
	manager := NewStateManager(path, logging.NewNopLogger())

	require.NoError(t, manager.Save(Snapshot{Phase: PhaseActive}))
	require.NoError(t, manager.Delete())
	assert.False(t, manager.Exists())
	assert.NoError(t, manager.Delete(), "deleting twice is fine")
}
