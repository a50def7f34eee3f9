package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlepower/internal/logging"
)

func TestUIStateManager_SaveAndLoad(t *testing.T) {
	manager := NewUIStateManager(t.TempDir(), logging.NewNopLogger())

	require.NoError(t, manager.Save(&UIState{
		CurrentScreen: ScreenPlans,
		Selection:     1,
		LastError:     "test error",
	}))

	loaded, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, ScreenPlans, loaded.CurrentScreen)
	assert.Equal(t, 1, loaded.Selection)
	assert.Equal(t, "test error", loaded.LastError)
	assert.False(t, loaded.Updated.IsZero())
}

func TestUIStateManager_LoadNonExistent(t *testing.T) {
	manager := NewUIStateManager(t.TempDir(), logging.NewNopLogger())

	state, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, ScreenStatus, state.CurrentScreen)
	assert.Zero(t, state.Selection)
	assert.Empty(t, state.LastError)
}

func TestUIStateManager_EmptyScreenDefaultsToStatus(t *testing.T) {
	manager := NewUIStateManager(t.TempDir(), logging.NewNopLogger())

	require.NoError(t, manager.Save(&UIState{Selection: 1}))
	state, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, ScreenStatus, state.CurrentScreen)
	assert.Equal(t, 1, state.Selection)
}
