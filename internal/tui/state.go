package tui

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"idlepower/internal/fsutil"
	"idlepower/internal/logging"
)

// UIStateFileName keeps the last screen across `idlepower watch` runs
const UIStateFileName = "ui_state.json"

// UIStateManager persists UIState in the state directory
type UIStateManager struct {
	path   string
	logger *logging.Logger
}

// NewUIStateManager creates a manager for stateDir
func NewUIStateManager(stateDir string, logger *logging.Logger) *UIStateManager {
	return &UIStateManager{
		path:   filepath.Join(stateDir, UIStateFileName),
		logger: logger,
	}
}

// Load returns the saved state, or the status screen when none exists
func (m *UIStateManager) Load() (*UIState, error) {
	var state UIState
	err := fsutil.ReadJSON(m.path, &state)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &UIState{CurrentScreen: ScreenStatus}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load ui state: %w", err)
	}
	if state.CurrentScreen == "" {
		state.CurrentScreen = ScreenStatus
	}
	return &state, nil
}

// Save stamps and writes state atomically
func (m *UIStateManager) Save(state *UIState) error {
	state.Updated = time.Now().UTC()
	return fsutil.WriteJSONAtomic(m.path, state, m.logger)
}
