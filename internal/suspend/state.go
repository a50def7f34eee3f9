package suspend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"idlepower/internal/fsutil"
	"idlepower/internal/logging"
)

// StateFileName is the auto-suspend switch file inside the state directory
const StateFileName = "suspend_state.json"

// State holds the persisted auto-suspend switch
type State struct {
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager handles the auto-suspend switch persistence
type Manager struct {
	logger    *logging.Logger
	stateFile string
}

// NewManager creates a new state manager rooted at stateDir
func NewManager(stateDir string, logger *logging.Logger) *Manager {
	return &Manager{
		logger:    logger,
		stateFile: filepath.Join(stateDir, StateFileName),
	}
}

// Path returns the switch file location
func (m *Manager) Path() string {
	return m.stateFile
}

// LoadState loads the switch from disk. A missing file means enabled and
// is not written back.
func (m *Manager) LoadState() (*State, error) {
	var state State
	if err := fsutil.ReadJSON(m.stateFile, &state); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &State{Enabled: true}, nil
		}
		return nil, fmt.Errorf("load suspend state: %w", err)
	}
	return &state, nil
}

// SaveState saves the switch to disk
func (m *Manager) SaveState(state *State) error {
	if err := fsutil.WriteJSONAtomic(m.stateFile, state, m.logger); err != nil {
		return fmt.Errorf("save suspend state: %w", err)
	}

	m.logger.Debug("suspend.state.saved", "Saved suspend state", map[string]interface{}{
		"enabled": state.Enabled,
	})
	return nil
}

// Enable enables auto-suspend
func (m *Manager) Enable() error {
	return m.set(true)
}

// Disable disables auto-suspend
func (m *Manager) Disable() error {
	return m.set(false)
}

func (m *Manager) set(enabled bool) error {
	state, err := m.LoadState()
	if err != nil {
		return err
	}

	if state.Enabled == enabled && m.exists() {
		m.logger.Info("suspend.switch.unchanged", "Auto-suspend already in requested state", map[string]interface{}{
			"enabled": enabled,
		})
		return nil
	}

	state.Enabled = enabled
	state.UpdatedAt = time.Now().UTC()
	if err := m.SaveState(state); err != nil {
		return err
	}

	if enabled {
		m.logger.Info("suspend.enabled", "Auto-suspend enabled", nil)
	} else {
		m.logger.Info("suspend.disabled", "Auto-suspend disabled", nil)
	}
	return nil
}

// Enabled reports the current switch position
func (m *Manager) Enabled() (bool, error) {
	state, err := m.LoadState()
	if err != nil {
		return false, err
	}
	return state.Enabled, nil
}

// Active implements guard.Guard: a disabled switch holds the machine ACTIVE
func (m *Manager) Active(context.Context) (bool, string, error) {
	enabled, err := m.Enabled()
	if err != nil {
		return true, "", err
	}
	if !enabled {
		return true, "auto-suspend disabled", nil
	}
	return false, "", nil
}

func (m *Manager) exists() bool {
	var probe State
	return fsutil.ReadJSON(m.stateFile, &probe) == nil
}
