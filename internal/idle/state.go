package idle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"idlepower/internal/fsutil"
	"idlepower/internal/logging"
)

// StateManager handles snapshot persistence
type StateManager struct {
	filePath string
	logger   *logging.Logger
}

// NewStateManager creates a new state manager
func NewStateManager(filePath string, logger *logging.Logger) *StateManager {
	return &StateManager{
		filePath: filePath,
		logger:   logger,
	}
}

// Path returns the snapshot file path
func (sm *StateManager) Path() string {
	return sm.filePath
}

// Save writes the snapshot atomically
func (sm *StateManager) Save(snap Snapshot) error {
	if err := fsutil.WriteJSONAtomic(sm.filePath, snap, sm.logger); err != nil {
		return fmt.Errorf("failed to save idle state: %w", err)
	}

	sm.logger.Debug("idle.state.saved", "Idle state saved", map[string]interface{}{
		"path":  sm.filePath,
		"phase": snap.Phase,
	})

	return nil
}

// Load reads the last saved snapshot
func (sm *StateManager) Load() (Snapshot, error) {
	var snap Snapshot
	if err := fsutil.ReadJSON(sm.filePath, &snap); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, fmt.Errorf("state file not found: %w", err)
		}
		return Snapshot{}, fmt.Errorf("failed to load idle state: %w", err)
	}

	return snap, nil
}

// Delete removes the state file
func (sm *StateManager) Delete() error {
	if err := os.Remove(sm.filePath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete state file: %w", err)
	}

	sm.logger.Debug("idle.state.deleted", "Idle state file deleted", map[string]interface{}{
		"path": sm.filePath,
	})

	return nil
}

// Exists checks if the state file exists
func (sm *StateManager) Exists() bool {
	_, err := os.Stat(sm.filePath)
	return err == nil
}
