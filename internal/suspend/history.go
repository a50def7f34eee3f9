package suspend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"idlepower/internal/fsutil"
	"idlepower/internal/logging"
)

const (
	// HistoryFileName is the plan log inside the state directory
	HistoryFileName = "suspend_history.jsonl"
	// MaxHistoryEntries bounds the plan log; older lines are dropped on write
	MaxHistoryEntries = 500
)

// History appends finished plans to a JSONL file holding at most
// maxEntries lines
type History struct {
	path       string
	logger     *logging.Logger
	maxEntries int
	mu         sync.Mutex
}

// NewHistory creates a plan log at path
func NewHistory(path string, logger *logging.Logger) *History {
	return &History{path: path, logger: logger, maxEntries: MaxHistoryEntries}
}

// Record writes one plan as a single JSON line. Once the file exceeds
// maxEntries lines it is rewritten with only the newest ones.
func (h *History) Record(plan *Plan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	data = append(data, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(h.path), fsutil.DefaultStatePermissions); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	file, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fsutil.DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to open suspend history: %w", err)
	}
	defer fsutil.CloseWithError(file.Close, h.logger, h.path)

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return h.trim()
}

// trim keeps the newest maxEntries lines. Caller holds h.mu.
func (h *History) trim() error {
	if h.maxEntries <= 0 {
		return nil
	}
	data, err := os.ReadFile(filepath.Clean(h.path))
	if err != nil {
		return fmt.Errorf("failed to read suspend history: %w", err)
	}

	lines := bytes.SplitAfter(data, []byte{'\n'})
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	if len(lines) <= h.maxEntries {
		return nil
	}

	dropped := len(lines) - h.maxEntries
	if err := fsutil.AtomicWriteFile(h.path, bytes.Join(lines[dropped:], nil), fsutil.DefaultFilePermissions, h.logger); err != nil {
		return fmt.Errorf("failed to trim suspend history: %w", err)
	}
	h.logger.Debug("suspend.history.trimmed", "Dropped oldest plans from history", map[string]interface{}{
		"dropped": dropped,
		"kept":    h.maxEntries,
	})
	return nil
}

// ReadHistory returns up to limit of the most recent plans, oldest first.
// A missing file yields no plans.
func ReadHistory(path string, limit int) ([]Plan, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read suspend history: %w", err)
	}

	var plans []Plan
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var plan Plan
		if err := json.Unmarshal(line, &plan); err != nil {
			continue
		}
		plans = append(plans, plan)
	}

	if limit > 0 && len(plans) > limit {
		plans = plans[len(plans)-limit:]
	}
	return plans, nil
}
