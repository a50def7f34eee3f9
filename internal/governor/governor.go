// Package governor switches the CPU frequency scaling governor via sysfs.
package governor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"idlepower/internal/logging"
)

// DefaultCPURoot is the sysfs directory holding cpu*/cpufreq
const DefaultCPURoot = "/sys/devices/system/cpu"

// ErrNoCPUFreq is returned when no cpufreq policy is exposed
var ErrNoCPUFreq = errors.New("no cpufreq scaling_governor files found")

// Governor writes scaling_governor for every CPU
type Governor struct {
	root   string
	logger *logging.Logger

	mu     sync.Mutex
	active string
}

// New creates a governor switcher rooted at root (DefaultCPURoot when empty)
func New(root string, logger *logging.Logger) *Governor {
	if root == "" {
		root = DefaultCPURoot
	}
	return &Governor{root: root, logger: logger}
}

func (g *Governor) files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(g.root, "cpu[0-9]*", "cpufreq", "scaling_governor"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoCPUFreq
	}
	sort.Strings(files)
	return files, nil
}

// Set writes name to every CPU. A governor already active is not rewritten.
func (g *Governor) Set(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active == name {
		return nil
	}

	files, err := g.files()
	if err != nil {
		return fmt.Errorf("set governor %s: %w", name, err)
	}

	if avail, err := g.available(); err == nil && len(avail) > 0 && !contains(avail, name) {
		return fmt.Errorf("governor %q not available (have %s)", name, strings.Join(avail, ", "))
	}

	var errs []error
	for _, f := range files {
		// #nosec G306 -- sysfs attribute, mode is ignored
		if err := os.WriteFile(f, []byte(name+"\n"), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
		}
	}
	if len(errs) > 0 {
		g.logger.Error("governor.set.failed", "Failed to set CPU governor", map[string]interface{}{
			"governor": name,
			"failed":   len(errs),
			"cpus":     len(files),
		})
		return fmt.Errorf("set governor %s: %w", name, errors.Join(errs...))
	}

	g.active = name
	g.logger.Info("governor.set", "CPU scaling governor changed", map[string]interface{}{
		"governor": name,
		"cpus":     len(files),
	})
	return nil
}

// Current returns the governor of the first CPU
func (g *Governor) Current() (string, error) {
	files, err := g.files()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		return "", fmt.Errorf("read governor: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Available lists the governors the first CPU accepts
func (g *Governor) Available() ([]string, error) {
	return g.available()
}

func (g *Governor) available() ([]string, error) {
	files, err := g.files()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(filepath.Dir(files[0]), "scaling_available_governors")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read available governors: %w", err)
	}
	return strings.Fields(string(data)), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
