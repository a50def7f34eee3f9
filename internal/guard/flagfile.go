package guard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// DefaultBackupFlag is created by backup jobs for their duration
const DefaultBackupFlag = "/var/run/backup.running"

// FlagFileGuard is active while any of its files exists
type FlagFileGuard struct {
	paths []string
}

// NewFlagFileGuard creates a guard over paths
func NewFlagFileGuard(paths ...string) *FlagFileGuard {
	return &FlagFileGuard{paths: paths}
}

// Active implements Guard. A stat failure other than "not exist" is
// returned as an error so the caller fails safe.
func (g *FlagFileGuard) Active(_ context.Context) (bool, string, error) {
	for _, path := range g.paths {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			return true, "flag file " + path, nil
		case errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return true, "flag file " + path, fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return false, "", nil
}
