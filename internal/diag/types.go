// Package diag builds a support bundle: a ZIP with the effective
// configuration, persisted daemon state, suspend history and the tail of
// the log file, plus a manifest of SHA-256 sums.
package diag

import "time"

// DefaultLogTailBytes bounds how much of the log file is bundled
const DefaultLogTailBytes = 1 << 20

// Manifest describes the bundle contents
type Manifest struct {
	Timestamp string         `json:"timestamp"`
	Host      string         `json:"host"`
	Version   string         `json:"idlepower_version"`
	Files     []ManifestFile `json:"files"`
}

// ManifestFile is one bundle entry
type ManifestFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// Config selects what goes into the bundle
type Config struct {
	Version    string
	OutputPath string

	// ConfigPath is the YAML file on disk, bundled redacted
	ConfigPath string
	// Effective is the loaded configuration, bundled as YAML
	Effective interface{}
	// StateFiles maps bundle names to state file paths
	StateFiles map[string]string

	LogFile      string
	LogTailBytes int64
}

// NewConfig creates a bundle config with a timestamped output name
func NewConfig(version string) *Config {
	return &Config{
		Version:      version,
		OutputPath:   generateOutputPath(time.Now()),
		StateFiles:   map[string]string{},
		LogTailBytes: DefaultLogTailBytes,
	}
}

func generateOutputPath(now time.Time) string {
	return "idlepower-diag-" + now.UTC().Format("20060102-150405") + ".zip"
}
