package diag

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"idlepower/internal/logging"
)

// Packager writes support bundles
type Packager struct {
	config    *Config
	collector *Collector
	logger    *logging.Logger
}

// NewPackager creates a packager for config
func NewPackager(config *Config, logger *logging.Logger) *Packager {
	return &Packager{
		config:    config,
		collector: NewCollector(config, logger),
		logger:    logger,
	}
}

// CreatePackage collects every artifact and writes the ZIP. Collection
// errors are logged and produce a partial bundle.
func (p *Packager) CreatePackage() (string, error) {
	p.logger.Info("diag.package.start", "Creating diagnostic package", map[string]interface{}{
		"output": p.config.OutputPath,
	})

	allFiles := make(map[string][]byte)
	steps := []struct {
		name    string
		collect func() (map[string][]byte, error)
	}{
		{"config", p.collector.CollectConfig},
		{"state", p.collector.CollectState},
		{"logs", p.collector.CollectLogs},
		{"sysinfo", p.collector.CollectSystemInfo},
	}
	for _, step := range steps {
		files, err := step.collect()
		if err != nil {
			p.logger.Error("diag.package.collect_error", "Failed to collect artifacts", map[string]interface{}{
				"step":  step.name,
				"error": err.Error(),
			})
		}
		for path, content := range files {
			allFiles[path] = content
		}
	}

	manifestJSON, err := json.MarshalIndent(p.createManifest(allFiles), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	allFiles["diag_manifest.json"] = manifestJSON

	if err := p.createZIP(allFiles); err != nil {
		return "", fmt.Errorf("failed to create ZIP: %w", err)
	}

	p.logger.Info("diag.package.complete", "Diagnostic package created", map[string]interface{}{
		"output":     p.config.OutputPath,
		"file_count": len(allFiles),
	})
	return p.config.OutputPath, nil
}

func (p *Packager) createManifest(files map[string][]byte) Manifest {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	manifest := Manifest{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Host:      hostname,
		Version:   p.config.Version,
		Files:     make([]ManifestFile, 0, len(files)),
	}
	for _, path := range sortedKeys(files) {
		manifest.Files = append(manifest.Files, ManifestFile{
			Path:      path,
			SizeBytes: int64(len(files[path])),
			SHA256:    CalculateSHA256(files[path]),
		})
	}
	return manifest
}

// createZIP writes into a temp file next to the output and renames it
// into place, so a failed run never leaves a truncated bundle
func (p *Packager) createZIP(files map[string][]byte) (err error) {
	out := p.config.OutputPath
	tmp, err := os.CreateTemp(filepath.Dir(out), ".idlepower-diag-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, path := range sortedKeys(files) {
		w, err := zw.Create(path)
		if err != nil {
			_ = tmp.Close()
			return fmt.Errorf("add %s: %w", path, err)
		}
		if _, err := w.Write(files[path]); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("finish archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return os.Rename(tmp.Name(), out)
}

func sortedKeys(files map[string][]byte) []string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
