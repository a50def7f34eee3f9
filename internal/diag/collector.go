package diag

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"idlepower/internal/logging"
)

// Collector gathers bundle artifacts. Missing inputs are skipped; only
// read failures of existing files are errors.
type Collector struct {
	config   *Config
	redactor *Redactor
	logger   *logging.Logger
}

// NewCollector creates a collector for config
func NewCollector(config *Config, logger *logging.Logger) *Collector {
	return &Collector{
		config:   config,
		redactor: NewRedactor(),
		logger:   logger,
	}
}

// CollectConfig bundles the config file as written and the effective
// configuration after defaults and environment overrides
func (c *Collector) CollectConfig() (map[string][]byte, error) {
	files := make(map[string][]byte)

	if c.config.ConfigPath != "" {
		content, err := os.ReadFile(c.config.ConfigPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			c.logger.Debug("diag.collect.config.missing", "Config file not found", map[string]interface{}{
				"path": c.config.ConfigPath,
			})
		case err != nil:
			return files, fmt.Errorf("failed to read config: %w", err)
		default:
			files["config/config.yaml"] = c.redactor.Redact(content)
		}
	}

	if c.config.Effective != nil {
		content, err := yaml.Marshal(c.config.Effective)
		if err != nil {
			return files, fmt.Errorf("failed to marshal effective config: %w", err)
		}
		files["config/effective.yaml"] = c.redactor.Redact(content)
	}

	return files, nil
}

// CollectState bundles the persisted idle snapshot, switch state and
// suspend history
func (c *Collector) CollectState() (map[string][]byte, error) {
	files := make(map[string][]byte)
	var errs []error

	for name, path := range c.config.StateFiles {
		content, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		files["state/"+name] = c.redactor.Redact(content)
	}

	return files, errors.Join(errs...)
}

// CollectLogs bundles the last LogTailBytes of the log file, starting at
// a line boundary
func (c *Collector) CollectLogs() (map[string][]byte, error) {
	files := make(map[string][]byte)
	if c.config.LogFile == "" {
		return files, nil
	}

	tail, err := readTail(c.config.LogFile, c.config.LogTailBytes)
	if errors.Is(err, os.ErrNotExist) {
		c.logger.Debug("diag.collect.logs.missing", "Log file not found", map[string]interface{}{
			"path": c.config.LogFile,
		})
		return files, nil
	}
	if err != nil {
		return files, fmt.Errorf("failed to read log file: %w", err)
	}

	files["logs/idlepower.log"] = c.redactor.Redact(tail)
	return files, nil
}

// CollectSystemInfo records host, kernel and build details
func (c *Collector) CollectSystemInfo() (map[string][]byte, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	info := map[string]interface{}{
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"host":              hostname,
		"idlepower_version": c.config.Version,
		"go_version":        runtime.Version(),
		"os":                runtime.GOOS,
		"arch":              runtime.GOARCH,
	}
	if kernel, err := os.ReadFile("/proc/version"); err == nil {
		info["kernel"] = strings.TrimSpace(string(kernel))
	}
	if _, err := os.Stat("/sys/kernel/debug/usb/usbmon"); err == nil {
		info["usbmon_debugfs"] = true
	}

	content, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal system info: %w", err)
	}
	return map[string][]byte{"system_info.json": content}, nil
}

func readTail(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the daemon config
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || info.Size() <= limit {
		return io.ReadAll(f)
	}

	if _, err := f.Seek(info.Size()-limit, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[i+1:]
	}
	return data, nil
}

// CalculateSHA256 computes the hex SHA-256 of data
func CalculateSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
