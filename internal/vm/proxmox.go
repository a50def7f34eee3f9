package vm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"idlepower/internal/command"
	"idlepower/internal/logging"
)

// ProxmoxController drives guests through the `qm` CLI
type ProxmoxController struct {
	runner command.Runner
	logger *logging.Logger
}

// NewProxmoxController creates a qm-backed controller
func NewProxmoxController(runner command.Runner, logger *logging.Logger) *ProxmoxController {
	return &ProxmoxController{runner: runner, logger: logger}
}

func (p *ProxmoxController) qm(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return p.runner.Run(ctx, "qm", args...)
}

// ListRunning parses `qm list`:
//
//	VMID NAME     STATUS   MEM(MB) BOOTDISK(GB) PID
//	 100 web      running  2048    32.00        1234
func (p *ProxmoxController) ListRunning(ctx context.Context) ([]string, error) {
	out, err := p.qm(ctx, "list")
	if err != nil {
		return nil, fmt.Errorf("qm list: %w", err)
	}

	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue // header
		}
		if strings.EqualFold(fields[2], "running") {
			ids = append(ids, fields[0])
		}
	}

	p.logger.Debug("vm.proxmox.listed", "Listed running guests", map[string]interface{}{
		"running": ids,
	})
	return ids, scanner.Err()
}

// Suspend runs `qm suspend <id>`
func (p *ProxmoxController) Suspend(ctx context.Context, id string) error {
	if _, err := p.qm(ctx, "suspend", id); err != nil {
		return fmt.Errorf("qm suspend %s: %w", id, err)
	}
	return nil
}

// IsRunning runs `qm status <id> --verbose`. A guest counts as stopped
// once qmpstatus is paused/suspended or status is stopped/paused.
func (p *ProxmoxController) IsRunning(ctx context.Context, id string) (bool, error) {
	out, err := p.qm(ctx, "status", id, "--verbose")
	if err != nil {
		return false, fmt.Errorf("qm status %s: %w", id, err)
	}

	status := parseKeyValues(out)
	suspended := status["qmpstatus"] == "suspended" ||
		status["qmpstatus"] == "paused" ||
		status["status"] == "stopped" ||
		status["status"] == "paused"

	p.logger.Debug("vm.proxmox.status", "Checked guest status", map[string]interface{}{
		"vm":        id,
		"status":    status["status"],
		"qmpstatus": status["qmpstatus"],
		"suspended": suspended,
	})
	return !suspended, nil
}

// parseKeyValues reads top-level "key: value" lines, lower-casing both
func parseKeyValues(out []byte) map[string]string {
	values := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			continue // nested blocks (blockstat, nics, ...)
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		values[strings.ToLower(strings.TrimSpace(key))] = strings.ToLower(strings.TrimSpace(value))
	}
	return values
}
