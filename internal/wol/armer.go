package wol

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"idlepower/internal/command"
	"idlepower/internal/logging"
)

// Armer makes sure the host NIC will wake on LAN before the host sleeps
type Armer struct {
	runner command.Runner
	logger *logging.Logger
	iface  string
	mode   string
}

// NewArmer creates an armer for iface. An empty mode means DefaultMode.
func NewArmer(runner command.Runner, logger *logging.Logger, iface, mode string) *Armer {
	if mode == "" {
		mode = DefaultMode
	}
	return &Armer{runner: runner, logger: logger, iface: iface, mode: mode}
}

// Interface returns the managed interface name
func (a *Armer) Interface() string {
	return a.iface
}

// Status queries ethtool for the interface's Wake-on-LAN settings
func (a *Armer) Status(ctx context.Context) (Status, error) {
	out, err := a.runner.Run(ctx, "ethtool", a.iface)
	if err != nil {
		return Status{Interface: a.iface}, fmt.Errorf("query wol on %s: %w", a.iface, err)
	}
	status := parseEthtool(out)
	status.Interface = a.iface
	return status, nil
}

// Arm applies the configured mode unless it is already active. It runs
// right before `systemctl suspend` because some drivers reset the mode on
// every resume.
func (a *Armer) Arm(ctx context.Context) error {
	status, err := a.Status(ctx)
	if err != nil {
		return err
	}
	if status.Current == a.mode {
		a.logger.Debug("wol.arm.unchanged", "Wake-on-LAN already armed", map[string]interface{}{
			"interface": a.iface,
			"mode":      a.mode,
		})
		return nil
	}
	if !status.Supports(a.mode) {
		return fmt.Errorf("interface %s does not support wol mode %q (supported %q)",
			a.iface, a.mode, strings.Join(status.Supported, ""))
	}

	if _, err := a.runner.Run(ctx, "ethtool", "-s", a.iface, "wol", a.mode); err != nil {
		return fmt.Errorf("set wol mode %s on %s: %w", a.mode, a.iface, err)
	}

	a.logger.Info("wol.arm.applied", "Wake-on-LAN armed", map[string]interface{}{
		"interface": a.iface,
		"mode":      a.mode,
		"previous":  status.Current,
	})
	return nil
}

// parseEthtool reads the "Supports Wake-on" and "Wake-on" lines
func parseEthtool(out []byte) Status {
	status := Status{Supported: []string{}, Current: "d"}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Supports Wake-on":
			for _, r := range value {
				if r != ' ' && r != 'd' {
					status.Supported = append(status.Supported, string(r))
				}
			}
		case "Wake-on":
			if value != "" {
				status.Current = value
			}
		}
	}
	return status
}
