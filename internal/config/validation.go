package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateUSB()...)
	errors = append(errors, c.validateIdleSettings()...)
	errors = append(errors, c.validateCPU()...)
	errors = append(errors, c.validateVM()...)
	errors = append(errors, c.validateHost()...)
	errors = append(errors, c.validateGovernor()...)
	errors = append(errors, c.validateWoL()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateUSB() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.USB.MonitorPath) == "" {
		errors = append(errors, ValidationError{
			Path:    "usb.monitor_path",
			Message: "must not be empty",
		})
	}

	if c.USB.HeaderBytes != 48 && c.USB.HeaderBytes != 64 {
		errors = append(errors, ValidationError{
			Path:    "usb.header_bytes",
			Message: fmt.Sprintf("must be 48 or 64, got %d", c.USB.HeaderBytes),
		})
	}

	for i, bus := range c.USB.Buses {
		bus = strings.TrimSpace(bus)
		if bus == "*" || bus == "" {
			continue
		}
		n, err := strconv.Atoi(bus)
		if err != nil || n < 0 || n > 255 {
			errors = append(errors, ValidationError{
				Path:    fmt.Sprintf("usb.buses[%d]", i),
				Message: fmt.Sprintf("must be a bus number 0-255 or '*', got '%s'", bus),
			})
		}
	}

	return errors
}

func (c *Config) validateIdleSettings() []ValidationError {
	var errors []ValidationError

	if c.Idle.MinIdleMinutes < 1 {
		errors = append(errors, ValidationError{
			Path:    "idle.min_idle_minutes",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Idle.MinIdleMinutes),
		})
	}

	if c.Idle.PollIntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Path:    "idle.poll_interval_seconds",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Idle.PollIntervalSeconds),
		})
	}

	return errors
}

func (c *Config) validateCPU() []ValidationError {
	var errors []ValidationError

	if c.CPU.ThresholdPct < 0 || c.CPU.ThresholdPct > 100 {
		errors = append(errors, ValidationError{
			Path:    "cpu.threshold_pct",
			Message: fmt.Sprintf("must be between 0 and 100, got %g", c.CPU.ThresholdPct),
		})
	}

	if c.CPU.SampleIntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Path:    "cpu.sample_interval_seconds",
			Message: fmt.Sprintf("must be at least 1, got %d", c.CPU.SampleIntervalSeconds),
		})
	}

	if c.CPU.WindowMinutes < 1 {
		errors = append(errors, ValidationError{
			Path:    "cpu.window_minutes",
			Message: fmt.Sprintf("must be at least 1, got %d", c.CPU.WindowMinutes),
		})
	} else if c.CPU.SampleIntervalSeconds >= 1 && c.CPU.WindowMinutes*60 < c.CPU.SampleIntervalSeconds {
		errors = append(errors, ValidationError{
			Path:    "cpu.window_minutes",
			Message: "window must hold at least one sample",
		})
	}

	return errors
}

func (c *Config) validateVM() []ValidationError {
	var errors []ValidationError

	validBackends := []string{BackendProxmox, BackendQMP, BackendNone}
	if !contains(validBackends, c.VM.Backend) {
		errors = append(errors, ValidationError{
			Path:    "vm.backend",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validBackends, c.VM.Backend),
		})
	}

	if c.VM.Backend == BackendQMP && strings.TrimSpace(c.VM.QMPSocketGlob) == "" {
		errors = append(errors, ValidationError{
			Path:    "vm.qmp_socket_glob",
			Message: "must be set when backend is qmp",
		})
	}

	if c.VM.SuspendTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Path:    "vm.suspend_timeout_seconds",
			Message: fmt.Sprintf("must be at least 1, got %d", c.VM.SuspendTimeoutSeconds),
		})
	}

	if c.VM.PollIntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Path:    "vm.poll_interval_seconds",
			Message: fmt.Sprintf("must be at least 1, got %d", c.VM.PollIntervalSeconds),
		})
	}

	return errors
}

func (c *Config) validateHost() []ValidationError {
	if c.Host.ResumeGraceMinutes >= 0 {
		return nil
	}

	return []ValidationError{{
		Path:    "host.resume_grace_minutes",
		Message: fmt.Sprintf("must be non-negative, got %d", c.Host.ResumeGraceMinutes),
	}}
}

func (c *Config) validateGovernor() []ValidationError {
	var errors []ValidationError

	for path, value := range map[string]string{
		"governor.startup": c.Governor.Startup,
		"governor.idle":    c.Governor.Idle,
	} {
		if strings.ContainsAny(value, "/ \t\n") {
			errors = append(errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("invalid governor name '%s'", value),
			})
		}
	}

	return errors
}

func (c *Config) validateWoL() []ValidationError {
	if c.WoL.Interface == "" {
		return nil
	}

	var errors []ValidationError
	if strings.ContainsAny(c.WoL.Interface, "/ \t\n") {
		errors = append(errors, ValidationError{
			Path:    "wol.interface",
			Message: fmt.Sprintf("invalid interface name '%s'", c.WoL.Interface),
		})
	}
	if c.WoL.Mode == "" || strings.Trim(c.WoL.Mode, "pumbagsd") != "" {
		errors = append(errors, ValidationError{
			Path:    "wol.mode",
			Message: fmt.Sprintf("must be ethtool wake-on letters (pumbagsd), got '%s'", c.WoL.Mode),
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		errors = append(errors, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validLevels, c.Logging.Level),
		})
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, c.Logging.Format) {
		errors = append(errors, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validFormats, c.Logging.Format),
		})
	}

	return errors
}

// contains checks if a string is in a slice
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
