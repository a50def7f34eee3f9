package config

// VM backend identifiers.
const (
	BackendProxmox = "proxmox"
	BackendQMP     = "qmp"
	BackendNone    = "none"
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		USB: USBConfig{
			MonitorPath:  "/dev/usbmon0",
			HeaderBytes:  48,
			Buses:        []string{"0"},
			LoadModule:   true,
			ResolveNames: true,
		},
		Idle: IdleConfig{
			MinIdleMinutes:      15,
			PollIntervalSeconds: 30,
			StateFile:           "/var/lib/idlepower/idle_state.json",
		},
		CPU: CPUConfig{
			Enabled:               false,
			ThresholdPct:          50,
			WindowMinutes:         5,
			SampleIntervalSeconds: 1,
		},
		VM: VMConfig{
			Backend:               BackendProxmox,
			QMPSocketGlob:         "/var/run/qemu-server/*.qmp",
			SuspendTimeoutSeconds: 300,
			PollIntervalSeconds:   5,
		},
		Host: HostConfig{
			Enabled:            true,
			ResumeGraceMinutes: 10,
		},
		Guard: GuardConfig{
			FlagFiles: []string{"/var/run/backup.running"},
		},
		Governor: GovernorConfig{
			Startup: "ondemand",
		},
		WoL: WoLConfig{
			Mode: "g",
		},
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "json",
		},
	}
}
