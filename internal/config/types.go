package config

// Config represents the complete idlepower configuration
type Config struct {
	USB      USBConfig      `yaml:"usb" envconfig:"USB"`
	Idle     IdleConfig     `yaml:"idle" envconfig:"IDLE"`
	CPU      CPUConfig      `yaml:"cpu" envconfig:"CPU"`
	VM       VMConfig       `yaml:"vm" envconfig:"VM"`
	Host     HostConfig     `yaml:"host" envconfig:"HOST"`
	Guard    GuardConfig    `yaml:"guard" envconfig:"GUARD"`
	Governor GovernorConfig `yaml:"governor" envconfig:"GOVERNOR"`
	WoL      WoLConfig      `yaml:"wol" envconfig:"WOL"`
	Metrics  MetricsConfig  `yaml:"metrics" envconfig:"METRICS"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// USBConfig selects the usbmon source and which buses count as activity
type USBConfig struct {
	MonitorPath  string   `yaml:"monitor_path" envconfig:"MONITOR_PATH"`
	HeaderBytes  int      `yaml:"header_bytes" envconfig:"HEADER_BYTES"`
	Buses        []string `yaml:"buses" envconfig:"BUSES"`
	LoadModule   bool     `yaml:"load_module" envconfig:"LOAD_MODULE"`
	ResolveNames bool     `yaml:"resolve_names" envconfig:"RESOLVE_NAMES"`
}

// IdleConfig represents idle detection configuration
type IdleConfig struct {
	MinIdleMinutes      int    `yaml:"min_idle_minutes" envconfig:"MIN_IDLE_MINUTES"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds" envconfig:"POLL_INTERVAL_SECONDS"`
	StateFile           string `yaml:"state_file" envconfig:"STATE_FILE"`
}

// CPUConfig represents the optional utilization criterion
type CPUConfig struct {
	Enabled               bool    `yaml:"enabled" envconfig:"ENABLED"`
	ThresholdPct          float64 `yaml:"threshold_pct" envconfig:"THRESHOLD_PCT"`
	WindowMinutes         int     `yaml:"window_minutes" envconfig:"WINDOW_MINUTES"`
	SampleIntervalSeconds int     `yaml:"sample_interval_seconds" envconfig:"SAMPLE_INTERVAL_SECONDS"`
	IncludeGPU            bool    `yaml:"include_gpu" envconfig:"INCLUDE_GPU"`
}

// VMConfig selects the guest control backend
type VMConfig struct {
	Backend               string `yaml:"backend" envconfig:"BACKEND"`
	QMPSocketGlob         string `yaml:"qmp_socket_glob" envconfig:"QMP_SOCKET_GLOB"`
	SuspendTimeoutSeconds int    `yaml:"suspend_timeout_seconds" envconfig:"SUSPEND_TIMEOUT_SECONDS"`
	PollIntervalSeconds   int    `yaml:"poll_interval_seconds" envconfig:"POLL_INTERVAL_SECONDS"`
}

// HostConfig controls the final host suspend step
type HostConfig struct {
	Enabled            bool `yaml:"enabled" envconfig:"ENABLED"`
	DryRun             bool `yaml:"dry_run" envconfig:"DRY_RUN"`
	ResumeGraceMinutes int  `yaml:"resume_grace_minutes" envconfig:"RESUME_GRACE_MINUTES"`
}

// GuardConfig lists the protected-operation probes
type GuardConfig struct {
	FlagFiles       []string `yaml:"flag_files" envconfig:"FLAG_FILES"`
	CheckInhibitors bool     `yaml:"check_inhibitors" envconfig:"CHECK_INHIBITORS"`
}

// GovernorConfig represents CPU frequency governor handling
type GovernorConfig struct {
	Startup string `yaml:"startup" envconfig:"STARTUP"`
	Idle    string `yaml:"idle" envconfig:"IDLE"`
}

// WoLConfig arms Wake-on-LAN on the host NIC before each host suspend
//
//nolint:revive // mirrors the yaml section name
type WoLConfig struct {
	Interface string `yaml:"interface" envconfig:"INTERFACE"`
	Mode      string `yaml:"mode" envconfig:"MODE"`
}

// MetricsConfig represents the Prometheus textfile export
type MetricsConfig struct {
	Textfile string `yaml:"textfile" envconfig:"TEXTFILE"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
	File   string `yaml:"file" envconfig:"FILE"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}
