package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"idlepower/internal/agent"
	"idlepower/internal/command"
	"idlepower/internal/config"
	"idlepower/internal/configdir"
	"idlepower/internal/diag"
	"idlepower/internal/idle"
	"idlepower/internal/logging"
	"idlepower/internal/suspend"
	"idlepower/internal/tui"
	"idlepower/internal/usbmon"
	"idlepower/internal/wol"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) <= 1 {
		printUsage()
		os.Exit(1)
	}

	command := strings.ToLower(os.Args[1])
	if handler, ok := commandHandlers()[command]; ok {
		handler()
		return
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
	printUsage()
	os.Exit(1)
}

func commandHandlers() map[string]func() {
	return map[string]func(){
		"run":     runDaemon,
		"status":  runStatus,
		"watch":   runWatch,
		"config":  runConfig,
		"suspend": runSuspend,
		"wol":     runWoL,
		"wake":    runWake,
		"diag":    runDiag,
		"version": runVersion,
		"help":    printUsage,
		"--help":  printUsage,
		"-h":      printUsage,
	}
}

func runVersion() {
	fmt.Printf("idlepower version %s\n", version)
}

// flagValue returns the value following name in args ("--config x" or "--config=x")
func flagValue(args []string, name string) string {
	for i, arg := range args {
		if arg == name && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, name+"=") {
			return strings.TrimPrefix(arg, name+"=")
		}
	}
	return ""
}

func loadConfig(args []string) (config.Config, error) {
	if path := flagValue(args, "--config"); path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format := logging.Format(cfg.Format)
	if cfg.File != "" {
		return logging.NewFileLogger(level, format, cfg.File)
	}
	return logging.NewWriterLogger(level, format, os.Stderr), nil
}

// runDaemon runs the idle detection loop until SIGINT/SIGTERM or a fatal error
func runDaemon() {
	cfg, err := loadConfig(os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	logger.Info("app.started", "idlepower started", map[string]interface{}{
		"version": version,
		"ts":      time.Now().UTC().Format(time.RFC3339),
	})

	a, cleanup, err := agent.FromConfig(ctx, &cfg, logger)
	if err != nil {
		logger.Error("app.init_failed", "Failed to initialize daemon", map[string]interface{}{
			"error": err.Error(),
		})
		cleanup()
		stop()
		_ = logger.Close()
		os.Exit(1)
	}

	runErr := a.Run(ctx)
	stop()
	cleanup()

	exitReason := "normal"
	if runErr != nil {
		exitReason = "error"
		if errors.Is(runErr, usbmon.ErrSourceClosed) {
			exitReason = "source_closed"
		}
	}
	logger.Info("app.exited", "idlepower exited", map[string]interface{}{
		"ts":     time.Now().UTC().Format(time.RFC3339),
		"reason": exitReason,
	})
	_ = logger.Close()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "idlepower: %v\n", runErr)
		os.Exit(1)
	}
}

// runStatus prints the daemon's last persisted state
func runStatus() {
	cfg, err := loadConfig(os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewNopLogger()
	fmt.Println("=== idlepower Status ===")
	fmt.Println()

	snap, err := idle.NewStateManager(cfg.Idle.StateFile, logger).Load()
	if err != nil {
		fmt.Printf("Daemon state: unavailable (%v)\n", err)
	} else {
		printSnapshot(snap)
	}

	fmt.Println()
	enabled, err := suspend.NewManager(configdir.StateDir(), logger).Enabled()
	switch {
	case err != nil:
		fmt.Printf("Auto-suspend: unknown (%v)\n", err)
	case enabled:
		fmt.Println("Auto-suspend: ENABLED ✓")
	default:
		fmt.Println("Auto-suspend: DISABLED ✗")
	}

	plans, err := suspend.ReadHistory(historyPath(), 1)
	if err == nil && len(plans) > 0 {
		p := plans[0]
		fmt.Println()
		fmt.Println("Last suspend plan:")
		fmt.Printf("  Started:  %s\n", p.CreatedAt.Local().Format(time.RFC3339))
		fmt.Printf("  Outcome:  %s\n", p.Outcome)
		for _, u := range p.Units {
			line := fmt.Sprintf("  %-4s %-8s %s", u.Kind, u.ID, u.Status)
			if u.Error != "" {
				line += "  (" + u.Error + ")"
			}
			fmt.Println(line)
		}
	}
}

func printSnapshot(snap idle.Snapshot) {
	fmt.Printf("Phase:            %s\n", snap.Phase)
	fmt.Printf("Idle for:         %s of %s\n",
		formatDuration(time.Duration(snap.IdleForSeconds)*time.Second),
		formatDuration(time.Duration(snap.ThresholdSeconds)*time.Second))
	fmt.Printf("Last activity:    %s\n", snap.LastActivityAt.Local().Format(time.RFC3339))
	if snap.HoldUntil != nil {
		fmt.Printf("Resume grace:     until %s\n", snap.HoldUntil.Local().Format(time.RFC3339))
	}
	if snap.CPUEnabled {
		if snap.CPUMeanPct != nil {
			fmt.Printf("CPU window mean:  %.1f%% (threshold %.0f%%)\n", *snap.CPUMeanPct, snap.CPUThresholdPct)
		} else {
			fmt.Println("CPU window mean:  warming up")
		}
	}
	if len(snap.GatingReasons) > 0 {
		fmt.Printf("Gating:           %s\n", strings.Join(snap.GatingReasons, ", "))
	}
	if snap.GuardReason != "" {
		fmt.Printf("Guard:            %s\n", snap.GuardReason)
	}
	if snap.PlanInProgress {
		fmt.Println("Suspend plan:     in progress")
	}
	fmt.Printf("Updated:          %s ago\n", formatDuration(time.Since(snap.UpdatedAt)))
}

func historyPath() string {
	return filepath.Join(configdir.StateDir(), suspend.HistoryFileName)
}

// runWatch starts the live status view
func runWatch() {
	cfg, err := loadConfig(os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewNopLogger()
	stateDir := configdir.StateDir()

	p := tea.NewProgram(tui.NewModel(logger, tui.Sources{
		StateFile:   cfg.Idle.StateFile,
		HistoryFile: historyPath(),
		StateDir:    stateDir,
		Switch:      suspend.NewManager(stateDir, logger),
	}))

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

func runConfig() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: idlepower config <subcommand>\n")
		fmt.Fprintf(os.Stderr, "Subcommands:\n")
		fmt.Fprintf(os.Stderr, "  test [path]  Test configuration file for validity\n")
		os.Exit(1)
	}

	subcommand := strings.ToLower(os.Args[2])

	switch subcommand {
	case "test":
		runConfigTest(logging.NewLogger(logging.LevelInfo))
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", subcommand)
		fmt.Fprintf(os.Stderr, "Valid subcommands: test\n")
		os.Exit(1)
	}
}

// runConfigTest validates a configuration file, or the system config when
// no path is given
func runConfigTest(logger *logging.Logger) {
	var (
		cfg       config.Config
		configErr error
	)

	if len(os.Args) > 3 {
		path := os.Args[3]
		fmt.Printf("Testing configuration file: %s\n", path)
		cfg, configErr = config.LoadFrom(path)
	} else {
		fmt.Printf("Testing configuration: %s\n", config.SystemConfigPath())
		cfg, configErr = config.Load()
	}
	fmt.Println()

	if configErr != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation FAILED:\n")
		fmt.Fprintf(os.Stderr, "   %v\n", configErr)

		logger.Error("config.validation.error", "Configuration validation failed", map[string]interface{}{
			"error": configErr.Error(),
		})
		os.Exit(1)
	}

	fmt.Println("✓ Configuration is VALID")
	fmt.Println()
	fmt.Println("Configuration Summary:")
	fmt.Printf("  USB monitor:          %s (%d-byte headers)\n", cfg.USB.MonitorPath, cfg.USB.HeaderBytes)
	fmt.Printf("  USB buses:            %s\n", strings.Join(cfg.USB.Buses, ", "))
	fmt.Printf("  Minimum idle:         %d min\n", cfg.Idle.MinIdleMinutes)
	fmt.Printf("  Poll interval:        %d s\n", cfg.Idle.PollIntervalSeconds)
	if cfg.CPU.Enabled {
		fmt.Printf("  CPU monitoring:       < %.0f%% over %d min\n", cfg.CPU.ThresholdPct, cfg.CPU.WindowMinutes)
	} else {
		fmt.Println("  CPU monitoring:       off")
	}
	fmt.Printf("  VM backend:           %s (timeout %d s)\n", cfg.VM.Backend, cfg.VM.SuspendTimeoutSeconds)
	fmt.Printf("  Host suspend:         %t (dry run %t)\n", cfg.Host.Enabled, cfg.Host.DryRun)
	fmt.Printf("  Guard flag files:     %s\n", strings.Join(cfg.Guard.FlagFiles, ", "))
	fmt.Printf("  Log Level:            %s\n", cfg.Logging.Level)
	fmt.Printf("  Log Format:           %s\n", cfg.Logging.Format)

	logger.Info("config.validation.ok", "Configuration validation passed", map[string]interface{}{
		"vm_backend": cfg.VM.Backend,
		"cpu":        cfg.CPU.Enabled,
	})
}

func runSuspend() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: idlepower suspend <enable|disable|status>\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Subcommands:\n")
		fmt.Fprintf(os.Stderr, "  enable   Enable auto-suspend (default)\n")
		fmt.Fprintf(os.Stderr, "  disable  Disable auto-suspend\n")
		fmt.Fprintf(os.Stderr, "  status   Show auto-suspend switch and recent plans\n")
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.LevelInfo)
	manager := suspend.NewManager(configdir.StateDir(), logger)

	switch strings.ToLower(os.Args[2]) {
	case "enable":
		if err := manager.Enable(); err != nil {
			fmt.Fprintf(os.Stderr, "Error enabling auto-suspend: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Auto-suspend enabled")
	case "disable":
		if err := manager.Disable(); err != nil {
			fmt.Fprintf(os.Stderr, "Error disabling auto-suspend: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Auto-suspend disabled")
		fmt.Println()
		fmt.Println("The daemon keeps running but holds the host ACTIVE.")
	case "status":
		runSuspendStatus(manager)
	default:
		fmt.Fprintf(os.Stderr, "Unknown suspend subcommand: %s\n", os.Args[2])
		fmt.Fprintf(os.Stderr, "Valid subcommands: enable, disable, status\n")
		os.Exit(1)
	}
}

func runSuspendStatus(manager *suspend.Manager) {
	state, err := manager.LoadState()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading suspend state: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Auto-Suspend Status ===")
	fmt.Println()
	if state.Enabled {
		fmt.Println("Status: ENABLED ✓")
	} else {
		fmt.Println("Status: DISABLED ✗")
	}
	if !state.UpdatedAt.IsZero() {
		fmt.Printf("Changed: %s\n", state.UpdatedAt.Local().Format(time.RFC3339))
	}

	plans, err := suspend.ReadHistory(historyPath(), 5)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading suspend history: %v\n", err)
		return
	}
	fmt.Println()
	if len(plans) == 0 {
		fmt.Println("No suspend plans recorded yet.")
		return
	}
	fmt.Println("Recent plans:")
	for i := len(plans) - 1; i >= 0; i-- {
		p := plans[i]
		fmt.Printf("  %s  %-9s  %d unit(s)\n", p.CreatedAt.Local().Format("2006-01-02 15:04:05"), p.Outcome, len(p.Units))
	}
}

func runWoL() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: idlepower wol <status|arm> [interface]\n")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	iface := cfg.WoL.Interface
	if len(os.Args) > 3 {
		iface = os.Args[3]
	}
	if iface == "" {
		fmt.Fprintf(os.Stderr, "No interface given and wol.interface is not configured\n")
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.LevelWarn)
	armer := wol.NewArmer(command.NewExecRunner(), logger, iface, cfg.WoL.Mode)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch strings.ToLower(os.Args[2]) {
	case "status":
		status, err := armer.Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Interface:  %s\n", status.Interface)
		fmt.Printf("Supported:  %s\n", strings.Join(status.Supported, ""))
		fmt.Printf("Wake-on:    %s\n", status.Current)
		if status.Armed() {
			fmt.Println("Magic packet wake: ARMED ✓")
		} else {
			fmt.Println("Magic packet wake: NOT ARMED ✗")
		}
		if bcast, err := wol.BroadcastAddr(iface); err == nil {
			fmt.Printf("Broadcast:  %s\n", bcast)
		}
	case "arm":
		if err := armer.Arm(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error arming Wake-on-LAN: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Wake-on-LAN armed on %s\n", iface)
	default:
		fmt.Fprintf(os.Stderr, "Unknown wol subcommand: %s\n", os.Args[2])
		fmt.Fprintf(os.Stderr, "Valid subcommands: status, arm\n")
		os.Exit(1)
	}
}

// runWake sends a magic packet to wake another suspended host
func runWake() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: idlepower wake <mac> [broadcast-ip]\n")
		os.Exit(1)
	}

	broadcast := ""
	if len(os.Args) > 3 {
		broadcast = os.Args[3]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sender := wol.NewSender(logging.NewLogger(logging.LevelWarn))
	if err := sender.Send(ctx, os.Args[2], broadcast); err != nil {
		fmt.Fprintf(os.Stderr, "Error sending magic packet: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Magic packet sent to %s\n", os.Args[2])
}

// runDiag writes a support bundle
func runDiag() {
	cfg, err := loadConfig(os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	stateDir := configdir.StateDir()
	diagCfg := diag.NewConfig(version)
	if out := flagValue(os.Args[2:], "--output"); out != "" {
		diagCfg.OutputPath = out
	}
	diagCfg.ConfigPath = config.SystemConfigPath()
	if path := flagValue(os.Args[2:], "--config"); path != "" {
		diagCfg.ConfigPath = path
	}
	diagCfg.Effective = cfg
	diagCfg.LogFile = cfg.Logging.File
	diagCfg.StateFiles["idle_state.json"] = cfg.Idle.StateFile
	diagCfg.StateFiles[suspend.StateFileName] = filepath.Join(stateDir, suspend.StateFileName)
	diagCfg.StateFiles[suspend.HistoryFileName] = historyPath()
	diagCfg.StateFiles[tui.UIStateFileName] = filepath.Join(stateDir, tui.UIStateFileName)

	out, err := diag.NewPackager(diagCfg, logging.NewLogger(logging.LevelWarn)).CreatePackage()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating diagnostic package: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Diagnostic package written to %s\n", out)
}

func printUsage() {
	fmt.Printf(`idlepower - USB idle detection and suspend daemon (version %s)

Usage:
  idlepower run [--config path]     Run the daemon (foreground, for systemd)
  idlepower status [--config path]  Show the daemon's last persisted state
  idlepower watch [--config path]   Live status view
  idlepower config test [path]      Test configuration file for validity
  idlepower suspend <subcommand>    Auto-suspend switch (enable, disable, status)
  idlepower wol <status|arm> [if]   Inspect or arm Wake-on-LAN on the host NIC
  idlepower wake <mac> [broadcast]  Send a Wake-on-LAN magic packet
  idlepower diag [--output path]    Write a support bundle (ZIP)
  idlepower version                 Print version information
  idlepower help                    Show this help message

Environment:
  IDLEPOWER_CONFIG_DIR   Configuration directory (default /etc/idlepower)
  IDLEPOWER_STATE_DIR    State directory (default /var/lib/idlepower)
  IDLEPOWER_<SECTION>_<KEY>  Override any config key, e.g. IDLEPOWER_IDLE_MIN_IDLE_MINUTES=20
`, version)
}

// formatDuration formats a duration in human-readable format
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
