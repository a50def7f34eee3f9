package agent

import (
	"context"
	"path/filepath"
	"time"

	"idlepower/internal/command"
	"idlepower/internal/config"
	"idlepower/internal/configdir"
	"idlepower/internal/governor"
	"idlepower/internal/guard"
	"idlepower/internal/idle"
	"idlepower/internal/logging"
	"idlepower/internal/metrics"
	"idlepower/internal/suspend"
	"idlepower/internal/usbmon"
	"idlepower/internal/vm"
	"idlepower/internal/wake"
	"idlepower/internal/wol"
)

// FromConfig opens the usbmon source and builds every production
// collaborator. The returned cleanup closes what was opened.
func FromConfig(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Agent, func(), error) {
	runner := command.NewExecRunner()
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.USB.LoadModule {
		if err := usbmon.LoadModule(ctx, runner, logger); err != nil {
			logger.Warn("agent.usbmon.modprobe_failed", "Failed to load usbmon module", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	src, err := usbmon.Open(cfg.USB.MonitorPath)
	if err != nil {
		return nil, cleanup, err
	}
	// a blocked read only returns once the device is closed
	stopClose := context.AfterFunc(ctx, func() { _ = src.Close() })
	cleanups = append(cleanups, func() {
		if stopClose() {
			_ = src.Close()
		}
	})

	samplerOpts := []usbmon.SamplerOption{usbmon.WithHeaderSize(cfg.USB.HeaderBytes)}
	if cfg.USB.ResolveNames {
		samplerOpts = append(samplerOpts, usbmon.WithNamer(usbmon.NewDeviceNamer(runner)))
	}
	sampler := usbmon.NewSampler(src, usbmon.NewBusFilter(cfg.USB.Buses), logger, samplerOpts...)

	var util UtilizationSource
	if cfg.CPU.Enabled {
		sources := []metrics.BusySource{metrics.NewCPUCollector(metrics.DefaultProcStat)}
		if cfg.CPU.IncludeGPU {
			gpu := metrics.NewGPUCollector(logger)
			if err := gpu.Initialize(); err != nil {
				logger.Warn("agent.gpu.init_failed", "GPU utilization unavailable, using CPU only", map[string]interface{}{
					"error": err.Error(),
				})
			} else {
				sources = append(sources, gpu)
				cleanups = append(cleanups, gpu.Shutdown)
			}
		}
		util = metrics.NewUtilizationSampler(
			time.Duration(cfg.CPU.SampleIntervalSeconds)*time.Second,
			time.Duration(cfg.CPU.WindowMinutes)*time.Minute,
			logger, sources...)
	}

	stateDir := configdir.StateDir()
	switchManager := suspend.NewManager(stateDir, logger)

	guards := []guard.Guard{switchManager}
	if len(cfg.Guard.FlagFiles) > 0 {
		guards = append(guards, guard.NewFlagFileGuard(cfg.Guard.FlagFiles...))
	}
	if cfg.Guard.CheckInhibitors {
		guards = append(guards, guard.NewInhibitorGuard(runner, logger))
	}

	controller, err := vm.New(cfg.VM, runner, logger)
	if err != nil {
		return nil, cleanup, err
	}

	var hostOpts []suspend.HostOption
	if cfg.WoL.Interface != "" {
		armer := wol.NewArmer(runner, logger, cfg.WoL.Interface, cfg.WoL.Mode)
		hostOpts = append(hostOpts, suspend.WithPrepare("wol", armer.Arm))
	}
	host := suspend.NewSystemctlSuspender(runner, logger, cfg.Host.DryRun, hostOpts...)
	if cfg.Host.Enabled && !cfg.Host.DryRun {
		if err := host.CheckCanSuspend(ctx); err != nil {
			logger.Warn("agent.host.cannot_suspend", "Host suspend may not work", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	orchestrator := suspend.NewOrchestrator(suspend.Config{
		UnitTimeout:  time.Duration(cfg.VM.SuspendTimeoutSeconds) * time.Second,
		PollInterval: time.Duration(cfg.VM.PollIntervalSeconds) * time.Second,
		HostEnabled:  cfg.Host.Enabled,
	}, controller, host, logger,
		suspend.WithHistory(suspend.NewHistory(filepath.Join(stateDir, suspend.HistoryFileName), logger)))

	deps := Deps{
		Activity:    sampler,
		Utilization: util,
		Guard:       guard.NewComposite(guards...),
		Planner:     orchestrator,
		Wake:        wake.NewDetector(logger),
		Governor:    governor.New("", logger),
		State:       idle.NewStateManager(cfg.Idle.StateFile, logger),
		Exporter:    metrics.NewExporter(cfg.Metrics.Textfile),
	}

	logger.Info("agent.wired", "Agent collaborators ready", map[string]interface{}{
		"monitor":    cfg.USB.MonitorPath,
		"buses":      cfg.USB.Buses,
		"vm_backend": cfg.VM.Backend,
		"guards":     len(guards),
		"host":       cfg.Host.Enabled,
		"dry_run":    cfg.Host.DryRun,
		"wol":        cfg.WoL.Interface,
	})

	return New(SettingsFromConfig(cfg), deps, logger), cleanup, nil
}
