package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exporter holds idlepower's Prometheus series on a private registry and
// flushes them to a node_exporter textfile. There is no HTTP listener.
type Exporter struct {
	registry *prometheus.Registry
	path     string

	Phase          prometheus.Gauge
	IdleSeconds    prometheus.Gauge
	CPUMean        prometheus.Gauge
	Transitions    *prometheus.CounterVec
	ActivityEvents prometheus.Counter
	SkippedRecords prometheus.Gauge
	Plans          *prometheus.CounterVec
	Units          *prometheus.CounterVec
	Resumes        prometheus.Counter
}

// NewExporter registers all series. path may be empty, in which case
// Flush is a no-op.
func NewExporter(path string) *Exporter {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Exporter{
		registry: registry,
		path:     path,

		Phase: factory.NewGauge(prometheus.GaugeOpts{
			Name: "idlepower_idle_phase",
			Help: "Current phase, 1 when IDLE and 0 when ACTIVE",
		}),
		IdleSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "idlepower_idle_seconds",
			Help: "Seconds since the last observed USB activity",
		}),
		CPUMean: factory.NewGauge(prometheus.GaugeOpts{
			Name: "idlepower_cpu_window_mean_ratio",
			Help: "Mean busy fraction over the utilization window",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idlepower_phase_transitions_total",
			Help: "Phase transitions by target phase",
		}, []string{"to"}),
		ActivityEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "idlepower_usb_activity_events_total",
			Help: "USB activity events on monitored buses",
		}),
		SkippedRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "idlepower_usb_skipped_records",
			Help: "Malformed or short usbmon records skipped since start",
		}),
		Plans: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idlepower_suspend_plans_total",
			Help: "Suspend plans by outcome",
		}, []string{"outcome"}),
		Units: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idlepower_suspend_units_total",
			Help: "Suspend plan units by kind and final status",
		}, []string{"kind", "status"}),
		Resumes: factory.NewCounter(prometheus.CounterOpts{
			Name: "idlepower_resumes_total",
			Help: "Detected host resumes",
		}),
	}
}

// Registry exposes the private registry (tests, custom gatherers)
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Flush writes the current values atomically to the textfile
func (e *Exporter) Flush() error {
	if e.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(e.path), 0o750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(e.path, e.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
