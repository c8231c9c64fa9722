// Package metrics collects CLI run metrics and exports them in the
// node_exporter textfile format, so a cron-driven guard or migrate run can
// be scraped after it exits.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm/schemaward/pkg/guard"
	"github.com/pthm/schemaward/pkg/migrator"
)

// Registry holds every metric a single CLI invocation records.
type Registry struct {
	reg *prometheus.Registry

	migrate *migrator.Metrics

	guardFiles      prometheus.Gauge
	guardViolations *prometheus.GaugeVec
	lastRun         *prometheus.GaugeVec
}

// New creates a registry with the migration and guard metrics registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg:     reg,
		migrate: migrator.NewMetrics(reg),
		guardFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "schemaward",
			Subsystem: "guard",
			Name:      "files_checked",
			Help:      "Migration source files checked by the last guard run.",
		}),
		guardViolations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "schemaward",
			Subsystem: "guard",
			Name:      "violations",
			Help:      "Violations found by the last guard run, by rule.",
		}, []string{"rule"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "schemaward",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time a command last completed, by command and outcome.",
		}, []string{"command", "outcome"}),
	}
	reg.MustRegister(r.guardFiles, r.guardViolations, r.lastRun)
	return r
}

// Migrator returns the migration metrics for migrator.WithMetrics.
func (r *Registry) Migrator() *migrator.Metrics {
	return r.migrate
}

// ObserveGuard records the outcome of a guard scan. Every rule gets a
// series, so a rule that stops matching drops to zero.
func (r *Registry) ObserveGuard(rules []guard.Rule, report *guard.Report) {
	r.guardFiles.Set(float64(report.Files))
	for _, rule := range rules {
		r.guardViolations.WithLabelValues(rule.ID).Set(0)
	}
	for id, vs := range report.ByRule() {
		r.guardViolations.WithLabelValues(id).Set(float64(len(vs)))
	}
}

// MarkRun records that command finished with err.
func (r *Registry) MarkRun(command string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.lastRun.WithLabelValues(command, outcome).SetToCurrentTime()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteTextfile writes every metric to path atomically.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
