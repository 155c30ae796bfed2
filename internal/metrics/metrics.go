// Package metrics counts pipeline outcomes and exports them in the Prometheus
// text format for a node-exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reviewharvest"

// Recorder holds the pipeline counters on a private registry.
type Recorder struct {
	registry       *prometheus.Registry
	accepted       *prometheus.CounterVec
	skipped        *prometheus.CounterVec
	failed         *prometheus.CounterVec
	stageFailures  *prometheus.CounterVec
	rateLimitWaits *prometheus.CounterVec
	lastSuccess    *prometheus.GaugeVec
}

// New builds a Recorder with all counters registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_accepted_total",
			Help:      "Items a stage accepted and persisted.",
		}, []string{"stage"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_skipped_total",
			Help:      "Items a stage skipped, by reason.",
		}, []string{"stage", "reason"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_failed_total",
			Help:      "Items left for retry after an item-local failure.",
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Stage runs aborted by a fatal error.",
		}, []string{"stage"}),
		rateLimitWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_waits_total",
			Help:      "Backoff sleeps taken after a throttled API call.",
		}, []string{"api"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_last_success_timestamp_seconds",
			Help:      "Unix time of the last completed stage run.",
		}, []string{"stage"}),
	}
	r.registry.MustRegister(r.accepted, r.skipped, r.failed, r.stageFailures, r.rateLimitWaits, r.lastSuccess)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ItemAccepted implements stages.Observer.
func (r *Recorder) ItemAccepted(stage string) {
	r.accepted.WithLabelValues(stage).Inc()
}

// ItemSkipped implements stages.Observer.
func (r *Recorder) ItemSkipped(stage, reason string) {
	r.skipped.WithLabelValues(stage, reason).Inc()
}

// ItemFailed implements stages.Observer.
func (r *Recorder) ItemFailed(stage string) {
	r.failed.WithLabelValues(stage).Inc()
}

// StageFailed counts a stage aborted by a fatal error.
func (r *Recorder) StageFailed(stage string) {
	r.stageFailures.WithLabelValues(stage).Inc()
}

// StageSucceeded stamps the completion time of a stage, in Unix seconds.
func (r *Recorder) StageSucceeded(stage string, unixSeconds float64) {
	r.lastSuccess.WithLabelValues(stage).Set(unixSeconds)
}

// RateLimitWait counts one backoff sleep against api.
func (r *Recorder) RateLimitWait(api string) {
	r.rateLimitWaits.WithLabelValues(api).Inc()
}

// WriteTextfile writes the current counters to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
