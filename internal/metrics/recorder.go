package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wonny/tscore/backend/internal/contracts"
)

// Cycle outcome labels
const (
	StatusSuccess       = "success"
	StatusInvalidConfig = "invalid_config"
	StatusTimeout       = "timeout"
	StatusError         = "error"
	StatusSkipped       = "skipped" // lock held elsewhere
)

// Recorder collects scoring cycle metrics on a private registry.
// Exposed through a node-exporter textfile, never an HTTP listener.
type Recorder struct {
	registry *prometheus.Registry

	cyclesTotal   *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	lastCycle     prometheus.Gauge
	securities    *prometheus.GaugeVec
	unscoreable   *prometheus.CounterVec
	coverage      *prometheus.GaugeVec
	meanComposite prometheus.Gauge
}

// New creates a new Prometheus metrics recorder
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		cyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tscore",
				Name:      "cycles_total",
				Help:      "Scoring cycles by outcome",
			},
			[]string{"status"},
		),
		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "tscore",
				Name:      "cycle_duration_seconds",
				Help:      "Wall time of completed scoring cycles",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		lastCycle: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tscore",
				Name:      "last_cycle_timestamp_seconds",
				Help:      "Unix time of the last successful cycle",
			},
		),
		securities: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tscore",
				Name:      "securities",
				Help:      "Securities per risk category in the last cycle",
			},
			[]string{"category"},
		),
		unscoreable: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tscore",
				Name:      "unscoreable_total",
				Help:      "Unscoreable records by reason code",
			},
			[]string{"reason"},
		),
		coverage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tscore",
				Name:      "signal_coverage_ratio",
				Help:      "Share of securities carrying each signal kind",
			},
			[]string{"kind"},
		),
		meanComposite: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tscore",
				Name:      "mean_composite",
				Help:      "Mean composite over scoreable securities in the last cycle",
			},
		),
	}
}

// Registry returns the private registry (tests, textfile export)
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordFailure counts a cycle that produced no result
func (r *Recorder) RecordFailure(status string) {
	r.cyclesTotal.WithLabelValues(status).Inc()
}

// RecordCycle records a committed cycle
func (r *Recorder) RecordCycle(scores []contracts.CompositeScore, duration time.Duration, finishedAt time.Time) {
	r.cyclesTotal.WithLabelValues(StatusSuccess).Inc()
	r.cycleDuration.Observe(duration.Seconds())
	r.lastCycle.Set(float64(finishedAt.Unix()))

	counts := make(map[contracts.RiskCategory]int, 5)
	sum, n := 0.0, 0
	for _, s := range scores {
		counts[s.Category]++
		if !s.Scoreable {
			r.unscoreable.WithLabelValues(string(s.Reason)).Inc()
			continue
		}
		sum += s.Composite
		n++
	}

	// 모든 등급을 매 사이클 갱신 (사라진 등급은 0)
	for _, c := range append(contracts.OrderedCategories(), contracts.CategoryInsufficientData) {
		r.securities.WithLabelValues(string(c)).Set(float64(counts[c]))
	}

	if n > 0 {
		r.meanComposite.Set(sum / float64(n))
	} else {
		r.meanComposite.Set(0)
	}
}

// RecordCoverage publishes per-kind input coverage
func (r *Recorder) RecordCoverage(q *contracts.DataQualitySnapshot) {
	for kind, rate := range q.Coverage {
		r.coverage.WithLabelValues(string(kind)).Set(rate)
	}
}

// WriteTextfile writes all metrics atomically for the node-exporter
// textfile collector
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
