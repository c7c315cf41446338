// Package metrics exposes Prometheus metrics for redaction runs. A nil
// *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "faceshield"

// Collector holds the run and frame metrics.
type Collector struct {
	framesProcessed prometheus.Counter
	boxesRedacted   prometheus.Counter
	boxesRejected   prometheus.Counter
	callbackErrors  prometheus.Counter
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	frameDuration   prometheus.Histogram
	activeRuns      prometheus.Gauge
}

// NewCollector registers all metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		framesProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Total number of frames written to an encoder",
		}),
		boxesRedacted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boxes_redacted_total",
			Help:      "Total number of detection boxes blurred",
		}),
		boxesRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boxes_rejected_total",
			Help:      "Total number of degenerate detection boxes dropped",
		}),
		callbackErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observer_errors_total",
			Help:      "Total number of failed progress or terminal deliveries",
		}),
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of finished runs, by outcome",
		}, []string{"outcome"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a run",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		frameDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Time spent redacting and encoding one frame",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		activeRuns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Number of runs currently streaming",
		}),
	}
}

// ObserveFrame records one written frame.
func (c *Collector) ObserveFrame(d time.Duration, redacted, rejected int) {
	if c == nil {
		return
	}
	c.framesProcessed.Inc()
	c.frameDuration.Observe(d.Seconds())
	if redacted > 0 {
		c.boxesRedacted.Add(float64(redacted))
	}
	if rejected > 0 {
		c.boxesRejected.Add(float64(rejected))
	}
}

// RunStarted marks a run as active.
func (c *Collector) RunStarted() {
	if c == nil {
		return
	}
	c.activeRuns.Inc()
}

// RunFinished records the outcome of a run started with RunStarted.
func (c *Collector) RunFinished(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.activeRuns.Dec()
	c.runsTotal.WithLabelValues(outcome).Inc()
	c.runDuration.Observe(d.Seconds())
}

// CallbackFailed counts an observer error.
func (c *Collector) CallbackFailed() {
	if c == nil {
		return
	}
	c.callbackErrors.Inc()
}
