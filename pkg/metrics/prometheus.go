package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements pipeline metrics using Prometheus.
type Recorder struct {
	cyclesTotal      *prometheus.CounterVec
	predictionsTotal *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	lastPrice        prometheus.Gauge
	stageLatency     *prometheus.HistogramVec
}

var (
	once     sync.Once
	recorder *Recorder
)

// New returns the process-wide metrics recorder. Collectors register with the
// default registry exactly once.
func New() *Recorder {
	once.Do(func() {
		recorder = newRecorder()
	})
	return recorder
}

func newRecorder() *Recorder {
	return &Recorder{
		cyclesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphabot_cycles_total",
				Help: "Total number of prediction cycles by result",
			},
			[]string{"result"}, // completed, failed, skipped
		),
		predictionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphabot_predictions_total",
				Help: "Total number of signals produced by strategy and action",
			},
			[]string{"strategy", "action"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphabot_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "alphabot_last_price_usd",
				Help: "Last fetched market price in USD",
			},
		),
		stageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alphabot_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"}, // fetch, predict, submit
		),
	}
}

// RecordCycle records a cycle outcome.
func (r *Recorder) RecordCycle(result string) {
	r.cyclesTotal.WithLabelValues(result).Inc()
}

// RecordPrediction records a produced signal.
func (r *Recorder) RecordPrediction(strategy, action string) {
	r.predictionsTotal.WithLabelValues(strategy, action).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last fetched price.
func (r *Recorder) RecordLastPrice(price float64) {
	r.lastPrice.Set(price)
}

// RecordStageLatency records pipeline stage latency.
func (r *Recorder) RecordStageLatency(stage string, d time.Duration) {
	r.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}
