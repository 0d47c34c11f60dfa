package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	historyTotal *prometheus.CounterVec
	loadLatency  *prometheus.HistogramVec
	loadErrors   *prometheus.CounterVec
	cacheTotal   *prometheus.CounterVec
	shapeOps     *prometheus.CounterVec
}

// New creates a recorder registered on reg; nil means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		historyTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartfeed_history_requests_total",
				Help: "History requests by resolution and response status",
			},
			[]string{"resolution", "status"},
		),
		loadLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chartfeed_bar_load_duration_seconds",
				Help:    "Duration of raw bar loads from the backing store",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		loadErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartfeed_bar_load_errors_total",
				Help: "Failed raw bar loads",
			},
			[]string{"backend"},
		),
		cacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartfeed_bar_cache_lookups_total",
				Help: "Bar snapshot cache lookups by result",
			},
			[]string{"result"},
		),
		shapeOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartfeed_shape_operations_total",
				Help: "Shape mutations by operation",
			},
			[]string{"op"},
		),
	}
}

// RecordHistory counts a served history request.
func (r *Recorder) RecordHistory(resolution, status string) {
	r.historyTotal.WithLabelValues(resolution, status).Inc()
}

// RecordBarLoad records a raw load and its outcome.
func (r *Recorder) RecordBarLoad(backend string, d time.Duration, err error) {
	r.loadLatency.WithLabelValues(backend).Observe(d.Seconds())
	if err != nil {
		r.loadErrors.WithLabelValues(backend).Inc()
	}
}

func (r *Recorder) RecordCache(result string) {
	r.cacheTotal.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordShapeOp(op string) {
	r.shapeOps.WithLabelValues(op).Inc()
}
