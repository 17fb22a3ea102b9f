package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ingestion pipeline counters.
type Metrics struct {
	FramesProcessed    prometheus.Counter
	FramesDropped      prometheus.Counter
	DetectionsAdmitted prometheus.Counter
	CooldownSuppressed prometheus.Counter
	BelowThreshold     prometheus.Counter
	StoreWriteFailures prometheus.Counter
	ModelErrors        prometheus.Counter
	LocationUnresolved prometheus.Counter

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "defect_frames_processed_total",
			Help: "Frames run through the detection pipeline",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "defect_frames_dropped_total",
			Help: "Frames dropped because the ingestion queue was full",
		}),
		DetectionsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "defect_detections_admitted_total",
			Help: "Detections persisted as events",
		}),
		CooldownSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "defect_cooldown_suppressed_total",
			Help: "Detections rejected by the per-class cooldown gate",
		}),
		BelowThreshold: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "defect_below_threshold_total",
			Help: "Detections discarded below the confidence threshold",
		}),
		StoreWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "defect_store_write_failures_total",
			Help: "Durable append failures",
		}),
		ModelErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "defect_model_errors_total",
			Help: "Frames skipped because the model was unavailable",
		}),
		LocationUnresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "defect_location_unresolved_total",
			Help: "Events persisted with an UNKNOWN location",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FramesProcessed,
		m.FramesDropped,
		m.DetectionsAdmitted,
		m.CooldownSuppressed,
		m.BelowThreshold,
		m.StoreWriteFailures,
		m.ModelErrors,
		m.LocationUnresolved,
	)

	return m
}

// Handler serves the registry for the /metrics route.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
