package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"defect-service/internal/metrics"
	"defect-service/internal/service"
)

// Frame is one tick of a continuous capture stream.
type Frame struct {
	Data       []byte
	GPS        *service.ClientGPS
	ReceivedAt time.Time
}

// IngestWorker decouples capture cadence from persistence latency: stream
// submissions land on a bounded queue and a single worker drains it through
// the ingestion pipeline. One bad frame never stops the stream.
type IngestWorker struct {
	queue   chan Frame
	ingest  *service.IngestService
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewIngestWorker(ingest *service.IngestService, queueSize int, m *metrics.Metrics, log zerolog.Logger) *IngestWorker {
	if queueSize <= 0 {
		queueSize = 32
	}
	return &IngestWorker{
		queue:   make(chan Frame, queueSize),
		ingest:  ingest,
		metrics: m,
		log:     log,
	}
}

// Enqueue hands a frame to the worker without blocking. When the queue is
// full the frame is dropped; the stream will deliver another one shortly.
func (w *IngestWorker) Enqueue(frame Frame) bool {
	select {
	case w.queue <- frame:
		return true
	default:
		w.metrics.FramesDropped.Inc()
		return false
	}
}

// Run drains the queue until ctx is cancelled.
func (w *IngestWorker) Run(ctx context.Context) {
	w.log.Info().Int("queue_size", cap(w.queue)).Msg("ingestion worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ingestion worker stopped")
			return
		case frame := <-w.queue:
			w.process(ctx, frame)
		}
	}
}

func (w *IngestWorker) process(ctx context.Context, frame Frame) {
	result, err := w.ingest.ProcessFrame(ctx, frame.Data, service.IngestOptions{
		ApplyCooldown: true,
		ClientGPS:     frame.GPS,
		SaveArtifact:  true,
	})
	if err != nil {
		if errors.Is(err, service.ErrModelUnavailable) {
			w.log.Warn().Err(err).Msg("model unavailable, frame skipped")
			return
		}
		w.log.Error().Err(err).Msg("frame ingestion failed")
		return
	}

	if len(result.Events) > 0 {
		w.log.Info().
			Int("events", len(result.Events)).
			Int("suppressed", result.Suppressed).
			Msg("stream frame ingested")
	}
}
