package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"defect-service/internal/metrics"
	"defect-service/internal/model"
)

type IngestService struct {
	detector   Detector
	classifier *Classifier
	gate       *CooldownGate
	resolver   *GeolocationResolver
	store      EventStore
	publisher  AlertPublisher
	metrics    *metrics.Metrics
	log        zerolog.Logger

	artifactDir string
	now         func() time.Time
}

func NewIngestService(
	detector Detector,
	classifier *Classifier,
	gate *CooldownGate,
	resolver *GeolocationResolver,
	store EventStore,
	publisher AlertPublisher,
	m *metrics.Metrics,
	artifactDir string,
	log zerolog.Logger,
) *IngestService {
	return &IngestService{
		detector:    detector,
		classifier:  classifier,
		gate:        gate,
		resolver:    resolver,
		store:       store,
		publisher:   publisher,
		metrics:     m,
		log:         log,
		artifactDir: artifactDir,
		now:         time.Now,
	}
}

type IngestOptions struct {
	// ApplyCooldown enables the per-class debounce. Continuous streams
	// set it; explicit single-image submissions bypass the gate.
	ApplyCooldown bool
	ClientGPS     *ClientGPS
	// SaveArtifact stores the frame on disk and references it from the
	// persisted events.
	SaveArtifact bool
}

type IngestResult struct {
	Events     []model.DetectionEvent `json:"events"`
	Raw        []RawDetection         `json:"raw_detections"`
	Suppressed int                    `json:"suppressed"`
	Discarded  int                    `json:"discarded"`
}

// ProcessFrame runs one frame through the full pipeline: detect, accept,
// gate, geotag, classify, persist, publish. Failures are isolated per
// frame and per event; a store write failure is reported to the caller but
// does not stop the remaining detections of the frame.
func (s *IngestService) ProcessFrame(ctx context.Context, frameJPEG []byte, opts IngestOptions) (*IngestResult, error) {
	s.metrics.FramesProcessed.Inc()

	raw, err := s.detector.Detect(ctx, frameJPEG)
	if err != nil {
		if errors.Is(err, ErrModelUnavailable) {
			s.metrics.ModelErrors.Inc()
		}
		return nil, fmt.Errorf("detect: %w", err)
	}

	result := &IngestResult{Raw: raw}
	if len(raw) == 0 {
		return result, nil
	}

	var imageRef *string
	var storeErrs []error

	for _, det := range raw {
		if !s.classifier.Accept(det.Confidence) {
			s.metrics.BelowThreshold.Inc()
			result.Discarded++
			continue
		}

		class, ok := model.ParseDefectClass(det.Class)
		if !ok {
			s.log.Warn().Str("label", det.Class).Msg("unknown detection label discarded")
			result.Discarded++
			continue
		}

		if opts.ApplyCooldown && !s.gate.Admit(class, s.now()) {
			s.metrics.CooldownSuppressed.Inc()
			result.Suppressed++
			continue
		}

		loc := s.resolver.Resolve(ctx, opts.ClientGPS)
		if loc.Source == model.LocationSourceUnknown {
			s.metrics.LocationUnresolved.Inc()
		}

		if opts.SaveArtifact && imageRef == nil {
			if ref, err := s.saveArtifact(frameJPEG); err != nil {
				s.log.Warn().Err(err).Msg("artifact write failed, persisting event without image")
			} else {
				imageRef = &ref
			}
		}

		event := s.classifier.Classify(class, det, loc)
		event.Timestamp = s.now().UTC().Truncate(time.Millisecond)
		event.ImageRef = imageRef

		if _, err := s.store.Append(ctx, event); err != nil {
			s.metrics.StoreWriteFailures.Inc()
			s.log.Error().Err(err).Str("class", string(class)).Msg("event append failed")
			storeErrs = append(storeErrs, fmt.Errorf("%w: %v", ErrStoreWrite, err))
			continue
		}

		s.metrics.DetectionsAdmitted.Inc()
		result.Events = append(result.Events, *event)

		if s.publisher != nil {
			if err := s.publisher.PublishDetection(event); err != nil {
				s.log.Warn().Err(err).Msg("alert publish failed")
			}
		}
	}

	return result, errors.Join(storeErrs...)
}

func (s *IngestService) saveArtifact(frameJPEG []byte) (string, error) {
	if s.artifactDir == "" {
		return "", fmt.Errorf("artifact dir not configured")
	}
	if err := os.MkdirAll(s.artifactDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("capture_%s.jpg", s.now().UTC().Format("20060102_150405.000"))
	path := filepath.Join(s.artifactDir, name)
	if err := os.WriteFile(path, frameJPEG, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
