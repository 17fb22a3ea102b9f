package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defect-service/internal/config"
	"defect-service/internal/metrics"
	"defect-service/internal/model"
)

type fakeDetector struct {
	raw []RawDetection
	err error
}

func (d *fakeDetector) Detect(context.Context, []byte) ([]RawDetection, error) {
	return d.raw, d.err
}

type fakePublisher struct {
	published []model.DetectionEvent
	err       error
}

func (p *fakePublisher) PublishDetection(event *model.DetectionEvent) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, *event)
	return nil
}

type ingestFixture struct {
	svc       *IngestService
	store     *fakeEventStore
	detector  *fakeDetector
	publisher *fakePublisher
	metrics   *metrics.Metrics
	clock     *time.Time
}

func newIngestFixture(t *testing.T, raw []RawDetection) *ingestFixture {
	t.Helper()

	f := &ingestFixture{
		store:     newFakeEventStore(),
		detector:  &fakeDetector{raw: raw},
		publisher: &fakePublisher{},
		metrics:   metrics.New(),
	}

	classifier := NewClassifier(config.DetectionConfig{
		ConfidenceThreshold: 0.4,
		SeverityMedium:      0.5,
		SeverityHigh:        0.75,
	})
	gate := NewCooldownGate(5 * time.Second)
	resolver := NewGeolocationResolver(nil, zerolog.Nop())

	f.svc = NewIngestService(
		f.detector, classifier, gate, resolver,
		f.store, f.publisher, f.metrics,
		"", zerolog.Nop(),
	)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f.clock = &now
	f.svc.now = func() time.Time { return *f.clock }

	return f
}

func (f *ingestFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func gpsOpts(applyCooldown bool) IngestOptions {
	return IngestOptions{
		ApplyCooldown: applyCooldown,
		ClientGPS:     &ClientGPS{Latitude: 51.1, Longitude: 71.4},
	}
}

func TestProcessFramePersistsAcceptedDetections(t *testing.T) {
	f := newIngestFixture(t, []RawDetection{
		{Class: "pothole", Confidence: 0.9},
		{Class: "crack", Confidence: 0.6},
	})

	result, err := f.svc.ProcessFrame(context.Background(), []byte("jpeg"), gpsOpts(false))
	require.NoError(t, err)

	require.Len(t, result.Events, 2)
	assert.Len(t, result.Raw, 2)
	assert.Zero(t, result.Suppressed)
	assert.Zero(t, result.Discarded)

	assert.Equal(t, model.DefectClassPothole, result.Events[0].Class)
	assert.Equal(t, model.SeverityHigh, result.Events[0].Severity)
	assert.Equal(t, model.DefectClassCrack, result.Events[1].Class)
	assert.Equal(t, model.SeverityMedium, result.Events[1].Severity)
	assert.Equal(t, model.LocationSourceGPS, result.Events[0].LocationSource)

	assert.Len(t, f.store.events, 2)
	assert.Len(t, f.publisher.published, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.DetectionsAdmitted))
}

func TestProcessFrameDiscardsBelowThreshold(t *testing.T) {
	f := newIngestFixture(t, []RawDetection{
		{Class: "pothole", Confidence: 0.39},
		{Class: "pothole", Confidence: 0.4},
	})

	result, err := f.svc.ProcessFrame(context.Background(), []byte("jpeg"), gpsOpts(false))
	require.NoError(t, err)

	assert.Len(t, result.Events, 1)
	assert.Equal(t, 1, result.Discarded)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BelowThreshold))
}

func TestProcessFrameDiscardsUnknownLabels(t *testing.T) {
	f := newIngestFixture(t, []RawDetection{
		{Class: "debris", Confidence: 0.95},
		{Class: "pothole", Confidence: 0.9},
	})

	result, err := f.svc.ProcessFrame(context.Background(), []byte("jpeg"), gpsOpts(false))
	require.NoError(t, err)

	// A label the enum does not know must never become a record.
	require.Len(t, result.Events, 1)
	assert.Equal(t, model.DefectClassPothole, result.Events[0].Class)
	assert.Equal(t, 1, result.Discarded)
	assert.Len(t, f.store.events, 1)
}

func TestProcessFrameCooldownSuppressesRepeats(t *testing.T) {
	f := newIngestFixture(t, []RawDetection{{Class: "pothole", Confidence: 0.9}})

	result, err := f.svc.ProcessFrame(context.Background(), []byte("jpeg"), gpsOpts(true))
	require.NoError(t, err)
	assert.Len(t, result.Events, 1)

	f.advance(time.Second)
	result, err = f.svc.ProcessFrame(context.Background(), []byte("jpeg"), gpsOpts(true))
	require.NoError(t, err)
	assert.Empty(t, result.Events)
	assert.Equal(t, 1, result.Suppressed)

	f.advance(5 * time.Second)
	result, err = f.svc.ProcessFrame(context.Background(), []byte("jpeg"), gpsOpts(true))
	require.NoError(t, err)
	assert.Len(t, result.Events, 1)

	assert.Len(t, f.store.events, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CooldownSuppressed))
}

func TestProcessFrameSingleImageBypassesCooldown(t *testing.T) {
	f := newIngestFixture(t, []RawDetection{{Class: "pothole", Confidence: 0.9}})

	for i := 0; i < 3; i++ {
		result, err := f.svc.ProcessFrame(context.Background(), []byte("jpeg"), gpsOpts(false))
		require.NoError(t, err)
		assert.Len(t, result.Events, 1)
	}
	assert.Len(t, f.store.events, 3)
}

func TestProcessFrameModelUnavailable(t *testing.T) {
	f := newIngestFixture(t, nil)
	f.detector.err = ErrModelUnavailable

	_, err := f.svc.ProcessFrame(context.Background(), []byte("jpeg"), gpsOpts(false))
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ModelErrors))
}

func TestProcessFrameStoreFailureDoesNotStopFrame(t *testing.T) {
	f := newIngestFixture(t, []RawDetection{
		{Class: "pothole", Confidence: 0.9},
		{Class: "crack", Confidence: 0.8},
	})
	f.store.appendErr = errors.New("disk full")

	result, err := f.svc.ProcessFrame(context.Background(), []byte("jpeg"), gpsOpts(false))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreWrite)

	// Both detections were attempted despite the first failure.
	require.NotNil(t, result)
	assert.Len(t, result.Raw, 2)
	assert.Empty(t, result.Events)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.StoreWriteFailures))
}

func TestProcessFrameUnresolvedLocationStillPersists(t *testing.T) {
	f := newIngestFixture(t, []RawDetection{{Class: "pothole", Confidence: 0.9}})

	result, err := f.svc.ProcessFrame(context.Background(), []byte("jpeg"), IngestOptions{})
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	assert.Equal(t, model.LocationSourceUnknown, result.Events[0].LocationSource)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LocationUnresolved))
}

func TestProcessFramePublishFailureIsNotFatal(t *testing.T) {
	f := newIngestFixture(t, []RawDetection{{Class: "pothole", Confidence: 0.9}})
	f.publisher.err = errors.New("broker down")

	result, err := f.svc.ProcessFrame(context.Background(), []byte("jpeg"), gpsOpts(false))
	require.NoError(t, err)
	assert.Len(t, result.Events, 1)
	assert.Len(t, f.store.events, 1)
}

func TestProcessFrameSavesOneArtifactPerFrame(t *testing.T) {
	f := newIngestFixture(t, []RawDetection{
		{Class: "pothole", Confidence: 0.9},
		{Class: "crack", Confidence: 0.8},
	})
	f.svc.artifactDir = t.TempDir()

	opts := gpsOpts(false)
	opts.SaveArtifact = true
	result, err := f.svc.ProcessFrame(context.Background(), []byte("jpeg-bytes"), opts)
	require.NoError(t, err)

	require.Len(t, result.Events, 2)
	require.NotNil(t, result.Events[0].ImageRef)
	require.NotNil(t, result.Events[1].ImageRef)
	// Both events of one frame reference the same file.
	assert.Equal(t, *result.Events[0].ImageRef, *result.Events[1].ImageRef)

	data, err := os.ReadFile(*result.Events[0].ImageRef)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}
