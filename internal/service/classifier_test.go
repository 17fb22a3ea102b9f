package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"defect-service/internal/config"
	"defect-service/internal/model"
)

func testClassifier() *Classifier {
	return NewClassifier(config.DetectionConfig{
		ConfidenceThreshold: 0.4,
		SeverityMedium:      0.5,
		SeverityHigh:        0.75,
	})
}

func TestClassifierAcceptBoundaryIsInclusive(t *testing.T) {
	c := testClassifier()

	assert.True(t, c.Accept(0.4))
	assert.True(t, c.Accept(0.41))
	assert.True(t, c.Accept(1.0))
	assert.False(t, c.Accept(0.39))
	assert.False(t, c.Accept(0.0))
}

func TestClassifierSeverityCutPoints(t *testing.T) {
	c := testClassifier()

	cases := []struct {
		confidence float64
		want       model.Severity
	}{
		{0.40, model.SeverityLow},
		{0.4999, model.SeverityLow},
		{0.50, model.SeverityMedium},
		{0.7499, model.SeverityMedium},
		{0.75, model.SeverityHigh},
		{0.99, model.SeverityHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Severity(tc.confidence), "confidence %v", tc.confidence)
	}
}

func TestClassifierClassifyBuildsOpenEvent(t *testing.T) {
	c := testClassifier()

	event := c.Classify(
		model.DefectClassCrack,
		RawDetection{Class: "crack", Confidence: 0.82},
		Location{Latitude: 51.1, Longitude: 71.4, Source: model.LocationSourceGPS},
	)

	assert.Equal(t, model.DefectClassCrack, event.Class)
	assert.Equal(t, 0.82, event.Confidence)
	assert.Equal(t, model.SeverityHigh, event.Severity)
	assert.Equal(t, 51.1, event.Latitude)
	assert.Equal(t, 71.4, event.Longitude)
	assert.Equal(t, model.LocationSourceGPS, event.LocationSource)
	assert.Equal(t, model.EventStatusOpen, event.Status)
}
