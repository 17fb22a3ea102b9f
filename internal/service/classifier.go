package service

import (
	"defect-service/internal/config"
	"defect-service/internal/model"
)

// Classifier turns accepted raw detections into unsaved DetectionEvents.
type Classifier struct {
	confidenceThreshold float64
	severityMedium      float64
	severityHigh        float64
}

func NewClassifier(cfg config.DetectionConfig) *Classifier {
	return &Classifier{
		confidenceThreshold: cfg.ConfidenceThreshold,
		severityMedium:      cfg.SeverityMedium,
		severityHigh:        cfg.SeverityHigh,
	}
}

// Accept reports whether a detection clears the minimum confidence bar.
// The boundary is inclusive: confidence exactly at the threshold passes.
func (c *Classifier) Accept(confidence float64) bool {
	return confidence >= c.confidenceThreshold
}

// Severity is a total function of confidence. Cut-points are inclusive
// lower bounds: >= high threshold is HIGH, >= medium threshold is MEDIUM,
// everything below is LOW.
func (c *Classifier) Severity(confidence float64) model.Severity {
	switch {
	case confidence >= c.severityHigh:
		return model.SeverityHigh
	case confidence >= c.severityMedium:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// Classify builds an unsaved event from an accepted detection and a
// resolved location. The caller is responsible for having parsed the class
// label and run Accept and the cooldown gate first.
func (c *Classifier) Classify(class model.DefectClass, raw RawDetection, loc Location) *model.DetectionEvent {
	return &model.DetectionEvent{
		Class:          class,
		Confidence:     raw.Confidence,
		Severity:       c.Severity(raw.Confidence),
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
		LocationSource: loc.Source,
		Status:         model.EventStatusOpen,
	}
}
