package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DefectClass string

const (
	DefectClassPothole DefectClass = "POTHOLE"
	DefectClassCrack   DefectClass = "CRACK"
)

type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

type EventStatus string

const (
	EventStatusOpen     EventStatus = "OPEN"
	EventStatusRepaired EventStatus = "REPAIRED"
)

type LocationSource string

const (
	LocationSourceGPS        LocationSource = "GPS"
	LocationSourceIPFallback LocationSource = "IP_FALLBACK"
	LocationSourceUnknown    LocationSource = "UNKNOWN"
)

// DetectionEvent is one persisted road-defect observation. Rows are
// append-only; the only mutation allowed after creation is the one-way
// OPEN -> REPAIRED status transition.
type DetectionEvent struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Seq            int64          `gorm:"autoIncrement;uniqueIndex" json:"seq"`
	Timestamp      time.Time      `gorm:"not null;index" json:"timestamp"`
	Class          DefectClass    `gorm:"type:defect_class;not null;index" json:"class"`
	Confidence     float64        `gorm:"not null" json:"confidence"`
	Severity       Severity       `gorm:"type:severity_level;not null;index" json:"severity"`
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	LocationSource LocationSource `gorm:"type:location_source;not null;default:UNKNOWN" json:"location_source"`
	ImageRef       *string        `gorm:"type:text" json:"image_ref"`
	Status         EventStatus    `gorm:"type:event_status;not null;default:OPEN;index" json:"status"`
	RepairedAt     *time.Time     `json:"repaired_at"`
	Technician     *string        `gorm:"type:varchar(255)" json:"technician"`
	Notes          *string        `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (DetectionEvent) TableName() string {
	return "detection_events"
}

func (e *DetectionEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC().Truncate(time.Millisecond)
	}
	return nil
}

// ParseDefectClass maps free-form class labels from the detector to the
// known enum. Unknown labels are reported, not coerced; the ingest boundary
// decides what to do with them.
func ParseDefectClass(label string) (DefectClass, bool) {
	switch label {
	case "pothole", "POTHOLE", "Pothole":
		return DefectClassPothole, true
	case "crack", "CRACK", "Crack":
		return DefectClassCrack, true
	}
	return "", false
}

func ParseSeverity(raw string) (Severity, bool) {
	switch raw {
	case "low", "LOW", "Low":
		return SeverityLow, true
	case "medium", "MEDIUM", "Medium":
		return SeverityMedium, true
	case "high", "HIGH", "High":
		return SeverityHigh, true
	}
	return "", false
}
