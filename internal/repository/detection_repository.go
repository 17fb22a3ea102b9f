package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"defect-service/internal/model"
)

type DetectionRepository struct {
	db *gorm.DB
}

func NewDetectionRepository(db *gorm.DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// Append persists a new event. The database assigns the insertion-order seq;
// the uuid primary key is assigned in BeforeCreate when absent. The write is
// durable before Append returns.
func (r *DetectionRepository) Append(ctx context.Context, event *model.DetectionEvent) (uuid.UUID, error) {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return uuid.Nil, err
	}
	return event.ID, nil
}

func (r *DetectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DetectionEvent, error) {
	var event model.DetectionEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

type DetectionListFilter struct {
	Class    *model.DefectClass
	Severity *model.Severity
	Status   *model.EventStatus
	From     *time.Time
	To       *time.Time
	// OrderDesc orders by detection timestamp descending instead of the
	// default insertion order.
	OrderDesc bool
	Limit     int
}

func (r *DetectionRepository) List(ctx context.Context, filter DetectionListFilter) ([]model.DetectionEvent, error) {
	var events []model.DetectionEvent
	query := r.db.WithContext(ctx).Model(&model.DetectionEvent{})

	if filter.Class != nil {
		query = query.Where("class = ?", *filter.Class)
	}
	if filter.Severity != nil {
		query = query.Where("severity = ?", *filter.Severity)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("timestamp >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("timestamp <= ?", *filter.To)
	}

	if filter.OrderDesc {
		query = query.Order("timestamp DESC")
	} else {
		query = query.Order("seq ASC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// Scan walks the full log in insertion order, batched so the whole table is
// never held in memory. Each call starts from the beginning. Returning an
// error from fn stops the scan.
func (r *DetectionRepository) Scan(ctx context.Context, fn func(model.DetectionEvent) error) error {
	var batch []model.DetectionEvent
	result := r.db.WithContext(ctx).
		Model(&model.DetectionEvent{}).
		Order("seq ASC").
		FindInBatches(&batch, 500, func(tx *gorm.DB, _ int) error {
			for _, event := range batch {
				if err := fn(event); err != nil {
					return err
				}
			}
			return nil
		})
	return result.Error
}

// MarkRepaired flips an event to REPAIRED. The transition is one-way:
// repairing an already-repaired event is a no-op success, an unknown id is
// gorm.ErrRecordNotFound.
func (r *DetectionRepository) MarkRepaired(ctx context.Context, id uuid.UUID, technician, notes *string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event model.DetectionEvent
		if err := tx.Where("id = ?", id).First(&event).Error; err != nil {
			return err
		}
		if event.Status == model.EventStatusRepaired {
			return nil
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":      model.EventStatusRepaired,
			"repaired_at": now,
		}
		if technician != nil {
			updates["technician"] = *technician
		}
		if notes != nil {
			updates["notes"] = *notes
		}

		result := tx.Model(&model.DetectionEvent{}).
			Where("id = ? AND status = ?", id, model.EventStatusOpen).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Lost a race with a concurrent repair; already repaired.
			return nil
		}
		return nil
	})
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
