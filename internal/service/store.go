package service

import (
	"context"

	"github.com/google/uuid"

	"defect-service/internal/model"
	"defect-service/internal/repository"
)

// EventStore is the persistence boundary for detection events.
type EventStore interface {
	Append(ctx context.Context, event *model.DetectionEvent) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.DetectionEvent, error)
	List(ctx context.Context, filter repository.DetectionListFilter) ([]model.DetectionEvent, error)
	Scan(ctx context.Context, fn func(model.DetectionEvent) error) error
	MarkRepaired(ctx context.Context, id uuid.UUID, technician, notes *string) error
}

// AlertPublisher pushes accepted events to asynchronous subscribers.
type AlertPublisher interface {
	PublishDetection(event *model.DetectionEvent) error
}
