package service

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")

	// ErrModelUnavailable means the detector backend could not be invoked
	// for this frame. Ingestion skips the frame and continues.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrStoreWrite means a durable append failed. The event is lost and
	// the failure is surfaced to the ingestion caller.
	ErrStoreWrite = errors.New("store write failed")
)
