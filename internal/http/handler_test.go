package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defect-service/internal/model"
	"defect-service/internal/repository"
	"defect-service/internal/service"
)

type exportStore struct {
	events  []model.DetectionEvent
	scanErr error
}

func (s *exportStore) Append(context.Context, *model.DetectionEvent) (uuid.UUID, error) {
	return uuid.Nil, errors.New("not implemented")
}

func (s *exportStore) GetByID(context.Context, uuid.UUID) (*model.DetectionEvent, error) {
	return nil, errors.New("not implemented")
}

func (s *exportStore) List(context.Context, repository.DetectionListFilter) ([]model.DetectionEvent, error) {
	return s.events, nil
}

func (s *exportStore) Scan(_ context.Context, fn func(model.DetectionEvent) error) error {
	for _, e := range s.events {
		if err := fn(e); err != nil {
			return err
		}
	}
	return s.scanErr
}

func (s *exportStore) MarkRepaired(context.Context, uuid.UUID, *string, *string) error {
	return errors.New("not implemented")
}

func exportRequest(t *testing.T, store *exportStore) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(nil, service.NewQueryService(store, nil), nil, nil, zerolog.Nop())
	router := gin.New()
	router.GET("/api/v1/report/export", h.exportReport)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/report/export", nil)
	router.ServeHTTP(rec, req)
	return rec
}

func TestExportReportServesCSV(t *testing.T) {
	store := &exportStore{events: []model.DetectionEvent{{
		ID:             uuid.New(),
		Timestamp:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Class:          model.DefectClassPothole,
		Confidence:     0.9,
		Severity:       model.SeverityHigh,
		LocationSource: model.LocationSourceGPS,
		Status:         model.EventStatusOpen,
	}}}

	rec := exportRequest(t, store)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,timestamp,class"))
	assert.Contains(t, lines[1], "POTHOLE")
}

func TestExportReportScanFailureIsAnErrorNotTruncation(t *testing.T) {
	store := &exportStore{
		events:  []model.DetectionEvent{{ID: uuid.New(), Status: model.EventStatusOpen}},
		scanErr: errors.New("connection reset"),
	}

	rec := exportRequest(t, store)

	// The client must see a failure status, never a partial CSV body.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "id,timestamp")
	assert.Contains(t, rec.Body.String(), "error")
}
