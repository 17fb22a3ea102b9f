package http

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"defect-service/internal/http/middleware"
	"defect-service/internal/imaging"
	"defect-service/internal/model"
	"defect-service/internal/service"
	"defect-service/internal/worker"
)

const maxFrameBytes = 10 << 20

type Handler struct {
	ingestService    *service.IngestService
	queryService     *service.QueryService
	assistantService *service.AssistantService
	ingestWorker     *worker.IngestWorker
	log              zerolog.Logger
}

func NewHandler(
	ingestService *service.IngestService,
	queryService *service.QueryService,
	assistantService *service.AssistantService,
	ingestWorker *worker.IngestWorker,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		ingestService:    ingestService,
		queryService:     queryService,
		assistantService: assistantService,
		ingestWorker:     ingestWorker,
		log:              log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	api := r.Group("/api/v1")
	{
		// Ingestion surfaces; cameras submit without a session.
		api.POST("/frames", h.submitFrame)
		api.POST("/stream/frames", h.submitStreamFrame)

		// Read surfaces.
		api.GET("/detections", h.listDetections)
		api.GET("/detections/:id", h.getDetection)
		api.GET("/detections/severity/:level", h.listBySeverity)
		api.GET("/stats", h.getStats)
		api.GET("/report/export", h.exportReport)
		api.POST("/route", h.planRoute)
	}

	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.PUT("/detections/:id/repair", h.markRepaired)
		protected.POST("/chat", h.chat)
	}
}

// submitFrame handles a single-image submission: the frame is processed
// synchronously, without the cooldown gate, and the reply carries the
// created events plus the frame annotated with bounding boxes.
func (h *Handler) submitFrame(c *gin.Context) {
	frame, gps, ok := h.readFrame(c)
	if !ok {
		return
	}

	result, err := h.ingestService.ProcessFrame(c.Request.Context(), frame, service.IngestOptions{
		ApplyCooldown: false,
		ClientGPS:     gps,
		SaveArtifact:  true,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	response := gin.H{
		"events":    result.Events,
		"discarded": result.Discarded,
	}

	if len(result.Raw) > 0 {
		annotated, err := imaging.Annotate(frame, result.Raw)
		if err != nil {
			h.log.Warn().Err(err).Msg("frame annotation failed")
		} else {
			response["annotated_image"] = base64.StdEncoding.EncodeToString(annotated)
		}
	}

	c.JSON(http.StatusOK, successResponse(response))
}

// submitStreamFrame is one tick of a continuous stream: the frame is
// queued for the ingestion worker and results reach subscribers
// asynchronously.
func (h *Handler) submitStreamFrame(c *gin.Context) {
	frame, gps, ok := h.readFrame(c)
	if !ok {
		return
	}

	if !h.ingestWorker.Enqueue(worker.Frame{Data: frame, GPS: gps, ReceivedAt: time.Now()}) {
		c.JSON(http.StatusTooManyRequests, errorResponse("ingestion queue full, frame dropped"))
		return
	}

	c.JSON(http.StatusAccepted, successResponse(gin.H{"message": "frame queued"}))
}

func (h *Handler) readFrame(c *gin.Context) ([]byte, *service.ClientGPS, bool) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("image file missing"))
		return nil, nil, false
	}
	defer file.Close()

	frame, err := io.ReadAll(io.LimitReader(file, maxFrameBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("failed to read image"))
		return nil, nil, false
	}
	if len(frame) == 0 || len(frame) > maxFrameBytes {
		c.JSON(http.StatusBadRequest, errorResponse("image empty or too large"))
		return nil, nil, false
	}

	var gps *service.ClientGPS
	latRaw := strings.TrimSpace(c.PostForm("latitude"))
	lonRaw := strings.TrimSpace(c.PostForm("longitude"))
	if latRaw != "" && lonRaw != "" {
		lat, latErr := strconv.ParseFloat(latRaw, 64)
		lon, lonErr := strconv.ParseFloat(lonRaw, 64)
		if latErr == nil && lonErr == nil {
			gps = &service.ClientGPS{Latitude: lat, Longitude: lon}
			if acc, err := strconv.ParseFloat(c.PostForm("accuracy"), 64); err == nil {
				gps.Accuracy = acc
			}
		}
	}

	return frame, gps, true
}

func (h *Handler) listDetections(c *gin.Context) {
	filter, err := parseReportFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	report, err := h.queryService.Report(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(report.Events))
}

func (h *Handler) getDetection(c *gin.Context) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid detection id"))
		return
	}

	event, err := h.queryService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(event))
}

func (h *Handler) listBySeverity(c *gin.Context) {
	level, ok := model.ParseSeverity(strings.TrimSpace(c.Param("level")))
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse("invalid severity level"))
		return
	}

	events, err := h.queryService.FilterBySeverity(c.Request.Context(), level)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{
		"severity":   level,
		"count":      len(events),
		"detections": events,
	}))
}

func (h *Handler) getStats(c *gin.Context) {
	filter, err := parseReportFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	report, err := h.queryService.Report(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	report.Events = nil
	c.JSON(http.StatusOK, successResponse(report))
}

// exportReport buffers the whole CSV before writing the response so a
// mid-scan failure yields an error status instead of a truncated download.
func (h *Handler) exportReport(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.queryService.ExportCSV(c.Request.Context(), &buf); err != nil {
		h.log.Error().Err(err).Msg("report export failed")
		c.JSON(http.StatusInternalServerError, errorResponse("report export failed"))
		return
	}

	filename := "detections_" + time.Now().UTC().Format("20060102_150405") + ".csv"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func (h *Handler) planRoute(c *gin.Context) {
	var req struct {
		Count     int      `json:"count"`
		Class     string   `json:"class"`
		OriginLat *float64 `json:"origin_lat"`
		OriginLon *float64 `json:"origin_lon"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	input := service.RoutePlanInput{Count: req.Count}
	if req.Class != "" {
		cls, ok := model.ParseDefectClass(req.Class)
		if !ok {
			c.JSON(http.StatusBadRequest, errorResponse("invalid defect class"))
			return
		}
		input.Class = &cls
	}
	if req.OriginLat != nil && req.OriginLon != nil {
		input.Origin = &service.Location{Latitude: *req.OriginLat, Longitude: *req.OriginLon}
	}

	route, err := h.queryService.BuildRoute(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(route))
}

func (h *Handler) markRepaired(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid detection id"))
		return
	}

	var req struct {
		Technician *string `json:"technician"`
		Notes      *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	err = h.queryService.MarkRepaired(c.Request.Context(), principal, service.RepairInput{
		EventID:    id,
		Technician: req.Technician,
		Notes:      req.Notes,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"message": "detection marked repaired"}))
}

func (h *Handler) chat(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		Message string             `json:"message" binding:"required"`
		History []service.ChatTurn `json:"history"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	output, err := h.assistantService.Chat(c.Request.Context(), principal, service.ChatInput{
		Message: req.Message,
		History: req.History,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(output))
}

func parseReportFilter(c *gin.Context) (service.ReportFilter, error) {
	filter := service.ReportFilter{}

	if raw := strings.TrimSpace(c.Query("class")); raw != "" {
		cls, ok := model.ParseDefectClass(raw)
		if !ok {
			return filter, errors.New("invalid defect class")
		}
		filter.Class = &cls
	}
	if raw := strings.TrimSpace(c.Query("severity")); raw != "" {
		level, ok := model.ParseSeverity(raw)
		if !ok {
			return filter, errors.New("invalid severity")
		}
		filter.Severity = &level
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := model.EventStatus(strings.ToUpper(raw))
		if status != model.EventStatusOpen && status != model.EventStatusRepaired {
			return filter, errors.New("invalid status")
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return filter, err
		}
		filter.From = &t
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return filter, err
		}
		filter.To = &t
	}

	return filter, nil
}

func parseTime(raw string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, errors.New("invalid time format")
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrModelUnavailable):
		h.log.Warn().Err(err).Msg("model unavailable")
		c.JSON(http.StatusServiceUnavailable, errorResponse("detection model unavailable"))
	case errors.Is(err, service.ErrStoreWrite):
		h.log.Error().Err(err).Msg("store write failure")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to persist detection"))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
