package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"defect-service/internal/model"
	"defect-service/internal/repository"
)

type QueryService struct {
	store         EventStore
	defaultOrigin *Location
}

func NewQueryService(store EventStore, defaultOrigin *Location) *QueryService {
	return &QueryService{store: store, defaultOrigin: defaultOrigin}
}

type ReportFilter struct {
	Class    *model.DefectClass
	Severity *model.Severity
	Status   *model.EventStatus
	From     *time.Time
	To       *time.Time
}

type Report struct {
	Total         int                       `json:"total"`
	ByClass       map[model.DefectClass]int `json:"by_class"`
	BySeverity    map[model.Severity]int    `json:"by_severity"`
	OpenCount     int                       `json:"open_count"`
	RepairedCount int                       `json:"repaired_count"`
	AvgConfidence float64                   `json:"avg_confidence"`
	Locations     []Location                `json:"locations"`
	Events        []model.DetectionEvent    `json:"events,omitempty"`
}

// Report aggregates the current store snapshot: counts by class and
// severity, average confidence, and the distinct locations involved.
func (s *QueryService) Report(ctx context.Context, filter ReportFilter) (*Report, error) {
	events, err := s.store.List(ctx, repository.DetectionListFilter{
		Class:    filter.Class,
		Severity: filter.Severity,
		Status:   filter.Status,
		From:     filter.From,
		To:       filter.To,
	})
	if err != nil {
		return nil, err
	}

	report := &Report{
		Total:      len(events),
		ByClass:    make(map[model.DefectClass]int),
		BySeverity: make(map[model.Severity]int),
		Events:     events,
	}

	type coord struct{ lat, lon float64 }
	seen := make(map[coord]struct{})
	confSum := 0.0
	for _, e := range events {
		report.ByClass[e.Class]++
		report.BySeverity[e.Severity]++
		if e.Status == model.EventStatusRepaired {
			report.RepairedCount++
		} else {
			report.OpenCount++
		}
		confSum += e.Confidence

		key := coord{e.Latitude, e.Longitude}
		if _, dup := seen[key]; !dup && e.LocationSource != model.LocationSourceUnknown {
			seen[key] = struct{}{}
			report.Locations = append(report.Locations, Location{
				Latitude:  e.Latitude,
				Longitude: e.Longitude,
				Source:    e.LocationSource,
			})
		}
	}
	if len(events) > 0 {
		report.AvgConfidence = confSum / float64(len(events))
	}

	return report, nil
}

// FilterBySeverity returns matching events newest first.
func (s *QueryService) FilterBySeverity(ctx context.Context, level model.Severity) ([]model.DetectionEvent, error) {
	return s.store.List(ctx, repository.DetectionListFilter{
		Severity:  &level,
		OrderDesc: true,
	})
}

type RoutePlanInput struct {
	Class  *model.DefectClass
	Count  int
	Origin *Location
}

// BuildRoute collects open defects (highest confidence first, capped at
// Count), and orders them into a repair route.
func (s *QueryService) BuildRoute(ctx context.Context, input RoutePlanInput) (*RoutePlan, error) {
	open := model.EventStatusOpen
	events, err := s.store.List(ctx, repository.DetectionListFilter{
		Class:  input.Class,
		Status: &open,
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Confidence > events[j].Confidence
	})
	if input.Count > 0 && len(events) > input.Count {
		events = events[:input.Count]
	}

	points := make([]RoutePoint, 0, len(events))
	for _, e := range events {
		if e.LocationSource == model.LocationSourceUnknown {
			continue
		}
		points = append(points, RoutePoint{
			EventID:    e.ID,
			Latitude:   e.Latitude,
			Longitude:  e.Longitude,
			Class:      e.Class,
			Severity:   e.Severity,
			Confidence: e.Confidence,
		})
	}

	origin := input.Origin
	if origin == nil {
		origin = s.defaultOrigin
	}

	plan := PlanRoute(origin, points)
	return &plan, nil
}

type RepairInput struct {
	EventID    uuid.UUID
	Technician *string
	Notes      *string
}

// MarkRepaired flips an event to REPAIRED. Unknown ids are ErrNotFound;
// repairing twice is a no-op success.
func (s *QueryService) MarkRepaired(ctx context.Context, principal model.Principal, input RepairInput) error {
	if !principal.CanMarkRepaired() {
		return ErrPermissionDenied
	}
	if err := s.store.MarkRepaired(ctx, input.EventID, input.Technician, input.Notes); err != nil {
		if repository.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *QueryService) Get(ctx context.Context, id uuid.UUID) (*model.DetectionEvent, error) {
	event, err := s.store.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

type QueryResult struct {
	Kind    IntentKind             `json:"kind"`
	Report  *Report                `json:"report,omitempty"`
	Events  []model.DetectionEvent `json:"events,omitempty"`
	Route   *RoutePlan             `json:"route,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// Execute runs a normalized intent against the store. Unrecognized intents
// yield a clarification result, never an error; only infrastructure
// failures propagate.
func (s *QueryService) Execute(ctx context.Context, principal model.Principal, intent Intent) (*QueryResult, error) {
	switch intent.Kind {
	case IntentReport:
		report, err := s.Report(ctx, ReportFilter{Class: intent.Class, Severity: intent.Severity})
		if err != nil {
			return nil, err
		}
		return &QueryResult{Kind: IntentReport, Report: report}, nil

	case IntentFilter:
		if intent.Severity == nil {
			return unrecognized(), nil
		}
		events, err := s.FilterBySeverity(ctx, *intent.Severity)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Kind: IntentFilter, Events: events}, nil

	case IntentRoutePlan:
		route, err := s.BuildRoute(ctx, RoutePlanInput{Class: intent.Class, Count: intent.Count})
		if err != nil {
			return nil, err
		}
		return &QueryResult{Kind: IntentRoutePlan, Route: route}, nil

	case IntentMarkRepaired:
		if intent.EventID == nil {
			return unrecognized(), nil
		}
		err := s.MarkRepaired(ctx, principal, RepairInput{EventID: *intent.EventID})
		switch err {
		case nil:
			return &QueryResult{Kind: IntentMarkRepaired, Message: fmt.Sprintf("detection %s marked repaired", intent.EventID)}, nil
		case ErrNotFound:
			return &QueryResult{Kind: IntentMarkRepaired, Message: fmt.Sprintf("no detection with id %s", intent.EventID)}, nil
		case ErrPermissionDenied:
			return &QueryResult{Kind: IntentMarkRepaired, Message: "you are not allowed to mark repairs"}, nil
		default:
			return nil, err
		}

	default:
		return unrecognized(), nil
	}
}

func unrecognized() *QueryResult {
	return &QueryResult{
		Kind:    IntentUnrecognized,
		Message: "I can report statistics, filter detections by severity, plan a repair route, or mark a detection repaired. What would you like?",
	}
}

var exportHeader = []string{
	"id", "timestamp", "class", "confidence", "severity",
	"lat", "lon", "location_source", "image_ref", "status",
	"repaired_at", "technician", "notes",
}

// ExportCSV streams the full log as CSV in insertion order. Consumers must
// tolerate trailing columns beyond the first ten.
func (s *QueryService) ExportCSV(ctx context.Context, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	err := s.store.Scan(ctx, func(e model.DetectionEvent) error {
		repairedAt := ""
		if e.RepairedAt != nil {
			repairedAt = e.RepairedAt.UTC().Format(time.RFC3339)
		}
		return cw.Write([]string{
			e.ID.String(),
			e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			string(e.Class),
			strconv.FormatFloat(e.Confidence, 'f', 4, 64),
			string(e.Severity),
			strconv.FormatFloat(e.Latitude, 'f', 6, 64),
			strconv.FormatFloat(e.Longitude, 'f', 6, 64),
			string(e.LocationSource),
			derefString(e.ImageRef),
			string(e.Status),
			repairedAt,
			derefString(e.Technician),
			derefString(e.Notes),
		})
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
