package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"defect-service/internal/model"
)

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Phraser renders a natural-language reply. It is cosmetic only; the
// structured QueryResult is computed before phrasing and is returned either
// way.
type Phraser interface {
	Configured() bool
	Phrase(ctx context.Context, system string, turns []ChatTurn) (string, error)
}

type AssistantService struct {
	classifier TextClassifier
	query      *QueryService
	phraser    Phraser
	log        zerolog.Logger
}

func NewAssistantService(classifier TextClassifier, query *QueryService, phraser Phraser, log zerolog.Logger) *AssistantService {
	return &AssistantService{
		classifier: classifier,
		query:      query,
		phraser:    phraser,
		log:        log,
	}
}

type ChatInput struct {
	Message string
	History []ChatTurn
}

type ChatOutput struct {
	Response string       `json:"response"`
	Result   *QueryResult `json:"result"`
}

// Chat reduces the message to an intent, executes it, and phrases a reply.
// Query failures are isolated per request; an unreachable language model
// degrades to deterministic template text, never to an error.
func (s *AssistantService) Chat(ctx context.Context, principal model.Principal, input ChatInput) (*ChatOutput, error) {
	intent := s.classifier.Classify(input.Message)

	result, err := s.query.Execute(ctx, principal, intent)
	if err != nil {
		return nil, err
	}

	response := s.fallbackText(result)

	if s.phraser != nil && s.phraser.Configured() {
		turns := append([]ChatTurn{}, lastTurns(input.History, 10)...)
		turns = append(turns, ChatTurn{Role: "user", Content: input.Message})

		phrased, err := s.phraser.Phrase(ctx, s.systemPrompt(ctx, result), turns)
		if err != nil {
			s.log.Warn().Err(err).Msg("assistant phrasing failed, using fallback text")
		} else {
			response = phrased
		}
	}

	return &ChatOutput{Response: response, Result: result}, nil
}

func (s *AssistantService) systemPrompt(ctx context.Context, result *QueryResult) string {
	var b strings.Builder
	b.WriteString("You are an assistant for a road-defect detection system. ")
	b.WriteString("Answer only questions about road damage, detections, repairs, reports and repair routes. ")
	b.WriteString("Politely decline anything else.\n")

	if report, err := s.query.Report(ctx, ReportFilter{}); err == nil {
		fmt.Fprintf(&b, "Current data: %d total detections (%d open, %d repaired), potholes %d, cracks %d, high %d, medium %d, low %d, average confidence %.0f%%.\n",
			report.Total, report.OpenCount, report.RepairedCount,
			report.ByClass[model.DefectClassPothole], report.ByClass[model.DefectClassCrack],
			report.BySeverity[model.SeverityHigh], report.BySeverity[model.SeverityMedium], report.BySeverity[model.SeverityLow],
			report.AvgConfidence*100)
	}

	fmt.Fprintf(&b, "The structured result of the user's request (kind %s) is shown to them separately; summarize it conversationally.", result.Kind)
	return b.String()
}

func (s *AssistantService) fallbackText(result *QueryResult) string {
	switch result.Kind {
	case IntentReport:
		r := result.Report
		return fmt.Sprintf(
			"Currently tracking %d detections: %d potholes, %d cracks. Severity split: %d high, %d medium, %d low. %d already repaired. Average confidence %.0f%%.",
			r.Total,
			r.ByClass[model.DefectClassPothole], r.ByClass[model.DefectClassCrack],
			r.BySeverity[model.SeverityHigh], r.BySeverity[model.SeverityMedium], r.BySeverity[model.SeverityLow],
			r.RepairedCount, r.AvgConfidence*100)
	case IntentFilter:
		return fmt.Sprintf("Found %d matching detections, newest first.", len(result.Events))
	case IntentRoutePlan:
		return fmt.Sprintf("Planned a route over %d sites, %.2f km total, roughly %d minutes of driving.",
			len(result.Route.Points), result.Route.TotalDistanceKm, result.Route.EstimatedMinutes)
	case IntentMarkRepaired:
		return result.Message
	default:
		return result.Message
	}
}

func lastTurns(history []ChatTurn, n int) []ChatTurn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
