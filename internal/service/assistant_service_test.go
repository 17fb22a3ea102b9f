package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defect-service/internal/model"
)

type fakePhraser struct {
	configured bool
	reply      string
	err        error
	gotSystem  string
	gotTurns   []ChatTurn
}

func (p *fakePhraser) Configured() bool { return p.configured }

func (p *fakePhraser) Phrase(_ context.Context, system string, turns []ChatTurn) (string, error) {
	p.gotSystem = system
	p.gotTurns = turns
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func assistantFixture(t *testing.T, phraser Phraser) (*AssistantService, *fakeEventStore) {
	t.Helper()
	store := newFakeEventStore()
	query := NewQueryService(store, nil)
	return NewAssistantService(NewKeywordClassifier(), query, phraser, zerolog.Nop()), store
}

func TestChatReportWithoutPhraser(t *testing.T) {
	svc, store := assistantFixture(t, nil)
	seedEvent(t, store, model.DefectClassPothole, model.SeverityHigh, 0.9, 51.1, 71.4, model.LocationSourceGPS)
	seedEvent(t, store, model.DefectClassCrack, model.SeverityLow, 0.45, 51.2, 71.5, model.LocationSourceGPS)

	out, err := svc.Chat(context.Background(), adminPrincipal(), ChatInput{Message: "give me a report"})
	require.NoError(t, err)

	require.NotNil(t, out.Result)
	assert.Equal(t, IntentReport, out.Result.Kind)
	assert.Equal(t, 2, out.Result.Report.Total)
	assert.Contains(t, out.Response, "2 detections")
}

func TestChatUsesPhrasedReply(t *testing.T) {
	phraser := &fakePhraser{configured: true, reply: "Two potholes need attention."}
	svc, store := assistantFixture(t, phraser)
	seedEvent(t, store, model.DefectClassPothole, model.SeverityHigh, 0.9, 51.1, 71.4, model.LocationSourceGPS)

	out, err := svc.Chat(context.Background(), adminPrincipal(), ChatInput{
		Message: "how many potholes?",
		History: []ChatTurn{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Two potholes need attention.", out.Response)
	// History plus the current message reach the phraser.
	require.Len(t, phraser.gotTurns, 2)
	assert.Equal(t, "how many potholes?", phraser.gotTurns[1].Content)
	assert.NotEmpty(t, phraser.gotSystem)
}

func TestChatPhraserFailureDegradesToFallback(t *testing.T) {
	phraser := &fakePhraser{configured: true, err: errors.New("upstream timeout")}
	svc, store := assistantFixture(t, phraser)
	seedEvent(t, store, model.DefectClassPothole, model.SeverityHigh, 0.9, 51.1, 71.4, model.LocationSourceGPS)

	out, err := svc.Chat(context.Background(), adminPrincipal(), ChatInput{Message: "summary please"})
	require.NoError(t, err)
	assert.Contains(t, out.Response, "1 detections")
}

func TestChatUnconfiguredPhraserIsSkipped(t *testing.T) {
	phraser := &fakePhraser{configured: false, reply: "should not appear"}
	svc, _ := assistantFixture(t, phraser)

	out, err := svc.Chat(context.Background(), adminPrincipal(), ChatInput{Message: "hello"})
	require.NoError(t, err)

	assert.Equal(t, IntentUnrecognized, out.Result.Kind)
	assert.NotEqual(t, "should not appear", out.Response)
	assert.Empty(t, phraser.gotTurns)
}

func TestChatHistoryTruncatedToLastTen(t *testing.T) {
	phraser := &fakePhraser{configured: true, reply: "ok"}
	svc, _ := assistantFixture(t, phraser)

	history := make([]ChatTurn, 25)
	for i := range history {
		history[i] = ChatTurn{Role: "user", Content: "old"}
	}

	_, err := svc.Chat(context.Background(), adminPrincipal(), ChatInput{Message: "stats", History: history})
	require.NoError(t, err)
	assert.Len(t, phraser.gotTurns, 11)
}
