package client

import (
	"context"

	"defect-service/internal/service"
)

// Phrase adapts the chat-completions call to the assistant's Phraser
// boundary.
func (c *LLMClient) Phrase(ctx context.Context, system string, turns []service.ChatTurn) (string, error) {
	messages := make([]ChatMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	return c.Complete(ctx, system, messages)
}
