package app

import (
	"context"
	"fmt"
	"strings"

	"aria-chat/internal/ai"
	"aria-chat/internal/model"
)

// Responder produces the assistant's reply for the latest user message of a
// session.
type Responder interface {
	Respond(ctx context.Context, sessionID, text string) (string, error)
}

type SimulatedResponder struct{}

func (SimulatedResponder) Respond(_ context.Context, _ string, text string) (string, error) {
	return fmt.Sprintf("I received your message: \"%s\". This is a simulated response. Connect an inference backend to replace this.", text), nil
}

type Completer interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

type RecentMessageStore interface {
	ListRecentBySessionID(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error)
}

// LLMResponder replies through an OpenAI-compatible backend, using the tail
// of the persisted conversation as context.
type LLMResponder struct {
	client     Completer
	history    RecentMessageStore
	maxContext int
}

func NewLLMResponder(client Completer, history RecentMessageStore, maxContext int) *LLMResponder {
	if maxContext <= 0 {
		maxContext = 20
	}
	return &LLMResponder{client: client, history: history, maxContext: maxContext}
}

func (r *LLMResponder) Respond(ctx context.Context, sessionID, text string) (string, error) {
	recent, err := r.history.ListRecentBySessionID(ctx, sessionID, r.maxContext)
	if err != nil {
		return "", err
	}

	prompt := make([]ai.ChatMessage, 0, len(recent)+1)
	for _, m := range recent {
		prompt = append(prompt, ai.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	// The user message is normally persisted before the reply runs.
	if n := len(recent); n == 0 || recent[n-1].Role != model.RoleUser || recent[n-1].Content != text {
		prompt = append(prompt, ai.ChatMessage{Role: string(model.RoleUser), Content: text})
	}

	out, err := r.client.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		out = "The model returned an empty response."
	}
	return out, nil
}

// DirectMessagePublisher persists replies synchronously when no broker is
// configured.
type DirectMessagePublisher struct {
	messages MessageStore
}

func NewDirectMessagePublisher(messages MessageStore) *DirectMessagePublisher {
	return &DirectMessagePublisher{messages: messages}
}

func (p *DirectMessagePublisher) Publish(ctx context.Context, msg model.ChatMessage) error {
	return p.messages.Create(ctx, &msg)
}
