package repository

import (
	"context"
	"fmt"

	"aria-chat/internal/model"
	"aria-chat/internal/store"
)

type MessageRepository struct {
	store store.Store
}

func NewMessageRepository(s store.Store) *MessageRepository {
	return &MessageRepository{store: s}
}

func (r *MessageRepository) Create(ctx context.Context, message *model.ChatMessage) error {
	if err := r.store.Insert(ctx, model.TableChatMessages, message); err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// ListBySessionID returns the session's messages oldest first.
func (r *MessageRepository) ListBySessionID(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.store.Select(ctx, model.TableChatMessages, store.Query{
		Where: []store.Eq{{Column: "session_id", Value: sessionID}},
		Order: []store.Order{{Column: "created_at"}},
	}, &messages)
	if err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// ListRecentBySessionID returns at most limit of the newest messages,
// oldest first.
func (r *MessageRepository) ListRecentBySessionID(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var messages []model.ChatMessage
	err := r.store.Select(ctx, model.TableChatMessages, store.Query{
		Where: []store.Eq{{Column: "session_id", Value: sessionID}},
		Order: []store.Order{{Column: "created_at", Desc: true}},
		Limit: limit,
	}, &messages)
	if err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
