package repository

import (
	"context"
	"fmt"

	"aria-chat/internal/model"
	"aria-chat/internal/store"
)

type SessionRepository struct {
	store store.Store
}

func NewSessionRepository(s store.Store) *SessionRepository {
	return &SessionRepository{store: s}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.ChatSession) error {
	if err := r.store.Insert(ctx, model.TableChatSessions, session); err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

// List returns every session, most recent first.
func (r *SessionRepository) List(ctx context.Context) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	err := r.store.Select(ctx, model.TableChatSessions, store.Query{
		Order: []store.Order{{Column: "created_at", Desc: true}},
	}, &sessions)
	if err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	return sessions, nil
}

// Delete removes the session and its messages.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.store.Delete(ctx, model.TableChatMessages, store.Eq{Column: "session_id", Value: sessionID}); err != nil {
		return fmt.Errorf("delete session messages failed: %w", err)
	}
	if err := r.store.Delete(ctx, model.TableChatSessions, store.Eq{Column: "id", Value: sessionID}); err != nil {
		return fmt.Errorf("delete session failed: %w", err)
	}
	return nil
}
