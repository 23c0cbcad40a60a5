package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"aria-chat/internal/model"
	"aria-chat/internal/platform/database"
	"aria-chat/internal/store"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestSessionDeleteCascadesMessages(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(newTestDB(t))
	sessions := NewSessionRepository(s)
	messages := NewMessageRepository(s)

	keep := &model.ChatSession{Title: "keep"}
	drop := &model.ChatSession{Title: "drop"}
	require.NoError(t, sessions.Create(ctx, keep))
	require.NoError(t, sessions.Create(ctx, drop))
	require.NoError(t, messages.Create(ctx, &model.ChatMessage{SessionID: keep.ID, Role: model.RoleUser, Content: "k"}))
	require.NoError(t, messages.Create(ctx, &model.ChatMessage{SessionID: drop.ID, Role: model.RoleUser, Content: "d"}))

	require.NoError(t, sessions.Delete(ctx, drop.ID))

	list, err := sessions.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)

	dropped, err := messages.ListBySessionID(ctx, drop.ID)
	require.NoError(t, err)
	assert.Empty(t, dropped)
	kept, err := messages.ListBySessionID(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestListRecentBySessionID(t *testing.T) {
	ctx := context.Background()
	messages := NewMessageRepository(store.NewGormStore(newTestDB(t)))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, content := range []string{"one", "two", "three", "four"} {
		require.NoError(t, messages.Create(ctx, &model.ChatMessage{
			SessionID: "s",
			Role:      model.RoleUser,
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := messages.ListRecentBySessionID(ctx, "s", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Content)
	assert.Equal(t, "four", recent[1].Content)
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentRepository(store.NewGormStore(newTestDB(t)))

	size := int64(42)
	doc := &model.Document{Name: "notes.txt", FileSize: &size}
	require.NoError(t, docs.Create(ctx, doc))

	got, err := docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.DocumentProcessing, got.Status)
	assert.Nil(t, got.Content)

	text := "hello"
	require.NoError(t, docs.UpdateStatus(ctx, doc.ID, model.DocumentReady, &text))
	got, err = docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentReady, got.Status)
	require.NotNil(t, got.Content)
	assert.Equal(t, "hello", *got.Content)

	require.NoError(t, docs.Delete(ctx, doc.ID))
	got, err = docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(newTestDB(t))

	missing, err := users.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	u := &model.AdminUser{Email: "admin@example.com", Name: "Admin", PasswordHash: "x"}
	require.NoError(t, users.Create(ctx, u))

	byID, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "admin@example.com", byID.Email)

	assert.Error(t, users.Create(ctx, &model.AdminUser{Email: "admin@example.com", PasswordHash: "y"}))
}
