package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aria-chat/internal/model"
)

func newTestCache(t *testing.T) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHistoryCache(client, time.Minute, 5*time.Second), mr
}

func TestHistoryRoundTripAndExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, hit, err := c.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, hit)

	messages := []model.ChatMessage{
		{ID: "m1", SessionID: "s1", Role: model.RoleUser, Content: "hi"},
		{ID: "m2", SessionID: "s1", Role: model.RoleAssistant, Content: "hello"},
	}
	require.NoError(t, c.SetHistory(ctx, "s1", messages))

	got, hit, err := c.GetHistory(ctx, "s1")
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 2)
	assert.Equal(t, model.RoleAssistant, got[1].Role)

	mr.FastForward(2 * time.Minute)
	_, hit, err = c.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDirtyMarker(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	dirty, err := c.IsDirty(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, c.MarkDirty(ctx, "s1"))
	dirty, err = c.IsDirty(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, dirty)

	mr.FastForward(6 * time.Second)
	dirty, err = c.IsDirty(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestDeleteHistory(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetHistory(ctx, "s1", []model.ChatMessage{{ID: "m1"}}))
	require.NoError(t, c.DeleteHistory(ctx, "s1"))
	_, hit, err := c.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, hit)
}
