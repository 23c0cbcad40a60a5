package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestMemoryQueueDrainOrderAndEmpty(t *testing.T) {
	q := NewMemoryQueue(time.Minute, 10)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, Info("Success", "one")))
	require.NoError(t, q.Push(ctx, Destructive("Error", "two")))

	got, err := q.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Description)
	assert.Equal(t, VariantDestructive, got[1].Variant)
	assert.False(t, got[0].CreatedAt.IsZero())

	got, err = q.Drain(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryQueueAutoDismissAndLimit(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := NewMemoryQueue(10*time.Second, 2)
	q.now = c.now
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, Info("a", "old")))
	c.t = c.t.Add(8 * time.Second)
	require.NoError(t, q.Push(ctx, Info("b", "mid")))
	require.NoError(t, q.Push(ctx, Info("c", "new")))

	// limit keeps the newest two; "old" is gone regardless of age
	c.t = c.t.Add(5 * time.Second)
	got, err := q.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "mid", got[0].Description)

	require.NoError(t, q.Push(ctx, Info("d", "stale")))
	c.t = c.t.Add(11 * time.Second)
	got, err = q.Drain(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	q := NewRedisQueue(client, "view-1", time.Minute, 2)
	require.NoError(t, q.Push(ctx, Info("a", "1")))
	require.NoError(t, q.Push(ctx, Info("b", "2")))
	require.NoError(t, q.Push(ctx, Destructive("c", "3")))

	other := NewRedisQueue(client, "view-2", time.Minute, 2)
	got, err := other.Drain(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = q.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].Description)
	assert.Equal(t, VariantDestructive, got[1].Variant)
	assert.False(t, mr.Exists("notify:view-1"))

	require.NoError(t, q.Push(ctx, Info("d", "4")))
	require.NoError(t, q.Delete(ctx))
	got, err = q.Drain(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
