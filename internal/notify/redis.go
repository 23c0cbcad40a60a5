package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// RedisQueue stores one view's notifications in a Redis list so that any
// instance serving the view can drain them.
type RedisQueue struct {
	client *redisv9.Client
	key    string
	ttl    time.Duration
	limit  int
	now    func() time.Time
}

func NewRedisQueue(client *redisv9.Client, viewID string, ttl time.Duration, limit int) *RedisQueue {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if limit <= 0 {
		limit = 20
	}
	return &RedisQueue{
		client: client,
		key:    "notify:" + viewID,
		ttl:    ttl,
		limit:  limit,
		now:    time.Now,
	}
}

func (q *RedisQueue) Push(ctx context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = q.now()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification failed: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.RPush(ctx, q.key, payload)
		pipe.LTrim(ctx, q.key, int64(-q.limit), -1)
		pipe.Expire(ctx, q.key, q.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis push notification failed: %w", err)
	}
	return nil
}

func (q *RedisQueue) Drain(ctx context.Context) ([]Notification, error) {
	var values *redisv9.StringSliceCmd
	_, err := q.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		values = pipe.LRange(ctx, q.key, 0, -1)
		pipe.Del(ctx, q.key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis drain notifications failed: %w", err)
	}

	items := make([]Notification, 0, len(values.Val()))
	for _, raw := range values.Val() {
		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			continue
		}
		items = append(items, n)
	}
	return live(items, q.now(), q.ttl), nil
}

// Delete drops the view's pending notifications.
func (q *RedisQueue) Delete(ctx context.Context) error {
	if err := q.client.Del(ctx, q.key).Err(); err != nil {
		return fmt.Errorf("redis delete notifications failed: %w", err)
	}
	return nil
}
