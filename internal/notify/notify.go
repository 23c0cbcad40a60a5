// Package notify holds the transient per-view notifications (toasts) the
// controllers raise. Entries auto-dismiss after a TTL and only the newest
// entries up to a limit are kept.
package notify

import (
	"context"
	"sync"
	"time"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

type Notification struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     Variant   `json:"variant"`
	CreatedAt   time.Time `json:"created_at"`
}

func Info(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDefault}
}

func Destructive(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDestructive}
}

type Queue interface {
	Push(ctx context.Context, n Notification) error
	// Drain returns the live notifications oldest first and empties the queue.
	Drain(ctx context.Context) ([]Notification, error)
}

type MemoryQueue struct {
	mu    sync.Mutex
	items []Notification
	ttl   time.Duration
	limit int
	now   func() time.Time
}

func NewMemoryQueue(ttl time.Duration, limit int) *MemoryQueue {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if limit <= 0 {
		limit = 20
	}
	return &MemoryQueue{ttl: ttl, limit: limit, now: time.Now}
}

func (q *MemoryQueue) Push(_ context.Context, n Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = q.now()
	}
	q.items = append(q.items, n)
	if over := len(q.items) - q.limit; over > 0 {
		q.items = append([]Notification(nil), q.items[over:]...)
	}
	return nil
}

func (q *MemoryQueue) Drain(_ context.Context) ([]Notification, error) {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	return live(items, q.now(), q.ttl), nil
}

func live(items []Notification, now time.Time, ttl time.Duration) []Notification {
	out := make([]Notification, 0, len(items))
	for _, n := range items {
		if now.Sub(n.CreatedAt) < ttl {
			out = append(out, n)
		}
	}
	return out
}
