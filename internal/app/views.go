package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"aria-chat/internal/pkg/metrics"
)

var ErrViewNotFound = errors.New("view not found")

type View interface {
	Close()
}

// ViewRegistry tracks the open views of one kind. A view untouched for
// longer than the idle TTL is closed by Sweep.
type ViewRegistry[V View] struct {
	kind    string
	idleTTL time.Duration
	factory func(viewID string) V
	now     func() time.Time

	mu    sync.Mutex
	views map[string]*viewEntry[V]
}

type viewEntry[V View] struct {
	view     V
	lastSeen time.Time
}

func NewViewRegistry[V View](kind string, idleTTL time.Duration, factory func(viewID string) V) *ViewRegistry[V] {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &ViewRegistry[V]{
		kind:    kind,
		idleTTL: idleTTL,
		factory: factory,
		now:     time.Now,
		views:   make(map[string]*viewEntry[V]),
	}
}

func (r *ViewRegistry[V]) Open() (string, V) {
	id := uuid.NewString()
	view := r.factory(id)

	r.mu.Lock()
	r.views[id] = &viewEntry[V]{view: view, lastSeen: r.now()}
	n := len(r.views)
	r.mu.Unlock()

	metrics.OpenViews.WithLabelValues(r.kind).Set(float64(n))
	return id, view
}

// Get returns the view and marks it as used.
func (r *ViewRegistry[V]) Get(id string) (V, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.views[id]
	if !ok {
		var zero V
		return zero, ErrViewNotFound
	}
	entry.lastSeen = r.now()
	return entry.view, nil
}

func (r *ViewRegistry[V]) Close(id string) error {
	r.mu.Lock()
	entry, ok := r.views[id]
	delete(r.views, id)
	n := len(r.views)
	r.mu.Unlock()

	if !ok {
		return ErrViewNotFound
	}
	metrics.OpenViews.WithLabelValues(r.kind).Set(float64(n))
	entry.view.Close()
	return nil
}

// Sweep closes idle views and returns how many were closed.
func (r *ViewRegistry[V]) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []V
	for id, entry := range r.views {
		if entry.lastSeen.Before(cutoff) {
			idle = append(idle, entry.view)
			delete(r.views, id)
		}
	}
	n := len(r.views)
	r.mu.Unlock()

	metrics.OpenViews.WithLabelValues(r.kind).Set(float64(n))
	for _, v := range idle {
		v.Close()
	}
	return len(idle)
}

func (r *ViewRegistry[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Run sweeps periodically until ctx is done, then closes every view.
func (r *ViewRegistry[V]) Run(ctx context.Context) {
	interval := r.idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *ViewRegistry[V]) CloseAll() {
	r.mu.Lock()
	views := make([]V, 0, len(r.views))
	for id, entry := range r.views {
		views = append(views, entry.view)
		delete(r.views, id)
	}
	r.mu.Unlock()

	metrics.OpenViews.WithLabelValues(r.kind).Set(0)
	for _, v := range views {
		v.Close()
	}
}
