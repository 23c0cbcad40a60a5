package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"

	"aria-chat/internal/model"
	"aria-chat/internal/storage"
)

var errBoom = errors.New("boom")

type fakeSessions struct {
	mu        sync.Mutex
	rows      []model.ChatSession
	creates   int
	listCalls int
	createErr error
	listErr   error
	deleteErr error
}

func (f *fakeSessions) List(context.Context) ([]model.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.ChatSession, len(f.rows))
	copy(out, f.rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeSessions) Create(_ context.Context, s *model.ChatSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	f.rows = append(f.rows, *s)
	return nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, s := range f.rows {
		if s.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			break
		}
	}
	return nil
}

type fakeMessages struct {
	mu        sync.Mutex
	rows      []model.ChatMessage
	createErr error
	listErr   error
	// failRole makes Create fail only for that role.
	failRole model.MessageRole
}

func (f *fakeMessages) Create(_ context.Context, m *model.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil && (f.failRole == "" || f.failRole == m.Role) {
		return f.createErr
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	f.rows = append(f.rows, *m)
	return nil
}

func (f *fakeMessages) ListBySessionID(_ context.Context, sessionID string) ([]model.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.ChatMessage
	for _, m := range f.rows {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) byRole(role model.MessageRole) []model.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ChatMessage
	for _, m := range f.rows {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// fakeHistory is a HistoryCache whose writes can be made to fail.
type fakeHistory struct {
	mu       sync.Mutex
	cached   map[string][]model.ChatMessage
	setErr   error
	setCalls int
}

func (f *fakeHistory) GetHistory(_ context.Context, sessionID string) ([]model.ChatMessage, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.cached[sessionID]
	return msgs, ok, nil
}

func (f *fakeHistory) SetHistory(_ context.Context, sessionID string, messages []model.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	if f.cached == nil {
		f.cached = make(map[string][]model.ChatMessage)
	}
	f.cached[sessionID] = messages
	return nil
}

func (f *fakeHistory) DeleteHistory(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cached, sessionID)
	return nil
}

func (f *fakeHistory) MarkDirty(context.Context, string) error { return nil }

func (f *fakeHistory) IsDirty(context.Context, string) (bool, error) { return false, nil }

type fakeDocuments struct {
	mu        sync.Mutex
	rows      []model.Document
	inserts   int
	listCalls int
	createErr error
	listErr   error
	deleteErr error
}

func (f *fakeDocuments) List(context.Context) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Document, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeDocuments) Create(_ context.Context, d *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.createErr != nil {
		return f.createErr
	}
	f.rows = append([]model.Document{*d}, f.rows...)
	return nil
}

func (f *fakeDocuments) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, d := range f.rows {
		if d.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			break
		}
	}
	return nil
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) Write(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = b
	s.mu.Unlock()
	return nil
}

func (s *memStorage) Read(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []model.DocumentJob
}

func (f *fakeJobs) Publish(_ context.Context, job model.DocumentJob) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	return nil
}

type blockingResponder struct {
	started chan struct{}
}

func (r *blockingResponder) Respond(ctx context.Context, _ string, _ string) (string, error) {
	close(r.started)
	<-ctx.Done()
	return "", ctx.Err()
}
