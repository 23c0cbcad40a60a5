package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"aria-chat/internal/model"
	"aria-chat/internal/notify"
	"aria-chat/internal/pkg/logger"
	"aria-chat/internal/pkg/metrics"
	"aria-chat/internal/storage"
)

type DocumentStore interface {
	List(ctx context.Context) ([]model.Document, error)
	Create(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, id string) error
}

type DocumentJobPublisher interface {
	Publish(ctx context.Context, job model.DocumentJob) error
}

// UploadFile is one selected file. Open may be nil when no object storage
// is configured.
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

type UploadOptions struct {
	AllowedFileTypes []string
	MaxFileSize      int64
}

type DocumentDeps struct {
	Documents DocumentStore
	// Storage and Jobs are optional.
	Storage  storage.Storage
	Jobs     DocumentJobPublisher
	Notifier notify.Queue
	Logger   zerolog.Logger
	Options  UploadOptions
}

type UploadResult struct {
	Accepted []string `json:"accepted"`
	Rejected int      `json:"rejected"`
	Failed   int      `json:"failed"`
}

type DocumentView struct {
	model.Document
	StatusLabel   string `json:"status_label"`
	StatusVariant string `json:"status_variant"`
	SizeLabel     string `json:"size_label"`
}

type DocumentSnapshot struct {
	ViewID    string         `json:"view_id"`
	Query     string         `json:"query"`
	Total     int            `json:"total"`
	Pending   int            `json:"pending"`
	Documents []DocumentView `json:"documents"`
}

// DocumentController owns the state of one admin document view.
type DocumentController struct {
	viewID   string
	docs     DocumentStore
	storage  storage.Storage
	jobs     DocumentJobPublisher
	notifier notify.Queue
	log      zerolog.Logger
	allowed  map[string]struct{}
	maxSize  int64

	mu        sync.Mutex
	documents []model.Document
	query     string
}

func NewDocumentController(viewID string, deps DocumentDeps) *DocumentController {
	allowed := make(map[string]struct{}, len(deps.Options.AllowedFileTypes))
	for _, ext := range deps.Options.AllowedFileTypes {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &DocumentController{
		viewID:   viewID,
		docs:     deps.Documents,
		storage:  deps.Storage,
		jobs:     deps.Jobs,
		notifier: deps.Notifier,
		log:      deps.Logger.With().Str(logger.FieldViewID, viewID).Logger(),
		allowed:  allowed,
		maxSize:  deps.Options.MaxFileSize,
	}
}

func (c *DocumentController) ViewID() string { return c.viewID }

// ListDocuments reloads every document, newest first. On failure the
// current list is kept.
func (c *DocumentController) ListDocuments(ctx context.Context) ([]model.Document, error) {
	docs, err := c.docs.List(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("load documents failed")
		c.notify(notify.Destructive("Error", "Failed to load documents"))
		return c.Documents(), err
	}

	c.mu.Lock()
	c.documents = docs
	c.mu.Unlock()
	return cloneDocuments(docs), nil
}

func (c *DocumentController) Documents() []model.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneDocuments(c.documents)
}

func (c *DocumentController) SetQuery(query string) {
	c.mu.Lock()
	c.query = query
	c.mu.Unlock()
}

func (c *DocumentController) Filtered() []model.Document {
	c.mu.Lock()
	docs, query := cloneDocuments(c.documents), c.query
	c.mu.Unlock()
	return FilterDocuments(docs, query)
}

// Upload validates each file and records the valid ones with status
// processing. Invalid files are reported and skipped. The list is reloaded
// once at the end.
func (c *DocumentController) Upload(ctx context.Context, files []UploadFile) UploadResult {
	result := UploadResult{Accepted: []string{}}
	for _, f := range files {
		ext := FileExtension(f.Name)
		if _, ok := c.allowed[ext]; !ok {
			c.notify(notify.Destructive("Invalid File Type", fmt.Sprintf("File type %s is not allowed", ext)))
			metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			result.Rejected++
			continue
		}
		if c.maxSize > 0 && f.Size > c.maxSize {
			c.notify(notify.Destructive("File Too Large", fmt.Sprintf("File %s exceeds maximum size limit", f.Name)))
			metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			result.Rejected++
			continue
		}

		doc, err := c.uploadOne(ctx, f, ext)
		if err != nil {
			c.log.Error().Err(err).Str("file", f.Name).Msg("upload document failed")
			c.notify(notify.Destructive("Upload Error", fmt.Sprintf("Failed to upload %s", f.Name)))
			metrics.UploadsTotal.WithLabelValues("failed").Inc()
			result.Failed++
			continue
		}
		metrics.UploadsTotal.WithLabelValues("ok").Inc()
		result.Accepted = append(result.Accepted, doc.ID)
	}

	if len(files) > 0 {
		_, _ = c.ListDocuments(ctx)
	}

	switch {
	case result.Failed > 0:
		c.notify(notify.Destructive("Error", "Failed to upload documents"))
	case len(result.Accepted) > 0:
		c.notify(notify.Info("Success", "Documents uploaded successfully"))
	}
	return result
}

func (c *DocumentController) uploadOne(ctx context.Context, f UploadFile, ext string) (*model.Document, error) {
	size := f.Size
	fileType := ext
	doc := &model.Document{
		ID:        uuid.NewString(),
		Name:      f.Name,
		FileSize:  &size,
		FileType:  &fileType,
		Status:    model.DocumentProcessing,
		CreatedAt: time.Now(),
	}

	if c.storage != nil && f.Open != nil {
		key := "documents/" + doc.ID + ext
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload failed: %w", err)
		}
		err = c.storage.Write(ctx, key, rc, f.Size, f.ContentType)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("store upload failed: %w", err)
		}
		doc.FilePath = &key
	}

	if err := c.docs.Create(ctx, doc); err != nil {
		if doc.FilePath != nil {
			c.removeStored(ctx, doc.ID, *doc.FilePath)
		}
		return nil, err
	}

	if c.jobs != nil {
		job := model.DocumentJob{DocumentID: doc.ID, FileType: ext}
		if doc.FilePath != nil {
			job.FilePath = *doc.FilePath
		}
		if err := c.jobs.Publish(ctx, job); err != nil {
			c.log.Warn().Err(err).Str(logger.FieldDocument, doc.ID).Msg("enqueue document job failed")
		}
	}
	return doc, nil
}

func (c *DocumentController) DeleteDocument(ctx context.Context, id string) error {
	var filePath string
	c.mu.Lock()
	for _, doc := range c.documents {
		if doc.ID == id && doc.FilePath != nil {
			filePath = *doc.FilePath
			break
		}
	}
	c.mu.Unlock()

	if err := c.docs.Delete(ctx, id); err != nil {
		c.log.Error().Err(err).Str(logger.FieldDocument, id).Msg("delete document failed")
		c.notify(notify.Destructive("Error", "Failed to delete document"))
		return err
	}

	c.notify(notify.Info("Success", "Document deleted successfully"))
	_, _ = c.ListDocuments(ctx)
	if filePath != "" {
		c.removeStored(ctx, id, filePath)
	}
	return nil
}

func (c *DocumentController) Snapshot() DocumentSnapshot {
	c.mu.Lock()
	docs, query := cloneDocuments(c.documents), c.query
	c.mu.Unlock()

	pending := 0
	for _, doc := range docs {
		if doc.Status == model.DocumentProcessing {
			pending++
		}
	}

	filtered := FilterDocuments(docs, query)
	views := make([]DocumentView, 0, len(filtered))
	for _, doc := range filtered {
		views = append(views, DocumentView{
			Document:      doc,
			StatusLabel:   StatusLabel(doc.Status),
			StatusVariant: StatusVariant(doc.Status),
			SizeLabel:     FormatFileSize(doc.FileSize),
		})
	}
	return DocumentSnapshot{
		ViewID:    c.viewID,
		Query:     query,
		Total:     len(docs),
		Pending:   pending,
		Documents: views,
	}
}

func (c *DocumentController) Notifications(ctx context.Context) ([]notify.Notification, error) {
	if c.notifier == nil {
		return nil, nil
	}
	return c.notifier.Drain(ctx)
}

func (c *DocumentController) Close() {
	discardNotifications(c.notifier, c.log)
}

func (c *DocumentController) removeStored(ctx context.Context, id, key string) {
	if c.storage == nil {
		return
	}
	if err := c.storage.Delete(ctx, key); err != nil {
		c.log.Warn().Err(err).Str(logger.FieldDocument, id).Msg("remove stored file failed")
	}
}

func (c *DocumentController) notify(n notify.Notification) {
	if c.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := c.notifier.Push(ctx, n); err != nil {
		c.log.Warn().Err(err).Str("title", n.Title).Msg("push notification failed")
	}
}

func cloneDocuments(in []model.Document) []model.Document {
	out := make([]model.Document, len(in))
	copy(out, in)
	return out
}
