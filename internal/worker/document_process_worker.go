package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"aria-chat/internal/model"
	"aria-chat/internal/pkg/logger"
	"aria-chat/internal/pkg/pdfextract"
	"aria-chat/internal/storage"
)

var (
	errNotText      = errors.New("file is not valid utf-8 text")
	ErrRunnerClosed = errors.New("job runner is closed")
)

type DocumentStatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, status model.DocumentStatus, content *string) error
}

// DocumentProcessor settles a processing document as ready or failed,
// extracting text for .pdf and .txt files that were stored.
type DocumentProcessor struct {
	docs    DocumentStatusUpdater
	storage storage.Storage
	log     zerolog.Logger
}

func NewDocumentProcessor(docs DocumentStatusUpdater, store storage.Storage, log zerolog.Logger) *DocumentProcessor {
	return &DocumentProcessor{
		docs:    docs,
		storage: store,
		log:     log.With().Str("worker", "document_process").Logger(),
	}
}

func (p *DocumentProcessor) Process(ctx context.Context, job model.DocumentJob) error {
	log := p.log.With().Str(logger.FieldDocument, job.DocumentID).Logger()

	content, err := p.extract(ctx, job)
	if err != nil {
		log.Warn().Err(err).Msg("extract document text failed")
		if updateErr := p.docs.UpdateStatus(ctx, job.DocumentID, model.DocumentFailed, nil); updateErr != nil {
			return fmt.Errorf("mark document failed: %w", updateErr)
		}
		return nil
	}

	if err := p.docs.UpdateStatus(ctx, job.DocumentID, model.DocumentReady, content); err != nil {
		return fmt.Errorf("mark document ready: %w", err)
	}
	log.Info().Bool("has_content", content != nil).Msg("document ready")
	return nil
}

func (p *DocumentProcessor) extract(ctx context.Context, job model.DocumentJob) (*string, error) {
	if job.FilePath == "" || p.storage == nil {
		return nil, nil
	}

	ext := strings.ToLower(job.FileType)
	if ext != ".pdf" && ext != ".txt" {
		return nil, nil
	}

	rc, err := p.storage.Read(ctx, job.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read stored file failed: %w", err)
	}
	defer rc.Close()

	var text string
	switch ext {
	case ".pdf":
		text, err = pdfextract.ExtractText(rc)
		if err != nil {
			return nil, fmt.Errorf("extract pdf text failed: %w", err)
		}
	case ".txt":
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read text failed: %w", err)
		}
		if !utf8.Valid(b) {
			return nil, errNotText
		}
		text = string(b)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return &text, nil
}

// DocumentProcessWorker feeds queued jobs to a DocumentProcessor.
type DocumentProcessWorker struct {
	consumer
	processor *DocumentProcessor
}

func NewDocumentProcessWorker(conn *amqp.Connection, processor *DocumentProcessor, queueName string, log zerolog.Logger) *DocumentProcessWorker {
	w := &DocumentProcessWorker{processor: processor}
	w.consumer = consumer{
		conn:      conn,
		queueName: queueName,
		handle:    w.handle,
		log:       log.With().Str("worker", "document_process").Logger(),
	}
	return w
}

func (w *DocumentProcessWorker) handle(ctx context.Context, body []byte) error {
	var job model.DocumentJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode document job failed: %w", err)
	}
	return w.processor.Process(ctx, job)
}

// InlineJobRunner processes jobs in background goroutines when no broker
// is configured.
type InlineJobRunner struct {
	processor *DocumentProcessor
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewInlineJobRunner(parent context.Context, processor *DocumentProcessor) *InlineJobRunner {
	ctx, cancel := context.WithCancel(parent)
	return &InlineJobRunner{processor: processor, ctx: ctx, cancel: cancel}
}

// Publish starts job in the background. It fails once the runner is
// closed or its parent context is done.
func (r *InlineJobRunner) Publish(_ context.Context, job model.DocumentJob) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRunnerClosed
	}
	if err := r.ctx.Err(); err != nil {
		r.mu.Unlock()
		return err
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		if err := r.processor.Process(r.ctx, job); err != nil {
			r.processor.log.Error().Err(err).Str(logger.FieldDocument, job.DocumentID).Msg("process document failed")
		}
	}()
	return nil
}

// Wait blocks until every started job has returned.
func (r *InlineJobRunner) Wait() { r.wg.Wait() }

func (r *InlineJobRunner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}
