package repository

import (
	"context"
	"fmt"

	"aria-chat/internal/model"
	"aria-chat/internal/store"
)

type DocumentRepository struct {
	store store.Store
}

func NewDocumentRepository(s store.Store) *DocumentRepository {
	return &DocumentRepository{store: s}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.store.Insert(ctx, model.TableDocuments, doc); err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

// List returns every document, newest first.
func (r *DocumentRepository) List(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	err := r.store.Select(ctx, model.TableDocuments, store.Query{
		Order: []store.Order{{Column: "created_at", Desc: true}},
	}, &docs)
	if err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

// Get returns nil, nil when the document does not exist.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*model.Document, error) {
	var docs []model.Document
	err := r.store.Select(ctx, model.TableDocuments, store.Query{
		Where: []store.Eq{{Column: "id", Value: id}},
		Limit: 1,
	}, &docs)
	if err != nil {
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status model.DocumentStatus, content *string) error {
	values := map[string]any{"status": status}
	if content != nil {
		values["content"] = *content
	}
	if err := r.store.Update(ctx, model.TableDocuments, store.Eq{Column: "id", Value: id}, values); err != nil {
		return fmt.Errorf("update document status failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, model.TableDocuments, store.Eq{Column: "id", Value: id}); err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}
