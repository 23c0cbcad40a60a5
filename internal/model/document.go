package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const TableDocuments = "documents"

type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentFailed     DocumentStatus = "failed"
)

// Document is the metadata record of an uploaded file. Content stays nil
// until the processing worker extracts text.
type Document struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string         `gorm:"size:256;not null" json:"name"`
	FilePath  *string        `gorm:"size:512" json:"file_path"`
	FileSize  *int64         `json:"file_size"`
	FileType  *string        `gorm:"size:32" json:"file_type"`
	Content   *string        `gorm:"type:text" json:"content"`
	Status    DocumentStatus `gorm:"size:16;not null;default:processing;index" json:"status"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (Document) TableName() string { return TableDocuments }

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = DocumentProcessing
	}
	return nil
}

// DocumentJob asks the processing worker to settle a document's status.
type DocumentJob struct {
	DocumentID string `json:"document_id"`
	FilePath   string `json:"file_path"`
	FileType   string `json:"file_type"`
}
