package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const TableChatMessages = "chat_messages"

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type ChatMessage struct {
	ID        string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID string      `gorm:"type:varchar(36);not null;index" json:"session_id"`
	Role      MessageRole `gorm:"size:16;not null" json:"role"`
	Content   string      `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time   `gorm:"index" json:"created_at"`
}

func (ChatMessage) TableName() string { return TableChatMessages }

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
