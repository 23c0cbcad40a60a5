package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const TableChatSessions = "chat_sessions"

type ChatSession struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title     string    `gorm:"size:256;not null" json:"title"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (ChatSession) TableName() string { return TableChatSessions }

func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
