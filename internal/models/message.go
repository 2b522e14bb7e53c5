package models

import (
	"time"
)

// Message represents one entry in a ticket's conversation. Messages are
// append-only: they are never updated or deleted individually, only
// removed when the parent ticket is deleted. The IsAI flag is fixed at
// creation.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TicketID  uint      `gorm:"index;not null" json:"ticket_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsAI      bool      `gorm:"default:false" json:"is_ai"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateMessageRequest is the request structure for appending a message
type CreateMessageRequest struct {
	Content string `json:"content" binding:"required"`
	IsAI    bool   `json:"is_ai"`
}
