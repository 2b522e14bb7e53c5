package models

import (
	"time"
)

// DefaultTicketStatus is the status assigned to newly created tickets
const DefaultTicketStatus = "open"

// Ticket represents a support ticket owned by a user
type Ticket struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Status      string    `gorm:"default:open" json:"status"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Messages    []Message `json:"messages,omitempty" gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateTicketRequest is the request structure for creating a ticket
type CreateTicketRequest struct {
	Title       string `json:"title" binding:"required,min=3,max=100"`
	Description string `json:"description" binding:"required,min=10"`
	Status      string `json:"status,omitempty"`
}

// UpdateTicketRequest is the request structure for a partial ticket update.
// Nil fields are left unchanged.
type UpdateTicketRequest struct {
	Title       *string `json:"title,omitempty" binding:"omitempty,min=3,max=100"`
	Description *string `json:"description,omitempty" binding:"omitempty,min=10"`
	Status      *string `json:"status,omitempty"`
}
