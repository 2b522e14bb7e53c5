package service

import (
	"errors"

	"support-assistant/backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrNotTicketOwner = errors.New("not authorized to access this ticket")
)

// TicketService owns ticket and message persistence and runs the
// ownership check before any ticket operation proceeds.
type TicketService struct {
	db *gorm.DB
}

// NewTicketService creates a new ticket service
func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{db: db}
}

// authorizeTicketAccess is the single ownership predicate: the requester
// must own the ticket or hold the admin role. Read, update and
// message-append all run exactly this check.
func (s *TicketService) authorizeTicketAccess(user *models.User, ticket *models.Ticket) error {
	if ticket.UserID == user.ID || user.IsAdmin() {
		return nil
	}
	return ErrNotTicketOwner
}

// CreateTicket creates a new ticket owned by the user
func (s *TicketService) CreateTicket(user *models.User, req *models.CreateTicketRequest) (*models.Ticket, error) {
	status := req.Status
	if status == "" {
		status = models.DefaultTicketStatus
	}

	ticket := models.Ticket{
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		UserID:      user.ID,
	}

	if err := s.db.Create(&ticket).Error; err != nil {
		return nil, err
	}

	return &ticket, nil
}

// GetUserTickets returns all tickets owned by the user
func (s *TicketService) GetUserTickets(user *models.User) ([]models.Ticket, error) {
	var tickets []models.Ticket
	result := s.db.Where("user_id = ?", user.ID).Order("id ASC").Find(&tickets)
	if result.Error != nil {
		return nil, result.Error
	}
	return tickets, nil
}

// GetTicketWithMessages loads a ticket and its messages in insertion
// order, after the ownership check passes.
func (s *TicketService) GetTicketWithMessages(user *models.User, ticketID uint) (*models.Ticket, error) {
	var ticket models.Ticket
	result := s.db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("messages.id ASC")
	}).First(&ticket, ticketID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, result.Error
	}

	if err := s.authorizeTicketAccess(user, &ticket); err != nil {
		return nil, err
	}

	return &ticket, nil
}

// UpdateTicket applies a partial update to a ticket the user may access
func (s *TicketService) UpdateTicket(user *models.User, ticketID uint, req *models.UpdateTicketRequest) (*models.Ticket, error) {
	var ticket models.Ticket
	result := s.db.First(&ticket, ticketID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, result.Error
	}

	if err := s.authorizeTicketAccess(user, &ticket); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	if len(updates) > 0 {
		if err := s.db.Model(&ticket).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return &ticket, nil
}

// AddMessage appends a message to a ticket the user may access.
// Messages are append-only; the IsAI flag is fixed at creation.
func (s *TicketService) AddMessage(user *models.User, ticketID uint, req *models.CreateMessageRequest) (*models.Message, error) {
	var ticket models.Ticket
	result := s.db.First(&ticket, ticketID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, result.Error
	}

	if err := s.authorizeTicketAccess(user, &ticket); err != nil {
		return nil, err
	}

	message := models.Message{
		TicketID: ticket.ID,
		Content:  req.Content,
		IsAI:     req.IsAI,
	}

	if err := s.db.Create(&message).Error; err != nil {
		return nil, err
	}

	return &message, nil
}
