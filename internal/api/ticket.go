package api

import (
	"errors"
	"net/http"
	"strconv"

	"support-assistant/backend/internal/models"
	"support-assistant/backend/internal/service"
	apperrors "support-assistant/backend/pkg/errors"
	"support-assistant/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// TicketHandler serves the ticket and message endpoints.
type TicketHandler struct {
	tickets *service.TicketService
}

func NewTicketHandler(tickets *service.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// List returns the tickets owned by the caller.
func (h *TicketHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("Unauthenticated", "Authentication required"))
		return
	}

	tickets, err := h.tickets.GetUserTickets(user)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, tickets)
}

// Create opens a new ticket owned by the caller.
func (h *TicketHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("Unauthenticated", "Authentication required"))
		return
	}

	var req models.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("InvalidRequest", err.Error()))
		return
	}

	ticket, err := h.tickets.CreateTicket(user, &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, ticket)
}

// Get returns a ticket with its messages in chronological order.
func (h *TicketHandler) Get(c *gin.Context) {
	user, ticketID, ok := callerAndTicketID(c)
	if !ok {
		return
	}

	ticket, err := h.tickets.GetTicketWithMessages(user, ticketID)
	if err != nil {
		c.Error(mapTicketError(err))
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// Update applies a partial update to a ticket.
func (h *TicketHandler) Update(c *gin.Context) {
	user, ticketID, ok := callerAndTicketID(c)
	if !ok {
		return
	}

	var req models.UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("InvalidRequest", err.Error()))
		return
	}

	ticket, err := h.tickets.UpdateTicket(user, ticketID, &req)
	if err != nil {
		c.Error(mapTicketError(err))
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// AddMessage appends a message to a ticket.
func (h *TicketHandler) AddMessage(c *gin.Context) {
	user, ticketID, ok := callerAndTicketID(c)
	if !ok {
		return
	}

	var req models.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("InvalidRequest", err.Error()))
		return
	}

	message, err := h.tickets.AddMessage(user, ticketID, &req)
	if err != nil {
		c.Error(mapTicketError(err))
		return
	}

	c.JSON(http.StatusCreated, message)
}

// callerAndTicketID resolves the authenticated user and the :id route
// parameter, reporting the appropriate error if either is missing.
func callerAndTicketID(c *gin.Context) (*models.User, uint, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("Unauthenticated", "Authentication required"))
		return nil, 0, false
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.Error(apperrors.NewBadRequestError("InvalidRequest", "Invalid ticket id"))
		return nil, 0, false
	}

	return user, uint(id), true
}

// mapTicketError translates ticket service errors to API errors.
func mapTicketError(err error) error {
	switch {
	case errors.Is(err, service.ErrTicketNotFound):
		return apperrors.NewNotFoundError("NotFound", "Ticket not found")
	case errors.Is(err, service.ErrNotTicketOwner):
		return apperrors.NewForbiddenError("NotAuthorized", "Not enough permissions to access this ticket")
	default:
		return err
	}
}
