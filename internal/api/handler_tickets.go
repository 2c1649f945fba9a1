package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ticket-queue-backend/internal/queue"
)

type createTicketRequest struct {
	CategoryID string `json:"category_id" binding:"required"`
	IsPriority bool   `json:"is_priority"`
}

// CreateTicket issues a ticket at the kiosk.
func (h *Handler) CreateTicket(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	t, err := h.queue.Enqueue(c.Request.Context(), req.CategoryID, req.IsPriority)
	if err != nil {
		writeError(c, err)
		return
	}
	position, err := h.queue.PositionOf(t.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.ticketView(t, position))
}

// ListTickets returns tickets in issue order, filtered by ?status=a,b.
func (h *Handler) ListTickets(c *gin.Context) {
	var statuses []queue.Status
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := queue.ParseStatus(part)
			if err != nil {
				badRequest(c, err)
				return
			}
			statuses = append(statuses, st)
		}
	}
	tickets := h.queue.Tickets(statuses...)
	if tickets == nil {
		tickets = []queue.Ticket{}
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

// GetTicket returns a ticket with its position and wait estimate.
func (h *Handler) GetTicket(c *gin.Context) {
	t, position, err := h.queue.Ticket(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ticketView(t, position))
}

// GetTicketPosition is the cheap polling endpoint of the ticket page.
func (h *Handler) GetTicketPosition(c *gin.Context) {
	position, err := h.queue.PositionOf(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	low, high := h.queue.EstimateWait(position)
	c.JSON(http.StatusOK, gin.H{
		"position":         position,
		"estimate_minutes": waitEstimate{Min: low, Max: high},
	})
}

// GetTicketByNumber finds a ticket from the number printed on it.
func (h *Handler) GetTicketByNumber(c *gin.Context) {
	t, position, err := h.queue.TicketByNumber(c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ticketView(t, position))
}

type attendantActionRequest struct {
	AttendantID string `json:"attendant_id" binding:"required"`
}

// StartService marks a called ticket as being served.
func (h *Handler) StartService(c *gin.Context) {
	h.attendantAction(c, h.queue.StartService)
}

// CompleteService finishes a ticket and frees the attendant.
func (h *Handler) CompleteService(c *gin.Context) {
	h.attendantAction(c, h.queue.CompleteService)
}

func (h *Handler) attendantAction(c *gin.Context, action func(ctx context.Context, ticketID, attendantID string) (queue.Ticket, error)) {
	var req attendantActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := action(c.Request.Context(), c.Param("id"), req.AttendantID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ticketView(t, 0))
}

// CancelTicket abandons a waiting or called ticket.
func (h *Handler) CancelTicket(c *gin.Context) {
	t, err := h.queue.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ticketView(t, 0))
}
