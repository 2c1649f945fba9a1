package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"ticket-queue-backend/internal/notification"
	"ticket-queue-backend/internal/queue"
	"ticket-queue-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	queue       *queue.Scheduler
	store       store.Store
	webpush     *webpush.Options
	events      *notification.Broadcaster
	recentCalls int
}

// NewHandler creates a new API handler. store, webpushOptions and events
// may be nil; the endpoints that need them then answer 503.
func NewHandler(s *queue.Scheduler, st store.Store, webpushOptions *webpush.Options, events *notification.Broadcaster) *Handler {
	return &Handler{
		queue:       s,
		store:       st,
		webpush:     webpushOptions,
		events:      events,
		recentCalls: 5,
	}
}

// errorStatus maps scheduler errors to an HTTP status and a stable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, queue.ErrEmptyQueue):
		return http.StatusNotFound, "empty_queue"
	case errors.Is(err, queue.ErrInvalidCategory):
		return http.StatusUnprocessableEntity, "invalid_category"
	case errors.Is(err, queue.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, queue.ErrAttendantBusy):
		return http.StatusConflict, "attendant_busy"
	case errors.Is(err, queue.ErrAttendantOffline):
		return http.StatusConflict, "attendant_offline"
	case errors.Is(err, queue.ErrNotOwner):
		return http.StatusForbidden, "not_owner"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("Error handling %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
}

type waitEstimate struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ticketResponse is a ticket with its live queue position. Position is 0
// for tickets that are no longer waiting.
type ticketResponse struct {
	queue.Ticket
	Position        int           `json:"position"`
	EstimateMinutes *waitEstimate `json:"estimate_minutes,omitempty"`
}

func (h *Handler) ticketView(t queue.Ticket, position int) ticketResponse {
	resp := ticketResponse{Ticket: t, Position: position}
	if position > 0 {
		low, high := h.queue.EstimateWait(position)
		resp.EstimateMinutes = &waitEstimate{Min: low, Max: high}
	}
	return resp
}
