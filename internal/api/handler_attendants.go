package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ticket-queue-backend/internal/queue"
)

type activateRequest struct {
	Name      string `json:"name" binding:"required"`
	DeskLabel string `json:"desk_label" binding:"required"`
}

// ActivateAttendant logs an attendant in at a desk.
func (h *Handler) ActivateAttendant(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.queue.Activate(c.Request.Context(), req.Name, req.DeskLabel)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// ListAttendants returns every attendant known to the scheduler.
func (h *Handler) ListAttendants(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"attendants": h.queue.Attendants()})
}

// DeactivateAttendant logs an attendant out.
func (h *Handler) DeactivateAttendant(c *gin.Context) {
	a, err := h.queue.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type attendantStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetAttendantStatus pauses or resumes an idle attendant.
func (h *Handler) SetAttendantStatus(c *gin.Context) {
	var req attendantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	status, err := queue.ParseAttendantStatus(req.Status)
	if err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.queue.SetAttendantStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// CallNext dispatches the head of the queue to the attendant.
func (h *Handler) CallNext(c *gin.Context) {
	t, err := h.queue.CallNext(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ticketView(t, 0))
}
