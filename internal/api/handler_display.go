package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ticket-queue-backend/internal/queue"
)

// GetCategories lists the categories offered at the kiosk.
func (h *Handler) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.queue.Categories()})
}

type queueEntry struct {
	ID              string       `json:"id"`
	Number          string       `json:"number"`
	CategoryID      string       `json:"category_id"`
	IsPriority      bool         `json:"is_priority"`
	Position        int          `json:"position"`
	EstimateMinutes waitEstimate `json:"estimate_minutes"`
}

func (h *Handler) queueEntries() []queueEntry {
	waiting := h.queue.Waiting()
	out := make([]queueEntry, len(waiting))
	for i, t := range waiting {
		low, high := h.queue.EstimateWait(i + 1)
		out[i] = queueEntry{
			ID:              t.ID,
			Number:          t.Number,
			CategoryID:      t.CategoryID,
			IsPriority:      t.IsPriority,
			Position:        i + 1,
			EstimateMinutes: waitEstimate{Min: low, Max: high},
		}
	}
	return out
}

// GetQueue returns the waiting tickets in dispatch order.
func (h *Handler) GetQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"waiting": h.queueEntries()})
}

type displayCall struct {
	Number    string `json:"number"`
	DeskLabel string `json:"desk_label"`
	Status    string `json:"status"`
}

// GetDisplay feeds the waiting-room panel: latest calls, the queue and the
// desks that are open.
func (h *Handler) GetDisplay(c *gin.Context) {
	recent := h.queue.RecentCalls(h.recentCalls)
	calls := make([]displayCall, len(recent))
	for i, t := range recent {
		calls[i] = displayCall{Number: t.Number, DeskLabel: t.DeskLabel, Status: string(t.Status)}
	}

	var active []queue.Attendant
	for _, a := range h.queue.Attendants() {
		if a.Status != queue.AttendantOffline {
			active = append(active, a)
		}
	}
	if active == nil {
		active = []queue.Attendant{}
	}

	c.JSON(http.StatusOK, gin.H{
		"recent_calls": calls,
		"waiting":      h.queueEntries(),
		"attendants":   active,
		"stats":        h.queue.Stats(),
	})
}
