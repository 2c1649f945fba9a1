package notification

import (
	"context"

	"ticket-queue-backend/internal/queue"
)

type funcHandler struct {
	name string
	fn   func(ctx context.Context, evt queue.Event) error
}

func (h funcHandler) Name() string { return h.name }

func (h funcHandler) Handle(ctx context.Context, evt queue.Event) error { return h.fn(ctx, evt) }

// HandlerFunc adapts a function to the Handler interface.
func HandlerFunc(name string, fn func(ctx context.Context, evt queue.Event) error) Handler {
	return funcHandler{name: name, fn: fn}
}

// StateStore persists entity state carried by events.
type StateStore interface {
	SaveTicket(ctx context.Context, t queue.Ticket) error
	SaveAttendant(ctx context.Context, a queue.Attendant) error
	SaveSnapshot(ctx context.Context, tickets []queue.Ticket, attendants []queue.Attendant) error
}

// StateWriter keeps the database in step with the scheduler. Writes are
// version guarded by the store, so retried and reordered events are safe.
type StateWriter struct {
	store StateStore
}

// NewStateWriter creates a handler that persists every event.
func NewStateWriter(s StateStore) *StateWriter {
	return &StateWriter{store: s}
}

func (w *StateWriter) Name() string { return "state-writer" }

// Handle saves the entities of evt. A ticket and attendant changed together
// are written in one transaction, so a crash never stores half a dispatch.
func (w *StateWriter) Handle(ctx context.Context, evt queue.Event) error {
	switch {
	case evt.Ticket != nil && evt.Attendant != nil:
		return w.store.SaveSnapshot(ctx, []queue.Ticket{*evt.Ticket}, []queue.Attendant{*evt.Attendant})
	case evt.Ticket != nil:
		return w.store.SaveTicket(ctx, *evt.Ticket)
	case evt.Attendant != nil:
		return w.store.SaveAttendant(ctx, *evt.Attendant)
	}
	return nil
}
