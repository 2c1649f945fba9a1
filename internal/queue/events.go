package queue

import (
	"context"
	"time"
)

// EventKind names a scheduler state change.
type EventKind string

const (
	EventTicketCreated   EventKind = "ticket.created"
	EventTicketCalled    EventKind = "ticket.called"
	EventTicketStarted   EventKind = "ticket.started"
	EventTicketCompleted EventKind = "ticket.completed"
	EventTicketCancelled EventKind = "ticket.cancelled"
	EventTicketRequeued  EventKind = "ticket.requeued"

	EventAttendantActivated     EventKind = "attendant.activated"
	EventAttendantDeactivated   EventKind = "attendant.deactivated"
	EventAttendantStatusChanged EventKind = "attendant.status_changed"
)

// Event carries the new state of the entities a mutation touched. Calling,
// completing, cancelling a called ticket and requeueing on logout change a
// ticket and its attendant at once; those events carry both. Consumers
// must treat it as a hint and tolerate duplicates and reordering; Version
// on the entity tells which state is newer.
type Event struct {
	Kind       EventKind  `json:"kind"`
	OccurredAt time.Time  `json:"occurred_at"`
	Ticket     *Ticket    `json:"ticket,omitempty"`
	Attendant  *Attendant `json:"attendant,omitempty"`
}

// Sink receives scheduler events after the mutation that produced them has
// been applied. Publish must not call back into the scheduler synchronously.
type Sink interface {
	Publish(ctx context.Context, evt Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, evt Event)

// Publish calls f(ctx, evt).
func (f SinkFunc) Publish(ctx context.Context, evt Event) { f(ctx, evt) }

type nopSink struct{}

func (nopSink) Publish(context.Context, Event) {}

// Snapshot is the persisted state a scheduler starts from.
type Snapshot struct {
	Tickets    []Ticket
	Attendants []Attendant
	Categories []Category
}

// Loader reads the persisted state at startup.
type Loader interface {
	LoadAll(ctx context.Context) (Snapshot, error)
}
