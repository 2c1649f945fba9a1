package queue

import (
	"fmt"
	"strings"

	"ticket-queue-backend/internal/clock"
	"ticket-queue-backend/internal/parse"
)

// DefaultNumberWidth is the zero padding of ticket number suffixes.
const DefaultNumberWidth = 3

// transitions lists, per target status, the statuses it may be entered from.
var transitions = map[Status][]Status{
	StatusCalled:      {StatusWaiting},
	StatusBeingServed: {StatusCalled},
	StatusCompleted:   {StatusCalled, StatusBeingServed},
	StatusCancelled:   {StatusWaiting, StatusCalled},
}

// CanTransition reports whether a ticket may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Assignment carries the attendant fields stamped on a ticket when it is
// called.
type Assignment struct {
	AttendantID string
	DeskLabel   string
}

// TicketRegistry owns every ticket issued by a scheduler and their states.
// It is not safe for concurrent use; the Scheduler serializes access.
type TicketRegistry struct {
	clock clock.Clock
	ids   clock.IDSource
	width int

	seq   uint64
	byID  map[string]*Ticket
	bySeq map[uint64]*Ticket
	order []*Ticket
}

// NewTicketRegistry creates an empty registry. width is the zero padding of
// the number suffix; values below 1 select DefaultNumberWidth.
func NewTicketRegistry(c clock.Clock, ids clock.IDSource, width int) *TicketRegistry {
	if width < 1 {
		width = DefaultNumberWidth
	}
	return &TicketRegistry{
		clock: c,
		ids:   ids,
		width: width,
		byID:  make(map[string]*Ticket),
		bySeq: make(map[uint64]*Ticket),
	}
}

// Restore loads previously issued tickets. Tickets without a stored seq
// take it from their number. The counter resumes after the largest seq so
// numbers are never reused.
func (r *TicketRegistry) Restore(tickets []Ticket) error {
	for i := range tickets {
		t := tickets[i]
		if t.ID == "" {
			return fmt.Errorf("ticket %q has an empty id", t.Number)
		}
		if _, dup := r.byID[t.ID]; dup {
			return fmt.Errorf("duplicate ticket id %s", t.ID)
		}
		if _, err := ParseStatus(string(t.Status)); err != nil {
			return fmt.Errorf("ticket %s: %w", t.ID, err)
		}
		if t.Seq == 0 {
			parsed, err := parse.ParseNumber(t.Number)
			if err != nil {
				return fmt.Errorf("ticket %s: %w", t.ID, err)
			}
			t.Seq = parsed.Seq
		}
		if other, dup := r.bySeq[t.Seq]; dup {
			return fmt.Errorf("tickets %s and %s share sequence %d", other.ID, t.ID, t.Seq)
		}
		r.add(&t)
		if t.Seq > r.seq {
			r.seq = t.Seq
		}
	}
	return nil
}

func (r *TicketRegistry) add(t *Ticket) {
	r.byID[t.ID] = t
	r.bySeq[t.Seq] = t
	r.order = append(r.order, t)
}

// Create issues a new waiting ticket in category c.
func (r *TicketRegistry) Create(c Category, isPriority bool) Ticket {
	return *r.create(c, isPriority)
}

func (r *TicketRegistry) create(c Category, isPriority bool) *Ticket {
	r.seq++
	t := &Ticket{
		ID:         r.ids.NewID(),
		Seq:        r.seq,
		CategoryID: c.ID,
		Class:      c.PriorityClass,
		IsPriority: isPriority,
		Status:     StatusWaiting,
		CreatedAt:  r.clock.Now(),
		Version:    1,
	}
	t.Number = parse.FormatNumber(t.Prefix(), t.Seq, r.width)
	r.add(t)
	return t
}

// Get returns the ticket with the given id.
func (r *TicketRegistry) Get(id string) (Ticket, error) {
	t, err := r.lookup(id)
	if err != nil {
		return Ticket{}, err
	}
	return *t, nil
}

func (r *TicketRegistry) lookup(id string) (*Ticket, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", id, ErrNotFound)
	}
	return t, nil
}

// ByNumber finds a ticket from a number as typed by a customer.
func (r *TicketRegistry) ByNumber(number string) (Ticket, error) {
	parsed, err := parse.ParseNumber(number)
	if err != nil {
		return Ticket{}, fmt.Errorf("ticket %q: %w", number, ErrNotFound)
	}
	t, ok := r.bySeq[parsed.Seq]
	if !ok || !strings.HasPrefix(t.Number, parsed.Prefix) {
		return Ticket{}, fmt.Errorf("ticket %q: %w", number, ErrNotFound)
	}
	return *t, nil
}

// Transition moves a ticket to status to. Only forward edges of the
// lifecycle are accepted. Entering StatusCalled requires an assignment;
// leaving an attendant's custody clears the attendant id. Requeue is the
// only path that moves a ticket outside this table.
func (r *TicketRegistry) Transition(id string, to Status, a Assignment) (Ticket, error) {
	t, err := r.lookup(id)
	if err != nil {
		return Ticket{}, err
	}
	if !CanTransition(t.Status, to) {
		return Ticket{}, fmt.Errorf("%w: ticket %s %s -> %s", ErrInvalidTransition, t.Number, t.Status, to)
	}
	if to == StatusCalled && a.AttendantID == "" {
		return Ticket{}, fmt.Errorf("%w: ticket %s called without an attendant", ErrInvalidTransition, t.Number)
	}

	now := r.clock.Now()
	switch to {
	case StatusCalled:
		t.CalledAt = &now
		t.AttendantID = a.AttendantID
		t.DeskLabel = a.DeskLabel
	case StatusBeingServed:
		t.ServedAt = &now
	case StatusCompleted:
		t.CompletedAt = &now
		t.AttendantID = ""
	case StatusCancelled:
		t.AttendantID = ""
	}
	t.Status = to
	t.Version++
	return *t, nil
}

// Requeue returns a called or in-service ticket to the waiting state. The
// ticket keeps its createdAt and seq, so it regains its original place in
// the queue. This is the only backward edge and is reserved for attendant
// logout handling and for repairing restored state.
func (r *TicketRegistry) Requeue(id string) (Ticket, error) {
	t, err := r.lookup(id)
	if err != nil {
		return Ticket{}, err
	}
	if !t.Status.held() {
		return Ticket{}, fmt.Errorf("%w: ticket %s %s -> %s", ErrInvalidTransition, t.Number, t.Status, StatusWaiting)
	}
	t.Status = StatusWaiting
	t.CalledAt = nil
	t.ServedAt = nil
	t.AttendantID = ""
	t.DeskLabel = ""
	t.Version++
	return *t, nil
}

// List returns every ticket in issue order.
func (r *TicketRegistry) List() []Ticket {
	out := make([]Ticket, len(r.order))
	for i, t := range r.order {
		out[i] = *t
	}
	return out
}

// LastSeq is the most recently issued counter value.
func (r *TicketRegistry) LastSeq() uint64 {
	return r.seq
}
