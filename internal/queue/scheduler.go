package queue

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"ticket-queue-backend/internal/clock"
)

// LogoutPolicy decides what happens to the ticket held by an attendant who
// logs out.
type LogoutPolicy string

const (
	// LogoutRefuse rejects the logout with ErrAttendantBusy until the
	// attendant completes or cancels the ticket.
	LogoutRefuse LogoutPolicy = "refuse"
	// LogoutRequeue puts the ticket back in the queue at its original place.
	LogoutRequeue LogoutPolicy = "requeue"
)

// ParseLogoutPolicy validates a policy name; empty selects LogoutRefuse.
func ParseLogoutPolicy(s string) (LogoutPolicy, error) {
	switch p := LogoutPolicy(s); p {
	case "":
		return LogoutRefuse, nil
	case LogoutRefuse, LogoutRequeue:
		return p, nil
	}
	return "", fmt.Errorf("unknown logout policy %q", s)
}

// Config holds the scheduler's collaborators and tunables. Zero values get
// defaults: real clock, UUID ids, no-op sink, refuse policy.
type Config struct {
	Clock        clock.Clock
	IDs          clock.IDSource
	Sink         Sink
	NumberWidth  int
	Estimator    Estimator
	LogoutPolicy LogoutPolicy

	// CheckInvariants re-validates the whole state after every mutation and
	// panics on a violation. Meant for tests and debugging.
	CheckInvariants bool
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.IDs == nil {
		c.IDs = clock.UUIDs()
	}
	if c.Sink == nil {
		c.Sink = nopSink{}
	}
	if c.LogoutPolicy == "" {
		c.LogoutPolicy = LogoutRefuse
	}
	return c
}

// Scheduler is the authoritative live queue. All mutations run under one
// write lock, so selecting the head, marking it called and binding the
// attendant happen as a single step; readers share a read lock and never see
// a half-applied dispatch. Events are published after the lock is released.
type Scheduler struct {
	mu sync.RWMutex

	categories *CategoryRegistry
	tickets    *TicketRegistry
	attendants *AttendantRegistry
	waiting    waitingQueue

	cfg Config
}

// New builds a scheduler over the given registries. Tickets already waiting
// in the registry are queued.
func New(categories *CategoryRegistry, tickets *TicketRegistry, attendants *AttendantRegistry, cfg Config) *Scheduler {
	s := &Scheduler{
		categories: categories,
		tickets:    tickets,
		attendants: attendants,
		cfg:        cfg.withDefaults(),
	}
	for _, t := range tickets.order {
		if t.Status == StatusWaiting {
			s.waiting.insert(t)
		}
	}
	return s
}

// Restore loads the persisted state through loader and returns a scheduler
// resuming from it. Ticket/attendant pairs left disagreeing by a crash are
// reconciled (see reconcile) and the repairs logged; whatever remains
// inconsistent, such as duplicate numbers, is rejected.
func Restore(ctx context.Context, loader Loader, cfg Config) (*Scheduler, error) {
	cfg = cfg.withDefaults()

	snap, err := loader.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue state: %w", err)
	}

	categories, err := NewCategoryRegistry(snap.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	tickets := NewTicketRegistry(cfg.Clock, cfg.IDs, cfg.NumberWidth)
	if err := tickets.Restore(snap.Tickets); err != nil {
		return nil, fmt.Errorf("failed to load tickets: %w", err)
	}
	for _, t := range tickets.order {
		if !categories.Has(t.CategoryID) {
			log.Printf("Restore: ticket %s refers to unknown category %q; keeping it as retired", t.Number, t.CategoryID)
			categories.retire(t.CategoryID, t.Class)
		}
	}
	attendants := NewAttendantRegistry(cfg.IDs)
	if err := attendants.Restore(snap.Attendants); err != nil {
		return nil, fmt.Errorf("failed to load attendants: %w", err)
	}

	s := New(categories, tickets, attendants, cfg)
	for _, note := range s.reconcile() {
		log.Printf("Restore: %s", note)
	}
	if err := s.checkInvariants(); err != nil {
		return nil, fmt.Errorf("inconsistent queue state: %w", err)
	}
	return s, nil
}

// update runs fn under the write lock and publishes the events it returns
// once the lock is released. fn must validate everything before its first
// mutation so that an error leaves the state untouched.
func (s *Scheduler) update(ctx context.Context, fn func() ([]Event, error)) error {
	s.mu.Lock()
	events, err := fn()
	if err == nil && s.cfg.CheckInvariants {
		if verr := s.checkInvariants(); verr != nil {
			s.mu.Unlock()
			panic(fmt.Sprintf("queue invariant violated: %v", verr))
		}
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, evt := range events {
		s.cfg.Sink.Publish(ctx, evt)
	}
	return nil
}

func (s *Scheduler) ticketEvent(kind EventKind, t Ticket) Event {
	return Event{Kind: kind, OccurredAt: s.cfg.Clock.Now(), Ticket: &t}
}

func (s *Scheduler) attendantEvent(kind EventKind, a Attendant) Event {
	return Event{Kind: kind, OccurredAt: s.cfg.Clock.Now(), Attendant: &a}
}

// pairEvent reports a mutation that changed a ticket and its attendant
// together. Both states travel in one event so they are persisted together.
func (s *Scheduler) pairEvent(kind EventKind, t Ticket, a Attendant) Event {
	return Event{Kind: kind, OccurredAt: s.cfg.Clock.Now(), Ticket: &t, Attendant: &a}
}

// Enqueue issues a ticket in the given category and queues it.
func (s *Scheduler) Enqueue(ctx context.Context, categoryID string, isPriority bool) (Ticket, error) {
	var issued Ticket
	err := s.update(ctx, func() ([]Event, error) {
		c, err := s.categories.Resolve(categoryID)
		if err != nil {
			return nil, err
		}
		t := s.tickets.create(c, isPriority)
		s.waiting.insert(t)
		issued = *t
		return []Event{s.ticketEvent(EventTicketCreated, issued)}, nil
	})
	return issued, err
}

// CallNext hands the head of the queue to the attendant. The attendant must
// be available; an offline attendant gets ErrAttendantOffline and one that
// already holds a ticket gets ErrAttendantBusy, even when the queue is empty.
func (s *Scheduler) CallNext(ctx context.Context, attendantID string) (Ticket, error) {
	var called Ticket
	err := s.update(ctx, func() ([]Event, error) {
		a, err := s.attendants.lookup(attendantID)
		if err != nil {
			return nil, err
		}
		switch a.Status {
		case AttendantOffline:
			return nil, fmt.Errorf("%w: %s", ErrAttendantOffline, a.ID)
		case AttendantBusy:
			return nil, fmt.Errorf("%w: %s holds ticket %s", ErrAttendantBusy, a.ID, a.CurrentTicketID)
		}

		head := s.waiting.head()
		if head == nil {
			return nil, ErrEmptyQueue
		}

		prev := *head
		t, err := s.tickets.Transition(head.ID, StatusCalled, Assignment{AttendantID: a.ID, DeskLabel: a.DeskLabel})
		if err != nil {
			return nil, err
		}
		bound, err := s.attendants.Bind(a.ID, t.ID)
		if err != nil {
			*head = prev
			return nil, err
		}
		s.waiting.popHead()
		called = t
		return []Event{s.pairEvent(EventTicketCalled, t, bound)}, nil
	})
	return called, err
}

// ownedTicket returns ticket id if it is held by attendantID and currently
// in one of the allowed statuses.
func (s *Scheduler) ownedTicket(ticketID, attendantID string, allowed ...Status) (*Ticket, error) {
	t, err := s.tickets.lookup(ticketID)
	if err != nil {
		return nil, err
	}
	ok := false
	for _, st := range allowed {
		if t.Status == st {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: ticket %s is %s", ErrInvalidTransition, t.Number, t.Status)
	}
	if t.AttendantID != attendantID {
		return nil, fmt.Errorf("%w: ticket %s, attendant %s", ErrNotOwner, t.Number, attendantID)
	}
	return t, nil
}

// StartService marks a called ticket as being served by its attendant.
func (s *Scheduler) StartService(ctx context.Context, ticketID, attendantID string) (Ticket, error) {
	var started Ticket
	err := s.update(ctx, func() ([]Event, error) {
		if _, err := s.ownedTicket(ticketID, attendantID, StatusCalled); err != nil {
			return nil, err
		}
		t, err := s.tickets.Transition(ticketID, StatusBeingServed, Assignment{})
		if err != nil {
			return nil, err
		}
		started = t
		return []Event{s.ticketEvent(EventTicketStarted, t)}, nil
	})
	return started, err
}

// CompleteService finishes a called or in-service ticket and frees its
// attendant. Completing twice fails with ErrInvalidTransition and leaves the
// attendant alone.
func (s *Scheduler) CompleteService(ctx context.Context, ticketID, attendantID string) (Ticket, error) {
	var completed Ticket
	err := s.update(ctx, func() ([]Event, error) {
		if _, err := s.ownedTicket(ticketID, attendantID, StatusCalled, StatusBeingServed); err != nil {
			return nil, err
		}
		if _, err := s.attendants.lookup(attendantID); err != nil {
			return nil, err
		}
		t, err := s.tickets.Transition(ticketID, StatusCompleted, Assignment{})
		if err != nil {
			return nil, err
		}
		released, err := s.attendants.Release(attendantID)
		if err != nil {
			return nil, err
		}
		completed = t
		return []Event{s.pairEvent(EventTicketCompleted, t, released)}, nil
	})
	return completed, err
}

// Cancel withdraws a waiting or called ticket. A called ticket's attendant is
// released.
func (s *Scheduler) Cancel(ctx context.Context, ticketID string) (Ticket, error) {
	var cancelled Ticket
	err := s.update(ctx, func() ([]Event, error) {
		t, err := s.tickets.lookup(ticketID)
		if err != nil {
			return nil, err
		}
		if !CanTransition(t.Status, StatusCancelled) {
			return nil, fmt.Errorf("%w: ticket %s is %s", ErrInvalidTransition, t.Number, t.Status)
		}

		holder := t.AttendantID
		if holder != "" {
			if _, err := s.attendants.lookup(holder); err != nil {
				return nil, err
			}
		}
		if t.Status == StatusWaiting {
			s.waiting.remove(t)
		}
		updated, err := s.tickets.Transition(ticketID, StatusCancelled, Assignment{})
		if err != nil {
			return nil, err
		}
		cancelled = updated
		if holder == "" {
			return []Event{s.ticketEvent(EventTicketCancelled, updated)}, nil
		}
		released, err := s.attendants.Release(holder)
		if err != nil {
			return nil, err
		}
		return []Event{s.pairEvent(EventTicketCancelled, updated, released)}, nil
	})
	return cancelled, err
}

// Activate logs an attendant in at a desk.
func (s *Scheduler) Activate(ctx context.Context, name, desk string) (Attendant, error) {
	var activated Attendant
	err := s.update(ctx, func() ([]Event, error) {
		activated = s.attendants.Activate(name, desk)
		return []Event{s.attendantEvent(EventAttendantActivated, activated)}, nil
	})
	return activated, err
}

// Deactivate logs an attendant out. What happens to a ticket the attendant
// still holds depends on the configured LogoutPolicy.
func (s *Scheduler) Deactivate(ctx context.Context, attendantID string) (Attendant, error) {
	var deactivated Attendant
	err := s.update(ctx, func() ([]Event, error) {
		a, err := s.attendants.lookup(attendantID)
		if err != nil {
			return nil, err
		}

		var events []Event
		if a.Status == AttendantBusy {
			if s.cfg.LogoutPolicy != LogoutRequeue {
				return nil, fmt.Errorf("%w: %s holds ticket %s", ErrAttendantBusy, a.ID, a.CurrentTicketID)
			}
			t, err := s.tickets.lookup(a.CurrentTicketID)
			if err != nil {
				return nil, err
			}
			requeued, err := s.tickets.Requeue(t.ID)
			if err != nil {
				return nil, err
			}
			s.waiting.insert(t)
			released, err := s.attendants.Release(a.ID)
			if err != nil {
				return nil, err
			}
			events = append(events, s.pairEvent(EventTicketRequeued, requeued, released))
		}

		deactivated, err = s.attendants.Deactivate(a.ID)
		if err != nil {
			return nil, err
		}
		return append(events, s.attendantEvent(EventAttendantDeactivated, deactivated)), nil
	})
	return deactivated, err
}

// SetAttendantStatus pauses (offline) or resumes (available) an attendant
// without logging out. Busy attendants are refused.
func (s *Scheduler) SetAttendantStatus(ctx context.Context, attendantID string, status AttendantStatus) (Attendant, error) {
	var updated Attendant
	err := s.update(ctx, func() ([]Event, error) {
		a, err := s.attendants.SetStatus(attendantID, status)
		if err != nil {
			return nil, err
		}
		updated = a
		return []Event{s.attendantEvent(EventAttendantStatusChanged, a)}, nil
	})
	return updated, err
}

// PositionOf returns the 1-based queue position of a ticket, or 0 when the
// ticket is not waiting.
func (s *Scheduler) PositionOf(ticketID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.tickets.lookup(ticketID)
	if err != nil {
		return 0, err
	}
	return s.positionLocked(t), nil
}

func (s *Scheduler) positionLocked(t *Ticket) int {
	if t.Status != StatusWaiting {
		return 0
	}
	return s.waiting.index(t) + 1
}

// EstimateWait returns the expected wait range in minutes for a position.
func (s *Scheduler) EstimateWait(position int) (minMinutes, maxMinutes int) {
	return s.cfg.Estimator.Estimate(position)
}

// Ticket returns a ticket together with its current position.
func (s *Scheduler) Ticket(id string) (Ticket, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.tickets.lookup(id)
	if err != nil {
		return Ticket{}, 0, err
	}
	return *t, s.positionLocked(t), nil
}

// TicketByNumber looks a ticket up by its printed number.
func (s *Scheduler) TicketByNumber(number string) (Ticket, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.tickets.ByNumber(number)
	if err != nil {
		return Ticket{}, 0, err
	}
	p, _ := s.tickets.lookup(t.ID)
	return t, s.positionLocked(p), nil
}

// Waiting returns the waiting tickets in dispatch order; the ticket at index
// i has position i+1.
func (s *Scheduler) Waiting() []Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.waiting.snapshot()
}

// Tickets returns every ticket in issue order, optionally filtered by status.
func (s *Scheduler) Tickets(statuses ...Status) []Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.tickets.List()
	if len(statuses) == 0 {
		return all
	}
	out := make([]Ticket, 0, len(all))
	for _, t := range all {
		for _, st := range statuses {
			if t.Status == st {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// RecentCalls returns up to n tickets currently at a desk, most recently
// called first. Tickets being served stay on the board until completed.
func (s *Scheduler) RecentCalls(n int) []Ticket {
	calls := s.Tickets(StatusCalled, StatusBeingServed)
	sort.SliceStable(calls, func(i, j int) bool {
		return calls[i].CalledAt.After(*calls[j].CalledAt)
	})
	if n > 0 && len(calls) > n {
		calls = calls[:n]
	}
	return calls
}

// Attendant returns the attendant with the given id.
func (s *Scheduler) Attendant(id string) (Attendant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attendants.Get(id)
}

// Attendants returns every known attendant.
func (s *Scheduler) Attendants() []Attendant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attendants.List()
}

// Categories returns the categories tickets can be issued in.
func (s *Scheduler) Categories() []Category {
	return s.categories.List()
}

// Snapshot copies the whole state under one read lock.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Tickets:    s.tickets.List(),
		Attendants: s.attendants.List(),
		Categories: s.categories.All(),
	}
}

// Stats summarises the live queue.
type Stats struct {
	Waiting             int `json:"waiting"`
	Called              int `json:"called"`
	BeingServed         int `json:"being_served"`
	Completed           int `json:"completed"`
	Cancelled           int `json:"cancelled"`
	AvailableAttendants int `json:"available_attendants"`
	BusyAttendants      int `json:"busy_attendants"`
}

// Stats counts tickets per status and attendants per availability.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, t := range s.tickets.order {
		switch t.Status {
		case StatusWaiting:
			st.Waiting++
		case StatusCalled:
			st.Called++
		case StatusBeingServed:
			st.BeingServed++
		case StatusCompleted:
			st.Completed++
		case StatusCancelled:
			st.Cancelled++
		}
	}
	for _, a := range s.attendants.order {
		switch a.Status {
		case AttendantAvailable:
			st.AvailableAttendants++
		case AttendantBusy:
			st.BusyAttendants++
		}
	}
	return st
}
