package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ticket-queue-backend/internal/clock"
)

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

var testCategories = []Category{
	{ID: "general", Name: "General Service", PriorityClass: ClassGeneral},
	{ID: "cards", Name: "Cards", PriorityClass: ClassGeneral},
	{ID: "senior", Name: "Senior Desk", PriorityClass: ClassPreferential},
	{ID: "urgent", Name: "Urgent", PriorityClass: ClassPriority},
}

// recordingSink collects published events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(_ context.Context, evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recordingSink) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recordingSink) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type fixture struct {
	s     *Scheduler
	clock *clock.FakeClock
	sink  *recordingSink
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	fc := clock.Fake(testStart)
	sink := &recordingSink{}
	cfg := Config{
		Clock:           fc,
		IDs:             clock.NewSequence("id"),
		Sink:            sink,
		CheckInvariants: true,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	cats, err := NewCategoryRegistry(testCategories)
	require.NoError(t, err)
	tickets := NewTicketRegistry(cfg.Clock, cfg.IDs, cfg.NumberWidth)
	attendants := NewAttendantRegistry(cfg.IDs)
	return &fixture{s: New(cats, tickets, attendants, cfg), clock: fc, sink: sink}
}

func (f *fixture) enqueue(t *testing.T, category string, priority bool) Ticket {
	t.Helper()
	tk, err := f.s.Enqueue(context.Background(), category, priority)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return tk
}

func (f *fixture) attendant(t *testing.T, name, desk string) Attendant {
	t.Helper()
	a, err := f.s.Activate(context.Background(), name, desk)
	require.NoError(t, err)
	return a
}

func (f *fixture) position(t *testing.T, id string) int {
	t.Helper()
	p, err := f.s.PositionOf(id)
	require.NoError(t, err)
	return p
}

type fakeLoader struct {
	snap Snapshot
	err  error
}

func (l fakeLoader) LoadAll(context.Context) (Snapshot, error) {
	return l.snap, l.err
}
