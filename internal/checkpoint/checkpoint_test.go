package checkpoint

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-queue-backend/config"
	"ticket-queue-backend/internal/queue"
)

type staticSource struct{ snap queue.Snapshot }

func (s staticSource) Snapshot() queue.Snapshot { return s.snap }

type recordingSaver struct {
	mu    sync.Mutex
	saves int
	last  []queue.Ticket
	err   error
}

func (r *recordingSaver) SaveSnapshot(_ context.Context, tickets []queue.Ticket, _ []queue.Attendant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.last = tickets
	return r.err
}

func (r *recordingSaver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

var snap = queue.Snapshot{Tickets: []queue.Ticket{{ID: "t1", Number: "G001", Seq: 1, Version: 2}}}

func TestSaveOnce(t *testing.T) {
	saver := &recordingSaver{}
	s := NewService(config.CheckpointConfig{}, staticSource{snap}, saver)

	require.NoError(t, s.SaveOnce(context.Background()))
	assert.Equal(t, snap.Tickets, saver.last)

	saver.err = errors.New("database is locked")
	err := s.SaveOnce(context.Background())
	assert.ErrorContains(t, err, "1 tickets")
}

func TestRun(t *testing.T) {
	saver := &recordingSaver{}
	s := NewService(config.CheckpointConfig{Enabled: true, Interval: 5 * time.Millisecond}, staticSource{snap}, saver)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return saver.count() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_Disabled(t *testing.T) {
	saver := &recordingSaver{}
	s := NewService(config.CheckpointConfig{Enabled: false}, staticSource{snap}, saver)
	s.Run(context.Background()) // returns immediately
	assert.Zero(t, saver.count())
}
