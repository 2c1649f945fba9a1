// Package checkpoint periodically writes the complete scheduler state to
// the database. Event-driven writes keep rows current; the checkpoint
// repairs whatever a dropped or failed event left behind.
package checkpoint

import (
	"context"
	"fmt"
	"log"
	"time"

	"ticket-queue-backend/config"
	"ticket-queue-backend/internal/queue"
)

// Source is the live state to persist.
type Source interface {
	Snapshot() queue.Snapshot
}

// Saver persists a state snapshot. Rows with a newer stored version are
// left untouched.
type Saver interface {
	SaveSnapshot(ctx context.Context, tickets []queue.Ticket, attendants []queue.Attendant) error
}

// Service runs the checkpoint loop.
type Service struct {
	cfg   config.CheckpointConfig
	src   Source
	saver Saver
}

// NewService creates a checkpoint service.
func NewService(cfg config.CheckpointConfig, src Source, saver Saver) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Service{cfg: cfg, src: src, saver: saver}
}

// Run saves the state every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Checkpoint is disabled. Not starting.")
		return
	}
	log.Printf("Starting checkpoint service (every %s)...", s.cfg.Interval)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Checkpoint service shutting down.")
			return
		case <-timer.C:
			if err := s.SaveOnce(ctx); err != nil {
				log.Printf("Error writing checkpoint: %v", err)
			}
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SaveOnce writes the current state.
func (s *Service) SaveOnce(ctx context.Context) error {
	snap := s.src.Snapshot()
	if err := s.saver.SaveSnapshot(ctx, snap.Tickets, snap.Attendants); err != nil {
		return fmt.Errorf("checkpoint of %d tickets, %d attendants: %w", len(snap.Tickets), len(snap.Attendants), err)
	}
	return nil
}
