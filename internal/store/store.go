package store

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ticket-queue-backend/internal/model"
	"ticket-queue-backend/internal/queue"
)

const batchSize = 200

// Store defines the interface for all database operations.
type Store interface {
	queue.Loader

	SeedCategories(ctx context.Context, categories []queue.Category) error
	SaveTicket(ctx context.Context, t queue.Ticket) error
	SaveAttendant(ctx context.Context, a queue.Attendant) error
	SaveSnapshot(ctx context.Context, tickets []queue.Ticket, attendants []queue.Attendant) error

	PutSubscription(ctx context.Context, sub model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForTicket(ctx context.Context, ticketID string) ([]model.PushSubscription, error)
	DeleteSubscriptionsForTicket(ctx context.Context, ticketID string) error

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// LoadAll reads the persisted queue state for a scheduler restart.
func (s *gormStore) LoadAll(ctx context.Context) (queue.Snapshot, error) {
	var snap queue.Snapshot
	db := s.db.WithContext(ctx)

	var categories []model.Category
	if err := db.Order("retired, position").Find(&categories).Error; err != nil {
		return snap, fmt.Errorf("failed to load categories: %w", err)
	}
	var tickets []model.Ticket
	if err := db.Order("seq").Find(&tickets).Error; err != nil {
		return snap, fmt.Errorf("failed to load tickets: %w", err)
	}
	var attendants []model.Attendant
	if err := db.Order("created_at").Order("id").Find(&attendants).Error; err != nil {
		return snap, fmt.Errorf("failed to load attendants: %w", err)
	}

	snap.Categories = make([]queue.Category, len(categories))
	for i, c := range categories {
		snap.Categories[i] = categoryFromRow(c)
	}
	snap.Tickets = make([]queue.Ticket, len(tickets))
	for i, t := range tickets {
		snap.Tickets[i] = ticketFromRow(t)
	}
	snap.Attendants = make([]queue.Attendant, len(attendants))
	for i, a := range attendants {
		snap.Attendants[i] = attendantFromRow(a)
	}
	return snap, nil
}

// SeedCategories makes the given list the active categories. Rows missing
// from it are marked retired rather than deleted, so tickets issued in them
// still resolve after a restart.
func (s *gormStore) SeedCategories(ctx context.Context, categories []queue.Category) error {
	rows := make([]model.Category, len(categories))
	ids := make([]string, len(categories))
	for i, c := range categories {
		rows[i] = model.Category{ID: c.ID, Name: c.Name, PriorityClass: string(c.PriorityClass), Position: i}
		ids[i] = c.ID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&model.Category{}).Where("retired = ?", false)
		if len(ids) > 0 {
			stale = stale.Where("id NOT IN ?", ids)
		}
		res := stale.Update("retired", true)
		if res.Error != nil {
			return fmt.Errorf("failed to retire stale categories: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			log.Printf("Retired %d categories no longer configured", res.RowsAffected)
		}
		if len(rows) == 0 {
			return nil
		}
		log.Printf("Seeding %d categories...", len(rows))
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "priority_class", "position", "retired", "updated_at"}),
		}).Create(&rows).Error
	})
}

// newerVersion limits an upsert to rows whose stored version is older than
// the incoming one, so late or duplicated events cannot roll state back.
func newerVersion(table string) clause.Where {
	return clause.Where{Exprs: []clause.Expression{
		clause.Expr{SQL: fmt.Sprintf("%s.version < excluded.version", table)},
	}}
}

var ticketColumns = []string{
	"status", "called_at", "served_at", "completed_at",
	"attendant_id", "desk_label", "version", "updated_at",
}

var attendantColumns = []string{
	"name", "desk_label", "status", "current_ticket_id", "version", "updated_at",
}

func upsertTickets(tx *gorm.DB, rows []model.Ticket) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(ticketColumns),
		Where:     newerVersion("tickets"),
	}).CreateInBatches(&rows, batchSize).Error
}

func upsertAttendants(tx *gorm.DB, rows []model.Attendant) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(attendantColumns),
		Where:     newerVersion("attendants"),
	}).CreateInBatches(&rows, batchSize).Error
}

// SaveTicket writes the ticket state unless a newer version is stored.
func (s *gormStore) SaveTicket(ctx context.Context, t queue.Ticket) error {
	if err := upsertTickets(s.db.WithContext(ctx), []model.Ticket{ticketRow(t)}); err != nil {
		return fmt.Errorf("failed to save ticket %s: %w", t.Number, err)
	}
	return nil
}

// SaveAttendant writes the attendant state unless a newer version is stored.
func (s *gormStore) SaveAttendant(ctx context.Context, a queue.Attendant) error {
	if err := upsertAttendants(s.db.WithContext(ctx), []model.Attendant{attendantRow(a)}); err != nil {
		return fmt.Errorf("failed to save attendant %s: %w", a.ID, err)
	}
	return nil
}

// SaveSnapshot writes the full scheduler state in one transaction.
func (s *gormStore) SaveSnapshot(ctx context.Context, tickets []queue.Ticket, attendants []queue.Attendant) error {
	if len(tickets) == 0 && len(attendants) == 0 {
		return nil
	}
	ticketRows := make([]model.Ticket, len(tickets))
	for i, t := range tickets {
		ticketRows[i] = ticketRow(t)
	}
	attendantRows := make([]model.Attendant, len(attendants))
	for i, a := range attendants {
		attendantRows[i] = attendantRow(a)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(ticketRows) > 0 {
			if err := upsertTickets(tx, ticketRows); err != nil {
				return fmt.Errorf("failed to save tickets: %w", err)
			}
		}
		if len(attendantRows) > 0 {
			if err := upsertAttendants(tx, attendantRows); err != nil {
				return fmt.Errorf("failed to save attendants: %w", err)
			}
		}
		return nil
	})
}
