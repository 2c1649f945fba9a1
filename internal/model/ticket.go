package model

import "time"

// Ticket is the persisted state of a queue ticket. Rows are only ever
// upserted with a higher Version.
type Ticket struct {
	ID          string    `gorm:"primaryKey;size:64"`
	Number      string    `gorm:"size:16;not null;index"`
	Seq         uint64    `gorm:"uniqueIndex;not null"`
	CategoryID  string    `gorm:"size:64;not null;index"`
	Class       string    `gorm:"size:16;not null"`
	IsPriority  bool      `gorm:"not null"`
	Status      string    `gorm:"size:16;not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
	CalledAt    *time.Time
	ServedAt    *time.Time
	CompletedAt *time.Time
	AttendantID string `gorm:"size:64;index"`
	DeskLabel   string `gorm:"size:32"`
	Version     int64  `gorm:"not null"`
	UpdatedAt   time.Time
}
