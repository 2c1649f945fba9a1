package model

import "time"

// Attendant is the persisted state of a desk operator.
type Attendant struct {
	ID              string `gorm:"primaryKey;size:64"`
	Name            string `gorm:"size:128;not null"`
	DeskLabel       string `gorm:"size:32;not null"`
	Status          string `gorm:"size:16;not null"`
	CurrentTicketID string `gorm:"size:64"`
	Version         int64  `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
