package model

import "time"

// Category represents a service category offered at the kiosk.
type Category struct {
	ID            string    `gorm:"primaryKey;size:64"`
	Name          string    `gorm:"size:128;not null"`
	PriorityClass string    `gorm:"size:16;not null"`
	Position      int       `gorm:"not null"` // Display order
	Retired       bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}
