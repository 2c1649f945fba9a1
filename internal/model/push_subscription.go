package model

import "time"

// PushSubscription holds the information for a browser push subscription
// waiting on a ticket to be called.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	TicketID  string    `gorm:"size:64;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}
