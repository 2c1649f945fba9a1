// Package queue implements the ticket queue scheduler: numbering,
// priority-aware ordering, atomic dispatch to attendants and position
// queries over the live queue.
package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusWaiting     Status = "waiting"
	StatusCalled      Status = "called"
	StatusBeingServed Status = "being_served"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// held reports whether a ticket in status s is in an attendant's custody.
func (s Status) held() bool {
	return s == StatusCalled || s == StatusBeingServed
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusWaiting, StatusCalled, StatusBeingServed, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown ticket status %q", s)
}

// AttendantStatus is the availability of an attendant.
type AttendantStatus string

const (
	AttendantAvailable AttendantStatus = "available"
	AttendantBusy      AttendantStatus = "busy"
	AttendantOffline   AttendantStatus = "offline"
)

// ParseAttendantStatus validates an attendant status string.
func ParseAttendantStatus(s string) (AttendantStatus, error) {
	switch st := AttendantStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case AttendantAvailable, AttendantBusy, AttendantOffline:
		return st, nil
	}
	return "", fmt.Errorf("unknown attendant status %q", s)
}

// PriorityClass is the service class of a category.
type PriorityClass string

const (
	ClassGeneral      PriorityClass = "general"
	ClassPreferential PriorityClass = "preferential"
	ClassPriority     PriorityClass = "priority"
)

// ParsePriorityClass validates a class name. The legacy names "geral",
// "preferencial" and "prioritario" are accepted for imported data.
func ParsePriorityClass(s string) (PriorityClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "general", "geral":
		return ClassGeneral, nil
	case "preferential", "preferencial":
		return ClassPreferential, nil
	case "priority", "prioritario":
		return ClassPriority, nil
	}
	return "", fmt.Errorf("unknown priority class %q", s)
}

// Category is a service category a customer picks at the kiosk. A retired
// category no longer issues tickets but still describes the ones it issued.
type Category struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	PriorityClass PriorityClass `json:"priority_class"`
	Retired       bool          `json:"retired,omitempty"`
}

// Ticket is a customer's claim to be served.
type Ticket struct {
	ID          string        `json:"id"`
	Number      string        `json:"number"`
	Seq         uint64        `json:"seq"`
	CategoryID  string        `json:"category_id"`
	Class       PriorityClass `json:"class"`
	IsPriority  bool          `json:"is_priority"`
	Status      Status        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	CalledAt    *time.Time    `json:"called_at,omitempty"`
	ServedAt    *time.Time    `json:"served_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	AttendantID string        `json:"attendant_id,omitempty"`
	DeskLabel   string        `json:"desk_label,omitempty"`
	Version     int64         `json:"version"`
}

// Prefix is the letter that starts the ticket number: R for priority
// categories, P for preferential categories or tickets flagged at the kiosk,
// G otherwise. It labels the ticket only; dispatch order comes from
// Compare.
func (t *Ticket) Prefix() string {
	switch {
	case t.Class == ClassPriority:
		return "R"
	case t.IsPriority || t.Class == ClassPreferential:
		return "P"
	}
	return "G"
}

// Attendant is a desk operator that calls and serves tickets.
type Attendant struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	DeskLabel       string          `json:"desk_label"`
	Status          AttendantStatus `json:"status"`
	CurrentTicketID string          `json:"current_ticket_id,omitempty"`
	Version         int64           `json:"version"`
}
