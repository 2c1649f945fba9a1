package queue

import "errors"

// Expected, recoverable conditions. Callers match them with errors.Is; the
// returned errors usually wrap one of these with the offending id.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAttendantBusy     = errors.New("attendant is busy")
	ErrAttendantOffline  = errors.New("attendant is offline")
	ErrNotOwner          = errors.New("attendant does not own the ticket")
	ErrEmptyQueue        = errors.New("queue is empty")
)
