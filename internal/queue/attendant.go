package queue

import (
	"fmt"

	"ticket-queue-backend/internal/clock"
)

// AttendantRegistry tracks attendants, their availability and the ticket
// each one currently holds. It is not safe for concurrent use; the
// Scheduler serializes access and publishes the resulting events.
type AttendantRegistry struct {
	ids   clock.IDSource
	byID  map[string]*Attendant
	order []*Attendant
}

// NewAttendantRegistry creates an empty registry.
func NewAttendantRegistry(ids clock.IDSource) *AttendantRegistry {
	return &AttendantRegistry{
		ids:  ids,
		byID: make(map[string]*Attendant),
	}
}

// Restore loads previously known attendants.
func (r *AttendantRegistry) Restore(attendants []Attendant) error {
	for i := range attendants {
		a := attendants[i]
		if a.ID == "" {
			return fmt.Errorf("attendant %q has an empty id", a.Name)
		}
		if _, dup := r.byID[a.ID]; dup {
			return fmt.Errorf("duplicate attendant id %s", a.ID)
		}
		if _, err := ParseAttendantStatus(string(a.Status)); err != nil {
			return fmt.Errorf("attendant %s: %w", a.ID, err)
		}
		r.byID[a.ID] = &a
		r.order = append(r.order, &a)
	}
	return nil
}

// Activate registers an attendant logging in at a desk.
func (r *AttendantRegistry) Activate(name, desk string) Attendant {
	a := &Attendant{
		ID:        r.ids.NewID(),
		Name:      name,
		DeskLabel: desk,
		Status:    AttendantAvailable,
		Version:   1,
	}
	r.byID[a.ID] = a
	r.order = append(r.order, a)
	return *a
}

// Deactivate marks an attendant offline. An attendant holding a ticket
// cannot be deactivated.
func (r *AttendantRegistry) Deactivate(id string) (Attendant, error) {
	return r.SetStatus(id, AttendantOffline)
}

// SetStatus switches an idle attendant between available and offline.
func (r *AttendantRegistry) SetStatus(id string, status AttendantStatus) (Attendant, error) {
	a, err := r.lookup(id)
	if err != nil {
		return Attendant{}, err
	}
	if status != AttendantAvailable && status != AttendantOffline {
		return Attendant{}, fmt.Errorf("%w: attendant %s cannot be set %s directly", ErrInvalidTransition, id, status)
	}
	if a.Status == AttendantBusy {
		return Attendant{}, fmt.Errorf("%w: %s holds ticket %s", ErrAttendantBusy, id, a.CurrentTicketID)
	}
	if a.Status != status {
		a.Status = status
		a.Version++
	}
	return *a, nil
}

// Get returns the attendant with the given id.
func (r *AttendantRegistry) Get(id string) (Attendant, error) {
	a, err := r.lookup(id)
	if err != nil {
		return Attendant{}, err
	}
	return *a, nil
}

func (r *AttendantRegistry) lookup(id string) (*Attendant, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("attendant %s: %w", id, ErrNotFound)
	}
	return a, nil
}

// Bind makes ticketID the attendant's current ticket.
func (r *AttendantRegistry) Bind(attendantID, ticketID string) (Attendant, error) {
	a, err := r.lookup(attendantID)
	if err != nil {
		return Attendant{}, err
	}
	switch {
	case a.Status == AttendantOffline:
		return Attendant{}, fmt.Errorf("%w: %s", ErrAttendantOffline, attendantID)
	case a.Status == AttendantBusy && a.CurrentTicketID == ticketID:
		return *a, nil
	case a.Status == AttendantBusy:
		return Attendant{}, fmt.Errorf("%w: %s holds ticket %s", ErrAttendantBusy, attendantID, a.CurrentTicketID)
	}
	a.Status = AttendantBusy
	a.CurrentTicketID = ticketID
	a.Version++
	return *a, nil
}

// Release frees the attendant for the next call. Releasing an attendant
// that holds nothing is a no-op.
func (r *AttendantRegistry) Release(attendantID string) (Attendant, error) {
	a, err := r.lookup(attendantID)
	if err != nil {
		return Attendant{}, err
	}
	if a.Status != AttendantBusy {
		return *a, nil
	}
	a.Status = AttendantAvailable
	a.CurrentTicketID = ""
	a.Version++
	return *a, nil
}

// List returns the attendants in registration order.
func (r *AttendantRegistry) List() []Attendant {
	out := make([]Attendant, len(r.order))
	for i, a := range r.order {
		out[i] = *a
	}
	return out
}
