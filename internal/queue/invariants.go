package queue

import "fmt"

// checkInvariants validates the cross-registry invariants. Callers hold at
// least the read lock.
func (s *Scheduler) checkInvariants() error {
	numbers := make(map[string]string, len(s.tickets.order))
	waiting := 0
	for _, t := range s.tickets.order {
		if other, dup := numbers[t.Number]; dup {
			return fmt.Errorf("tickets %s and %s share number %s", other, t.ID, t.Number)
		}
		numbers[t.Number] = t.ID
		if !s.categories.Has(t.CategoryID) {
			return fmt.Errorf("ticket %s has unknown category %s", t.ID, t.CategoryID)
		}

		if t.Status.held() {
			if t.AttendantID == "" {
				return fmt.Errorf("ticket %s is %s without an attendant", t.ID, t.Status)
			}
			a, ok := s.attendants.byID[t.AttendantID]
			if !ok {
				return fmt.Errorf("ticket %s is held by unknown attendant %s", t.ID, t.AttendantID)
			}
			if a.Status != AttendantBusy || a.CurrentTicketID != t.ID {
				return fmt.Errorf("ticket %s is held by %s, which holds %q", t.ID, a.ID, a.CurrentTicketID)
			}
		} else if t.AttendantID != "" {
			return fmt.Errorf("ticket %s is %s but has attendant %s", t.ID, t.Status, t.AttendantID)
		}

		if t.Status == StatusWaiting {
			waiting++
			if s.waiting.index(t) < 0 {
				return fmt.Errorf("waiting ticket %s is not queued", t.ID)
			}
		}
	}
	if waiting != s.waiting.len() {
		return fmt.Errorf("queue holds %d tickets, %d are waiting", s.waiting.len(), waiting)
	}
	for i := 1; i < len(s.waiting.items); i++ {
		if Compare(s.waiting.items[i-1], s.waiting.items[i]) >= 0 {
			return fmt.Errorf("queue out of order at position %d", i+1)
		}
	}

	holders := make(map[string]string)
	for _, a := range s.attendants.order {
		if (a.Status == AttendantBusy) != (a.CurrentTicketID != "") {
			return fmt.Errorf("attendant %s is %s with current ticket %q", a.ID, a.Status, a.CurrentTicketID)
		}
		if a.CurrentTicketID == "" {
			continue
		}
		if other, dup := holders[a.CurrentTicketID]; dup {
			return fmt.Errorf("ticket %s held by attendants %s and %s", a.CurrentTicketID, other, a.ID)
		}
		holders[a.CurrentTicketID] = a.ID
		t, ok := s.tickets.byID[a.CurrentTicketID]
		if !ok || t.AttendantID != a.ID {
			return fmt.Errorf("attendant %s holds ticket %s that is not assigned to it", a.ID, a.CurrentTicketID)
		}
	}
	return nil
}
