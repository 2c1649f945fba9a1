package queue

import (
	"fmt"
	"sort"
)

// reconcile repairs ticket/attendant pairs that disagree in restored state.
// Every event is persisted atomically, but a crash can still land a later
// event for an attendant without an earlier one for its previous ticket.
//
// The ticket's record wins: a held ticket gets its recorded attendant back
// when that attendant is free and online, otherwise it returns to the queue
// at its original place. Attendants pointing at a ticket that is not held by
// them are released. Every repaired entity gets a new version so the next
// checkpoint overwrites the stored rows. Callers hold the write lock or own
// the scheduler exclusively.
func (s *Scheduler) reconcile() []string {
	var notes []string

	for _, a := range s.attendants.order {
		if a.CurrentTicketID != "" {
			t, ok := s.tickets.byID[a.CurrentTicketID]
			if ok && t.Status.held() && t.AttendantID == a.ID {
				if a.Status != AttendantBusy {
					notes = append(notes, fmt.Sprintf("attendant %s holds ticket %s but was %s; marked busy", a.ID, t.Number, a.Status))
					a.Status = AttendantBusy
					a.Version++
				}
				continue
			}
			notes = append(notes, fmt.Sprintf("attendant %s pointed at ticket %s, which it does not hold; released", a.ID, a.CurrentTicketID))
			a.CurrentTicketID = ""
			if a.Status == AttendantBusy {
				a.Status = AttendantAvailable
			}
			a.Version++
		} else if a.Status == AttendantBusy {
			notes = append(notes, fmt.Sprintf("attendant %s was busy without a ticket; released", a.ID))
			a.Status = AttendantAvailable
			a.Version++
		}
	}

	var held []*Ticket
	for _, t := range s.tickets.order {
		switch {
		case t.Status.held():
			held = append(held, t)
		case t.AttendantID != "":
			notes = append(notes, fmt.Sprintf("ticket %s is %s but kept attendant %s; cleared", t.Number, t.Status, t.AttendantID))
			t.AttendantID = ""
			t.Version++
		}
	}
	// The most recent call keeps the attendant when several tickets claim it.
	sort.SliceStable(held, func(i, j int) bool {
		ci, cj := held[i].CalledAt, held[j].CalledAt
		if ci == nil || cj == nil {
			return cj == nil && ci != nil
		}
		if !ci.Equal(*cj) {
			return ci.After(*cj)
		}
		return held[i].Seq > held[j].Seq
	})

	for _, t := range held {
		a, ok := s.attendants.byID[t.AttendantID]
		if ok && a.CurrentTicketID == t.ID {
			continue
		}
		if ok && a.CurrentTicketID == "" && a.Status != AttendantOffline {
			notes = append(notes, fmt.Sprintf("ticket %s is %s by %s; attendant rebound", t.Number, t.Status, a.ID))
			a.Status = AttendantBusy
			a.CurrentTicketID = t.ID
			a.Version++
			continue
		}
		holder := t.AttendantID
		// Requeue only fails for tickets that are not held.
		if _, err := s.tickets.Requeue(t.ID); err == nil {
			s.waiting.insert(t)
			notes = append(notes, fmt.Sprintf("ticket %s lost its attendant %q; returned to the queue", t.Number, holder))
		}
	}
	return notes
}
