package store

import (
	"ticket-queue-backend/internal/model"
	"ticket-queue-backend/internal/queue"
)

func ticketRow(t queue.Ticket) model.Ticket {
	return model.Ticket{
		ID:          t.ID,
		Number:      t.Number,
		Seq:         t.Seq,
		CategoryID:  t.CategoryID,
		Class:       string(t.Class),
		IsPriority:  t.IsPriority,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		CalledAt:    t.CalledAt,
		ServedAt:    t.ServedAt,
		CompletedAt: t.CompletedAt,
		AttendantID: t.AttendantID,
		DeskLabel:   t.DeskLabel,
		Version:     t.Version,
	}
}

func ticketFromRow(r model.Ticket) queue.Ticket {
	return queue.Ticket{
		ID:          r.ID,
		Number:      r.Number,
		Seq:         r.Seq,
		CategoryID:  r.CategoryID,
		Class:       queue.PriorityClass(r.Class),
		IsPriority:  r.IsPriority,
		Status:      queue.Status(r.Status),
		CreatedAt:   r.CreatedAt,
		CalledAt:    r.CalledAt,
		ServedAt:    r.ServedAt,
		CompletedAt: r.CompletedAt,
		AttendantID: r.AttendantID,
		DeskLabel:   r.DeskLabel,
		Version:     r.Version,
	}
}

func attendantRow(a queue.Attendant) model.Attendant {
	return model.Attendant{
		ID:              a.ID,
		Name:            a.Name,
		DeskLabel:       a.DeskLabel,
		Status:          string(a.Status),
		CurrentTicketID: a.CurrentTicketID,
		Version:         a.Version,
	}
}

func attendantFromRow(r model.Attendant) queue.Attendant {
	return queue.Attendant{
		ID:              r.ID,
		Name:            r.Name,
		DeskLabel:       r.DeskLabel,
		Status:          queue.AttendantStatus(r.Status),
		CurrentTicketID: r.CurrentTicketID,
		Version:         r.Version,
	}
}

func categoryFromRow(r model.Category) queue.Category {
	return queue.Category{ID: r.ID, Name: r.Name, PriorityClass: queue.PriorityClass(r.PriorityClass), Retired: r.Retired}
}
