package queue

import "slices"

// Compare orders waiting tickets: tickets flagged as priority first, then
// earlier createdAt, then lower seq. The category class does not take part.
// Seq is unique, so the order is total.
func Compare(a, b *Ticket) int {
	if a.IsPriority != b.IsPriority {
		if a.IsPriority {
			return -1
		}
		return 1
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}

// waitingQueue keeps the waiting tickets sorted by Compare.
type waitingQueue struct {
	items []*Ticket
}

func (q *waitingQueue) len() int { return len(q.items) }

func (q *waitingQueue) head() *Ticket {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *waitingQueue) popHead() *Ticket {
	t := q.head()
	if t != nil {
		q.items = slices.Delete(q.items, 0, 1)
	}
	return t
}

func (q *waitingQueue) insert(t *Ticket) {
	i, found := slices.BinarySearchFunc(q.items, t, Compare)
	if found {
		return
	}
	q.items = slices.Insert(q.items, i, t)
}

// index returns the 0-based rank of t, or -1 if t is not queued.
func (q *waitingQueue) index(t *Ticket) int {
	i, found := slices.BinarySearchFunc(q.items, t, Compare)
	if !found || q.items[i] != t {
		return -1
	}
	return i
}

func (q *waitingQueue) remove(t *Ticket) bool {
	i := q.index(t)
	if i < 0 {
		return false
	}
	q.items = slices.Delete(q.items, i, i+1)
	return true
}

func (q *waitingQueue) snapshot() []Ticket {
	out := make([]Ticket, len(q.items))
	for i, t := range q.items {
		out[i] = *t
	}
	return out
}
