package queue

// Default per-ticket wait bounds, in minutes.
const (
	DefaultLowPerTicket  = 5
	DefaultHighPerTicket = 10
)

// Estimator derives a wait range from a queue position.
type Estimator struct {
	LowPerTicket  int
	HighPerTicket int
}

// Estimate returns the expected wait in minutes for a 1-based position.
// Positions below 1 (tickets no longer waiting) wait zero minutes.
func (e Estimator) Estimate(position int) (minMinutes, maxMinutes int) {
	if position < 1 {
		return 0, 0
	}
	low, high := e.LowPerTicket, e.HighPerTicket
	if low <= 0 {
		low = DefaultLowPerTicket
	}
	if high <= 0 {
		high = DefaultHighPerTicket
	}
	if high < low {
		high = low
	}
	return position * low, position * high
}
