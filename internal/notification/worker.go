package notification

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"ticket-queue-backend/internal/queue"
)

// Handler consumes scheduler events. A returned error is retried.
type Handler interface {
	Name() string
	Handle(ctx context.Context, evt queue.Event) error
}

// Options configures a WorkerPool.
type Options struct {
	Size      int
	QueueSize int
	// MaxAttempts is the number of immediate tries before a failing
	// delivery is parked for a delayed retry.
	MaxAttempts   int
	RetryBackoff  time.Duration
	MaxRetryDelay time.Duration
	// DrainTimeout bounds the delivery of pending events on shutdown.
	DrainTimeout time.Duration
}

// job is one event to deliver, to every handler or to a single handler
// retrying a failure.
type job struct {
	evt      queue.Event
	handler  Handler
	failures int
	due      time.Time
}

// WorkerPool fans scheduler events out to handlers on a fixed set of
// goroutines. It implements queue.Sink and delivers every event at least
// once to every handler while the process runs: a full buffer spills into
// an in-memory backlog and failed deliveries are retried until they succeed.
type WorkerPool struct {
	size          int
	jobs          chan job
	handlers      []Handler
	maxAttempts   int
	backoff       time.Duration
	maxRetryDelay time.Duration
	drainTimeout  time.Duration

	mu      sync.Mutex
	backlog []job
	retries []job
	wake    chan struct{}
	fed     chan struct{}

	lost atomic.Uint64
	wg   sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(opts Options, handlers ...Handler) *WorkerPool {
	if opts.Size <= 0 {
		opts.Size = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Size
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}
	if opts.MaxRetryDelay <= 0 {
		opts.MaxRetryDelay = 30 * time.Second
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 5 * time.Second
	}
	return &WorkerPool{
		size:          opts.Size,
		jobs:          make(chan job, opts.QueueSize), // Buffered channel
		handlers:      handlers,
		maxAttempts:   opts.MaxAttempts,
		backoff:       opts.RetryBackoff,
		maxRetryDelay: opts.MaxRetryDelay,
		drainTimeout:  opts.DrainTimeout,
		wake:          make(chan struct{}, 1),
		fed:           make(chan struct{}),
	}
}

// Start launches the worker goroutines and the feeder that moves backlogged
// and due retries into the buffer. When ctx is cancelled the workers drain
// whatever is still pending and return.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.wg.Add(1)
	go wp.feed(ctx)
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has returned.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Publish queues an event for the handlers. It never blocks and never
// discards: when the buffer is full the event joins the backlog, behind
// anything already there. ctx is not consulted, so an event outlives the
// request that caused it.
func (wp *WorkerPool) Publish(_ context.Context, evt queue.Event) {
	wp.mu.Lock()
	if len(wp.backlog) == 0 {
		select {
		case wp.jobs <- job{evt: evt}:
			wp.mu.Unlock()
			return
		default:
		}
	}
	wp.backlog = append(wp.backlog, job{evt: evt})
	n := len(wp.backlog)
	wp.mu.Unlock()

	if n == 1 || n%100 == 0 {
		log.Printf("Event buffer full; %d events backlogged", n)
	}
	wp.signal()
}

// Pending is the number of events or retries not yet delivered.
func (wp *WorkerPool) Pending() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return len(wp.jobs) + len(wp.backlog) + len(wp.retries)
}

// Lost is the number of deliveries abandoned because the shutdown drain
// ran out of time or failed.
func (wp *WorkerPool) Lost() uint64 {
	return wp.lost.Load()
}

func (wp *WorkerPool) signal() {
	select {
	case wp.wake <- struct{}{}:
	default:
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log.Printf("Worker %d started", id)
	for {
		select {
		case j := <-wp.jobs:
			wp.process(ctx, j)
		case <-ctx.Done():
			// The feeder must be done before the backlog is drained
			// from here.
			<-wp.fed
			wp.drain(id)
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

func (wp *WorkerPool) targets(j job) []Handler {
	if j.handler != nil {
		return []Handler{j.handler}
	}
	return wp.handlers
}

func (wp *WorkerPool) process(ctx context.Context, j job) {
	for _, h := range wp.targets(j) {
		failures := 0
		if j.handler != nil {
			failures = j.failures
		}
		wp.deliver(ctx, h, j.evt, failures)
	}
}

// deliver runs one handler with up to maxAttempts tries and linear backoff.
// A delivery that still fails is parked for a delayed retry.
func (wp *WorkerPool) deliver(ctx context.Context, h Handler, evt queue.Event, failures int) {
	for attempt := 1; ; attempt++ {
		err := h.Handle(ctx, evt)
		if err == nil {
			return
		}
		failures++
		if attempt >= wp.maxAttempts || ctx.Err() != nil {
			delay := wp.park(job{evt: evt, handler: h, failures: failures})
			log.Printf("Handler %s failed on %s %d time(s), retrying in %s: %v", h.Name(), evt.Kind, failures, delay, err)
			return
		}
		log.Printf("Handler %s failed on %s (attempt %d): %v", h.Name(), evt.Kind, attempt, err)
		select {
		case <-time.After(wp.backoff * time.Duration(attempt)):
		case <-ctx.Done():
		}
	}
}

// park schedules j for another try with exponential backoff.
func (wp *WorkerPool) park(j job) time.Duration {
	delay := wp.maxRetryDelay
	if shift := j.failures - 1; shift < 16 {
		if d := wp.backoff << shift; d < delay {
			delay = d
		}
	}
	j.due = time.Now().Add(delay)

	wp.mu.Lock()
	wp.retries = append(wp.retries, j)
	wp.mu.Unlock()
	wp.signal()
	return delay
}

// feed moves backlogged events, oldest first, and then due retries into
// the buffer.
func (wp *WorkerPool) feed(ctx context.Context) {
	defer wp.wg.Done()
	defer close(wp.fed)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for ctx.Err() == nil {
		if j, ok := wp.peekBacklog(); ok {
			select {
			case wp.jobs <- j:
				wp.popBacklog()
			case <-ctx.Done():
				return
			}
			continue
		}

		j, wait, ok := wp.dueRetry(time.Now())
		if ok {
			select {
			case wp.jobs <- j:
			case <-ctx.Done():
				wp.mu.Lock()
				wp.retries = append(wp.retries, j)
				wp.mu.Unlock()
				return
			}
			continue
		}

		timer.Reset(wait)
		select {
		case <-wp.wake:
		case <-timer.C:
		case <-ctx.Done():
		}
	}
}

// peekBacklog returns the oldest backlogged event without removing it, so
// Publish keeps appending behind it while the feeder waits for room.
func (wp *WorkerPool) peekBacklog() (job, bool) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if len(wp.backlog) == 0 {
		return job{}, false
	}
	return wp.backlog[0], true
}

func (wp *WorkerPool) popBacklog() {
	wp.mu.Lock()
	wp.backlog = wp.backlog[1:]
	wp.mu.Unlock()
}

// dueRetry removes and returns a retry that is due at now. Otherwise it
// reports how long to wait for the next one.
func (wp *WorkerPool) dueRetry(now time.Time) (job, time.Duration, bool) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	wait := time.Hour
	for i, j := range wp.retries {
		if !j.due.After(now) {
			wp.retries = append(wp.retries[:i], wp.retries[i+1:]...)
			return j, 0, true
		}
		if d := j.due.Sub(now); d < wait {
			wait = d
		}
	}
	return job{}, wait, false
}

// take removes any pending job, ignoring retry due times.
func (wp *WorkerPool) take() (job, bool) {
	select {
	case j := <-wp.jobs:
		return j, true
	default:
	}
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if len(wp.backlog) > 0 {
		j := wp.backlog[0]
		wp.backlog = wp.backlog[1:]
		return j, true
	}
	if n := len(wp.retries); n > 0 {
		j := wp.retries[n-1]
		wp.retries = wp.retries[:n-1]
		return j, true
	}
	return job{}, false
}

// drain gives every pending delivery one last try before the worker exits.
func (wp *WorkerPool) drain(id int) {
	ctx, cancel := context.WithTimeout(context.Background(), wp.drainTimeout)
	defer cancel()

	for {
		j, ok := wp.take()
		if !ok {
			return
		}
		for _, h := range wp.targets(j) {
			if ctx.Err() != nil {
				wp.abandon(h, j.evt, "drain timeout")
				continue
			}
			if err := h.Handle(ctx, j.evt); err != nil {
				wp.abandon(h, j.evt, err.Error())
			}
		}
	}
}

func (wp *WorkerPool) abandon(h Handler, evt queue.Event, reason string) {
	n := wp.lost.Add(1)
	log.Printf("Handler %s abandoned %s event on shutdown (%s); %d lost so far", h.Name(), evt.Kind, reason, n)
}
