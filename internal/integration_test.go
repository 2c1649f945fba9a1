package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-queue-backend/config"
	"ticket-queue-backend/internal/api"
	"ticket-queue-backend/internal/checkpoint"
	"ticket-queue-backend/internal/db"
	"ticket-queue-backend/internal/model"
	"ticket-queue-backend/internal/notification"
	"ticket-queue-backend/internal/queue"
	"ticket-queue-backend/internal/store"
)

type service struct {
	sched  *queue.Scheduler
	router *gin.Engine
	pool   *notification.WorkerPool
	stop   context.CancelFunc
}

// startService wires the scheduler, worker pool and router over st the same
// way the daemon does.
func startService(t *testing.T, cfg *config.Config, st store.Store) *service {
	t.Helper()
	events := notification.NewBroadcaster(16)
	pool := notification.NewWorkerPool(notification.Options{
		Size:         cfg.WorkerPool.Size,
		QueueSize:    cfg.WorkerPool.QueueSize,
		MaxAttempts:  cfg.WorkerPool.MaxAttempts,
		RetryBackoff: cfg.WorkerPool.RetryBackoff,
		DrainTimeout: cfg.WorkerPool.DrainTimeout,
	}, notification.NewStateWriter(st), events)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	schedCfg := cfg.SchedulerConfig()
	schedCfg.Sink = pool
	schedCfg.CheckInvariants = true
	sched, err := queue.Restore(ctx, st, schedCfg)
	require.NoError(t, err)

	router := api.NewRouter(api.NewHandler(sched, st, nil, events), api.RouterConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
	})
	svc := &service{sched: sched, router: router, pool: pool, stop: cancel}
	t.Cleanup(svc.close)
	return svc
}

func (s *service) close() {
	s.stop()
	s.pool.Wait()
}

func (s *service) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// TestQueueSurvivesRestart runs a morning of traffic through the HTTP API,
// lets the event handlers persist it and then restarts the scheduler from
// the database.
func TestQueueSurvivesRestart(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Database.DSN = "file:" + filepath.Join(t.TempDir(), "queue.db")
	// One writer keeps sqlite free of lock contention.
	cfg.WorkerPool.Size = 1
	gormDB, err := db.Init(&cfg.Database)
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })

	st := store.NewGormStore(gormDB)
	require.NoError(t, st.SeedCategories(context.Background(), cfg.QueueCategories()))

	svc := startService(t, cfg, st)

	// Kiosk issues three tickets.
	w := svc.do(t, http.MethodPost, "/api/tickets", map[string]any{"category_id": "general"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[queue.Ticket](t, w)
	assert.Equal(t, "G001", first.Number)

	w = svc.do(t, http.MethodPost, "/api/tickets", map[string]any{"category_id": "general", "is_priority": true})
	require.Equal(t, http.StatusCreated, w.Code)
	flagged := decode[queue.Ticket](t, w)
	assert.Equal(t, "P002", flagged.Number)

	w = svc.do(t, http.MethodPost, "/api/tickets", map[string]any{"category_id": "general"})
	require.Equal(t, http.StatusCreated, w.Code)
	third := decode[queue.Ticket](t, w)

	// The flagged ticket jumps ahead of G001.
	w = svc.do(t, http.MethodGet, "/api/tickets/"+first.ID+"/position", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["position"])

	// One desk opens and serves the head of the queue.
	w = svc.do(t, http.MethodPost, "/api/attendants", map[string]any{"name": "Ana", "desk_label": "Desk 1"})
	require.Equal(t, http.StatusCreated, w.Code)
	desk := decode[queue.Attendant](t, w)

	w = svc.do(t, http.MethodPost, "/api/attendants/"+desk.ID+"/call-next", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	called := decode[queue.Ticket](t, w)
	assert.Equal(t, flagged.ID, called.ID)
	assert.Equal(t, "Desk 1", called.DeskLabel)

	w = svc.do(t, http.MethodPost, "/api/tickets/"+called.ID+"/complete", map[string]any{"attendant_id": desk.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The second call picks up G001, which stays with the desk.
	w = svc.do(t, http.MethodPost, "/api/attendants/"+desk.ID+"/call-next", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.ID, decode[queue.Ticket](t, w).ID)

	w = svc.do(t, http.MethodPost, "/api/tickets/"+first.ID+"/start", map[string]any{"attendant_id": desk.ID})
	require.Equal(t, http.StatusOK, w.Code)

	// Every change reaches the database through the event handlers.
	assert.Eventually(t, func() bool {
		var row model.Ticket
		if err := gormDB.First(&row, "id = ?", first.ID).Error; err != nil {
			return false
		}
		return row.Status == string(queue.StatusBeingServed)
	}, 2*time.Second, 10*time.Millisecond)

	// A final checkpoint covers anything still in flight.
	require.NoError(t, checkpoint.NewService(cfg.Checkpoint, svc.sched, st).SaveOnce(context.Background()))
	before := svc.sched.Stats()
	svc.close()

	restarted := startService(t, cfg, st)
	assert.Equal(t, before, restarted.sched.Stats())

	got, _, err := restarted.sched.Ticket(flagged.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusCompleted, got.Status)

	got, _, err = restarted.sched.Ticket(first.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusBeingServed, got.Status)
	assert.Equal(t, desk.ID, got.AttendantID)

	a, err := restarted.sched.Attendant(desk.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.AttendantBusy, a.Status)
	assert.Equal(t, first.ID, a.CurrentTicketID)

	// G003 is still first in line and numbering resumes after it.
	position, err := restarted.sched.PositionOf(third.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, position)

	w = restarted.do(t, http.MethodPost, "/api/tickets", map[string]any{"category_id": "priority"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "R004", decode[queue.Ticket](t, w).Number)
}

// TestRestartRepairsTornState writes the rows a crash between two saves can
// leave behind, and drops a category from the configuration, then checks the
// service still starts and keeps serving.
func TestRestartRepairsTornState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	cfg := config.Default()
	cfg.Database.DSN = "file:" + filepath.Join(t.TempDir(), "queue.db")
	cfg.WorkerPool.Size = 1
	gormDB, err := db.Init(&cfg.Database)
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })

	st := store.NewGormStore(gormDB)
	require.NoError(t, st.SeedCategories(ctx, cfg.QueueCategories()))

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	calledAt := start.Add(10 * time.Minute)
	// The ticket was saved as called, the attendant's busy row never was.
	require.NoError(t, st.SaveAttendant(ctx, queue.Attendant{ID: "a1", Name: "Ana", DeskLabel: "Desk 1", Status: queue.AttendantAvailable, Version: 1}))
	require.NoError(t, st.SaveTicket(ctx, queue.Ticket{
		ID: "t1", Number: "P001", Seq: 1, CategoryID: "preferential", Class: queue.ClassPreferential,
		Status: queue.StatusCalled, CreatedAt: start, CalledAt: &calledAt, AttendantID: "a1", DeskLabel: "Desk 1", Version: 2,
	}))
	require.NoError(t, st.SaveTicket(ctx, queue.Ticket{
		ID: "t2", Number: "P002", Seq: 2, CategoryID: "preferential", Class: queue.ClassPreferential,
		Status: queue.StatusWaiting, CreatedAt: start.Add(time.Minute), Version: 1,
	}))

	var kept []config.CategoryConfig
	for _, c := range cfg.Categories {
		if c.ID != "preferential" {
			kept = append(kept, c)
		}
	}
	cfg.Categories = kept
	require.NoError(t, st.SeedCategories(ctx, cfg.QueueCategories()))

	svc := startService(t, cfg, st)

	a, err := svc.sched.Attendant("a1")
	require.NoError(t, err)
	assert.Equal(t, queue.AttendantBusy, a.Status)
	assert.Equal(t, "t1", a.CurrentTicketID)

	w := svc.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"preferential"`)

	w = svc.do(t, http.MethodPost, "/api/tickets", map[string]any{"category_id": "preferential"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = svc.do(t, http.MethodPost, "/api/tickets/t1/complete", map[string]any{"attendant_id": "a1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = svc.do(t, http.MethodPost, "/api/attendants/a1/call-next", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "t2", decode[queue.Ticket](t, w).ID)
}
