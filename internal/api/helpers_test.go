package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"

	"ticket-queue-backend/internal/clock"
	"ticket-queue-backend/internal/notification"
	"ticket-queue-backend/internal/queue"
	"ticket-queue-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testCategories = []queue.Category{
	{ID: "general", Name: "General", PriorityClass: queue.ClassGeneral},
	{ID: "senior", Name: "Senior", PriorityClass: queue.ClassPreferential},
}

type testServer struct {
	router *gin.Engine
	sched  *queue.Scheduler
	clock  *clock.FakeClock
	events *notification.Broadcaster
}

type serverOption func(*RouterConfig, *store.Store, **webpush.Options)

func withStore(s store.Store) serverOption {
	return func(_ *RouterConfig, st *store.Store, _ **webpush.Options) { *st = s }
}

func withWebPush(o *webpush.Options) serverOption {
	return func(_ *RouterConfig, _ *store.Store, wp **webpush.Options) { *wp = o }
}

func withRouterConfig(f func(*RouterConfig)) serverOption {
	return func(rc *RouterConfig, _ *store.Store, _ **webpush.Options) { f(rc) }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	fc := clock.Fake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	events := notification.NewBroadcaster(16)
	responses := cache.New(time.Minute, time.Minute)

	rc := RouterConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheStore: responses, CacheTTL: time.Minute}
	var st store.Store
	var wp *webpush.Options
	for _, o := range opts {
		o(&rc, &st, &wp)
	}

	cats, err := queue.NewCategoryRegistry(testCategories)
	require.NoError(t, err)
	ids := clock.NewSequence("id")
	sink := queue.SinkFunc(func(ctx context.Context, evt queue.Event) {
		responses.Flush()
		_ = events.Handle(ctx, evt)
	})
	sched := queue.New(cats, queue.NewTicketRegistry(fc, ids, 3), queue.NewAttendantRegistry(ids), queue.Config{
		Clock:           fc,
		IDs:             ids,
		Sink:            sink,
		CheckInvariants: true,
	})

	h := NewHandler(sched, st, wp, events)
	return &testServer{router: NewRouter(h, rc), sched: sched, clock: fc, events: events}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// decode unmarshals a response body into a generic map.
func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) createTicket(t *testing.T, category string, priority bool) map[string]any {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/tickets", gin.H{"category_id": category, "is_priority": priority})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	s.clock.Advance(time.Second)
	return decode(t, w)
}

func (s *testServer) activate(t *testing.T, name, desk string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/attendants", gin.H{"name": name, "desk_label": desk})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}
