package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-queue-backend/internal/queue"
)

func TestCreateTicket(t *testing.T) {
	s := newTestServer(t)

	first := s.createTicket(t, "general", false)
	assert.Equal(t, "G001", first["number"])
	assert.Equal(t, "waiting", first["status"])
	assert.EqualValues(t, 1, first["position"])
	assert.Equal(t, map[string]any{"min": float64(5), "max": float64(10)}, first["estimate_minutes"])

	second := s.createTicket(t, "general", true)
	assert.Equal(t, "P002", second["number"])
	assert.EqualValues(t, 1, second["position"], "priority ticket goes ahead")

	w := s.do(t, http.MethodGet, "/api/tickets/"+first["id"].(string)+"/position", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"position":2,"estimate_minutes":{"min":10,"max":20}}`, w.Body.String())
}

func TestCreateTicket_Errors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/tickets", gin.H{"category_id": "vip"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_category", decode(t, w)["code"])

	w = s.do(t, http.MethodPost, "/api/tickets", gin.H{"is_priority": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServiceFlow(t *testing.T) {
	s := newTestServer(t)
	ticket := s.createTicket(t, "senior", false)
	id := ticket["id"].(string)
	ana := s.activate(t, "Ana", "3")
	bruno := s.activate(t, "Bruno", "4")

	w := s.do(t, http.MethodPost, "/api/attendants/"+ana+"/call-next", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	called := decode(t, w)
	assert.Equal(t, "P001", called["number"])
	assert.Equal(t, "called", called["status"])
	assert.Equal(t, "3", called["desk_label"])
	assert.EqualValues(t, 0, called["position"])
	assert.NotContains(t, called, "estimate_minutes")

	w = s.do(t, http.MethodPost, "/api/attendants/"+ana+"/call-next", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "attendant_busy", decode(t, w)["code"])

	w = s.do(t, http.MethodPost, "/api/attendants/"+bruno+"/call-next", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "empty_queue", decode(t, w)["code"])

	w = s.do(t, http.MethodPost, "/api/tickets/"+id+"/start", gin.H{"attendant_id": bruno})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/tickets/"+id+"/start", gin.H{"attendant_id": ana})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "being_served", decode(t, w)["status"])

	w = s.do(t, http.MethodDelete, "/api/attendants/"+ana, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "refuse policy keeps a busy attendant logged in")

	w = s.do(t, http.MethodPost, "/api/tickets/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "tickets in service cannot be cancelled")

	w = s.do(t, http.MethodPost, "/api/tickets/"+id+"/complete", gin.H{"attendant_id": ana})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", decode(t, w)["status"])

	w = s.do(t, http.MethodPost, "/api/tickets/"+id+"/complete", gin.H{"attendant_id": ana})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", decode(t, w)["code"])

	w = s.do(t, http.MethodPost, "/api/tickets/"+id+"/complete", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/api/attendants/"+ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "offline", decode(t, w)["status"])

	s.createTicket(t, "general", false)
	w = s.do(t, http.MethodPost, "/api/attendants/"+ana+"/call-next", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "attendant_offline", decode(t, w)["code"])

	w = s.do(t, http.MethodPost, "/api/attendants/ghost/call-next", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttendantStatus(t *testing.T) {
	s := newTestServer(t)
	ana := s.activate(t, "Ana", "1")

	w := s.do(t, http.MethodPut, "/api/attendants/"+ana+"/status", gin.H{"status": "offline"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "offline", decode(t, w)["status"])

	w = s.do(t, http.MethodPut, "/api/attendants/"+ana+"/status", gin.H{"status": "busy"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, "/api/attendants/"+ana+"/status", gin.H{"status": "asleep"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/attendants", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["attendants"], 1)
}

func TestLookups(t *testing.T) {
	s := newTestServer(t)
	g := s.createTicket(t, "general", false)
	s.createTicket(t, "senior", true)

	w := s.do(t, http.MethodGet, "/api/tickets/number/g-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, g["id"], got["id"])
	assert.EqualValues(t, 2, got["position"])

	w = s.do(t, http.MethodGet, "/api/tickets/number/P001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/tickets/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/tickets?status=waiting,called", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["tickets"], 2)

	w = s.do(t, http.MethodGet, "/api/tickets?status=done", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["categories"], 2)
}

func TestQueueAndDisplay(t *testing.T) {
	s := newTestServer(t)
	s.createTicket(t, "general", false)
	s.createTicket(t, "senior", true)
	s.createTicket(t, "general", false)
	ana := s.activate(t, "Ana", "7")
	s.activate(t, "Off", "9")

	w := s.do(t, http.MethodGet, "/api/queue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	waiting := decode(t, w)["waiting"].([]any)
	require.Len(t, waiting, 3)
	assert.Equal(t, "P002", waiting[0].(map[string]any)["number"])
	assert.Equal(t, true, waiting[0].(map[string]any)["is_priority"])

	// Calling flushes the cached queue.
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/attendants/"+ana+"/call-next", nil).Code)
	w = s.do(t, http.MethodGet, "/api/queue", nil)
	assert.Len(t, decode(t, w)["waiting"], 2)

	w = s.do(t, http.MethodGet, "/api/display", nil)
	require.Equal(t, http.StatusOK, w.Code)
	display := decode(t, w)
	calls := display["recent_calls"].([]any)
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"number": "P002", "desk_label": "7", "status": "called"}, calls[0])
	assert.Len(t, display["waiting"], 2)
	assert.Len(t, display["attendants"], 2)
	assert.EqualValues(t, 1, display["stats"].(map[string]any)["busy_attendants"])
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, withRouterConfig(func(rc *RouterConfig) {
		rc.RateLimitPerSec = 0.001
		rc.RateLimitBurst = 1
	}))

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/attendants", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, http.MethodGet, "/api/attendants", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/display", nil).Code, "display is not limited")
}

func TestGetVAPIDPublicKey(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/api/vapid_public_key", nil).Code)

	s = newTestServer(t, withWebPush(&webpush.Options{VAPIDPublicKey: "BPub"}))
	w := s.do(t, http.MethodGet, "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"BPub"}`, w.Body.String())
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("ticket x: %w", queue.ErrNotFound), http.StatusNotFound},
		{queue.ErrEmptyQueue, http.StatusNotFound},
		{queue.ErrInvalidCategory, http.StatusUnprocessableEntity},
		{queue.ErrInvalidTransition, http.StatusConflict},
		{queue.ErrAttendantBusy, http.StatusConflict},
		{queue.ErrAttendantOffline, http.StatusConflict},
		{queue.ErrNotOwner, http.StatusForbidden},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := errorStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}

func TestStreamEvents(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(prefix string) string {
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), prefix) {
				return lines.Text()
			}
		}
		t.Fatalf("stream ended before %q: %v", prefix, lines.Err())
		return ""
	}

	waitFor("event:ready")
	require.Eventually(t, func() bool { return s.events.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	_, err = s.sched.Enqueue(context.Background(), "general", false)
	require.NoError(t, err)
	waitFor("event:ticket.created")
	data := waitFor("data:")
	assert.Contains(t, data, `"number":"G001"`)
}
