package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"ticket-queue-backend/internal/mw"
)

// RouterConfig tunes the middleware in front of the handlers.
type RouterConfig struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	RequestIPHeader string
	RecentCalls     int

	// CacheStore backs the GET response cache. The caller flushes it when
	// the queue changes.
	CacheStore *cache.Cache
	CacheTTL   time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	if cfg.RecentCalls > 0 {
		h.recentCalls = cfg.RecentCalls
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 10
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Second
	}
	if cfg.CacheStore == nil {
		cfg.CacheStore = cache.New(cfg.CacheTTL, time.Minute)
	}

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)
	caching := mw.Cache(cfg.CacheStore, cfg.CacheTTL)

	api := r.Group("/api")
	{
		// Display panels and the event stream poll or hold connections
		// open, so they sit outside the rate limit.
		api.GET("/display", caching, h.GetDisplay)
		api.GET("/events", h.StreamEvents)
	}

	limited := api.Group("")
	limited.Use(rateLimiter)
	{
		limited.GET("/categories", caching, h.GetCategories)
		limited.GET("/queue", caching, h.GetQueue)

		limited.POST("/tickets", h.CreateTicket)
		limited.GET("/tickets", h.ListTickets)
		limited.GET("/tickets/number/:number", h.GetTicketByNumber)
		limited.GET("/tickets/:id", h.GetTicket)
		limited.GET("/tickets/:id/position", h.GetTicketPosition)
		limited.POST("/tickets/:id/start", h.StartService)
		limited.POST("/tickets/:id/complete", h.CompleteService)
		limited.POST("/tickets/:id/cancel", h.CancelTicket)

		limited.GET("/tickets/:id/subscription", h.GetSubscription)
		limited.PUT("/tickets/:id/subscription", h.PutSubscription)
		limited.DELETE("/tickets/:id/subscription", h.DeleteSubscription)
		limited.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		limited.POST("/attendants", h.ActivateAttendant)
		limited.GET("/attendants", h.ListAttendants)
		limited.DELETE("/attendants/:id", h.DeactivateAttendant)
		limited.PUT("/attendants/:id/status", h.SetAttendantStatus)
		limited.POST("/attendants/:id/call-next", h.CallNext)
	}

	return r
}
