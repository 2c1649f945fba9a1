package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// page is a rendered 200 response.
type page struct {
	contentType string
	body        []byte
}

// recorder tees the handler's output into buf.
type recorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Cache serves repeated GETs of the same URL from store. Only 200 responses
// are kept, for ttl or until the store is flushed; the daemon flushes it on
// every queue event so panels never show a stale queue for long.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if v, ok := store.Get(key); ok {
			p := v.(page)
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, p.contentType, p.body)
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")
		rec := &recorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		if rec.Status() == http.StatusOK {
			store.Set(key, page{
				contentType: rec.Header().Get("Content-Type"),
				body:        bytes.Clone(rec.buf.Bytes()),
			}, ttl)
		}
	}
}
