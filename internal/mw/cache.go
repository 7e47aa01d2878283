package mw

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"laundrylink-backend/internal/changefeed"
)

// snapshot is a stored 2xx response.
type snapshot struct {
	status      int
	contentType string
	body        []byte
}

// teeWriter copies everything written to the client into buf.
type teeWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *teeWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache keeps successful anonymous GET responses in memory until
// they expire or one of the watched tables changes.
type ResponseCache struct {
	entries *cache.Cache
	ttl     time.Duration
}

// NewResponseCache creates a cache whose entries live for ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{entries: cache.New(ttl, 2*ttl), ttl: ttl}
}

// Len returns the number of stored responses, expired ones included until
// the janitor runs.
func (rc *ResponseCache) Len() int {
	return rc.entries.ItemCount()
}

// Invalidate drops every stored response.
func (rc *ResponseCache) Invalidate() {
	rc.entries.Flush()
}

// Middleware serves stored responses keyed by request URI. Requests carrying
// credentials always reach the handler.
func (rc *ResponseCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || c.GetHeader("Authorization") != "" {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if v, found := rc.entries.Get(key); found {
			snap := v.(snapshot)
			if snap.contentType != "" {
				c.Header("Content-Type", snap.contentType)
			}
			c.Header("X-Cache", "HIT")
			c.Data(snap.status, snap.contentType, snap.body)
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")
		tee := &teeWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = tee

		c.Next()

		if status := tee.Status(); status >= 200 && status < 300 {
			rc.entries.Set(key, snapshot{
				status:      status,
				contentType: tee.Header().Get("Content-Type"),
				body:        tee.buf.Bytes(),
			}, rc.ttl)
		}
	}
}

// WatchTables invalidates the cache on every change event for tables until
// ctx ends or the broker closes.
func (rc *ResponseCache) WatchTables(ctx context.Context, broker *changefeed.Broker, tables ...string) {
	watched := make(map[string]bool, len(tables))
	for _, t := range tables {
		watched[t] = true
	}

	sub := broker.Subscribe(changefeed.Filter{})
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-sub.C:
				if !ok {
					return
				}
				if watched[e.Table] {
					rc.Invalidate()
				}
			}
		}
	}()
}
