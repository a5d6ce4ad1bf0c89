package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/ginext"
)

func TestLoggingMiddleware_RequestID(t *testing.T) {
	r := ginext.New("test")
	r.Use(LoggingMiddleware())
	r.GET("/ping", func(c *ginext.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}

func TestRateLimit_PassThroughWithoutRedis(t *testing.T) {
	r := ginext.New("test")
	r.Use(RateLimit(nil, RateLimitConfig{Enabled: true, Capacity: 1}))
	r.GET("/x", func(c *ginext.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitConfig_Normalize(t *testing.T) {
	cfg := RateLimitConfig{RefillInterval: 2 * time.Second}.Normalize()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 10*time.Second, cfg.TTL)
	assert.Equal(t, "rl", cfg.Prefix)
}
