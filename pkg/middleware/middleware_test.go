package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/metalprice/pkg/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ ratelimit.Limit) (*ratelimit.Result, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	return &ratelimit.Result{Allowed: f.allowed, RetryAfter: 30 * time.Second}, nil
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func serve(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLoggingSetsRequestID(t *testing.T) {
	w := serve(newRouter(GinLoggingMiddleware()), "/ping")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatal("missing request id header")
	}
}

func TestRecovery(t *testing.T) {
	w := serve(newRouter(GinLoggingMiddleware(), GinRecoveryMiddleware()), "/panic")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	limit := ratelimit.Limit{Rate: 1, Period: time.Minute, Burst: 1}

	tests := []struct {
		name    string
		limiter ratelimit.RateLimiter
		want    int
	}{
		{"nil limiter passes", nil, http.StatusOK},
		{"allowed", &fakeLimiter{allowed: true}, http.StatusOK},
		{"rejected", &fakeLimiter{allowed: false}, http.StatusTooManyRequests},
		{"limiter error fails open", &fakeLimiter{err: errors.New("down")}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newRouter(RateLimitMiddleware(tt.limiter, "refresh", limit)), "/ping")
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	serve(newRouter(RateLimitMiddleware(limiter, "refresh", ratelimit.NewLimit(1, 1, time.Minute))), "/ping")

	if len(limiter.keys) != 1 || limiter.keys[0] != "ratelimit:refresh:192.0.2.1" {
		t.Fatalf("keys = %v", limiter.keys)
	}
}
