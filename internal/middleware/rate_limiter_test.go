package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(rps, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(rps, burst).Middleware())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func get(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	router := newLimitedRouter(1, 3)

	for i := 0; i < 3; i++ {
		if w := get(router, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i+1, w.Code)
		}
	}
}

func TestRateLimiterRejectsOverBurst(t *testing.T) {
	router := newLimitedRouter(1, 1)

	if w := get(router, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200 got %d", w.Code)
	}
	if w := get(router, "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429 got %d", w.Code)
	}
}

func TestRateLimiterTracksClientsSeparately(t *testing.T) {
	router := newLimitedRouter(1, 1)

	if w := get(router, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("client A: expected 200 got %d", w.Code)
	}
	if w := get(router, "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("client B must have its own bucket, got %d", w.Code)
	}
}
