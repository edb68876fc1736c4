package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "smartfinder_backend/internal/http"
	"smartfinder_backend/platform/config"
	"smartfinder_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type echoModule struct{}

func (echoModule) Name() string { return "echo" }

func (echoModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Limited.GET("/echo", func(c *gin.Context) { c.String(http.StatusOK, "echo") })
}

func newTestApp(health apphttp.HealthChecker) *apphttp.App {
	gin.SetMode(gin.TestMode)
	return &apphttp.App{
		Config:  &config.Config{Env: "test", RateLimitPerMinute: 2},
		Logger:  logger.Discard(),
		Health:  health,
		Modules: []apphttp.Module{echoModule{}},
	}
}

func TestHealth(t *testing.T) {
	cases := []struct {
		name   string
		health apphttp.HealthChecker
		want   int
	}{
		{"no dependencies", nil, http.StatusOK},
		{"healthy", pingFunc(func(context.Context) error { return nil }), http.StatusOK},
		{"degraded", pingFunc(func(context.Context) error { return errors.New("redis down") }), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := New(newTestApp(tc.health))
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			if w.Code != tc.want {
				t.Fatalf("status %d, want %d", w.Code, tc.want)
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Fatal("missing request id header")
			}
		})
	}
}

func TestLimitedGroupIsRateLimited(t *testing.T) {
	engine := New(newTestApp(nil))
	var codes []int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/echo", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		engine.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestCORSConfig(t *testing.T) {
	open := corsConfig(&config.Config{CORSAllowCreds: true})
	if !open.AllowAllOrigins || open.AllowCredentials {
		t.Fatalf("empty origin list must allow all origins without credentials: %+v", open)
	}

	strict := corsConfig(&config.Config{CORSOrigins: []string{"https://captain.example"}, CORSAllowCreds: true})
	if strict.AllowAllOrigins || len(strict.AllowOrigins) != 1 || !strict.AllowCredentials {
		t.Fatalf("unexpected strict config: %+v", strict)
	}
}
