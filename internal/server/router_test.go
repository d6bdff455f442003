package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"procrecipe/internal/engine"
	"procrecipe/internal/handlers"
	"procrecipe/internal/recipes"
)

func TestNewRouterRegistersHealthRoute(t *testing.T) {
	handlers.Configure(engine.New(recipes.NewMemoryRepository()))
	t.Cleanup(func() { handlers.Configure(nil) })

	s := &Server{config: Config{RateLimit: 10, RateLimitBurst: 10}, rateLimiter: rate.NewLimiter(10, 10)}
	router := s.newRouter()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected /healthz to return 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json content type, got %q", ct)
	}
}

func TestNewRouterServesMetrics(t *testing.T) {
	s := &Server{config: Config{RateLimit: 10, RateLimitBurst: 10}, rateLimiter: rate.NewLimiter(10, 10)}
	router := s.newRouter()

	// Touch an API route so the request counter has a sample.
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/recipes", nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected /metrics to return 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "procrecipe_http_requests_total") {
		t.Fatal("expected http request counter in metrics output")
	}
	if !strings.Contains(rr.Body.String(), `route="GET /api/recipes"`) {
		t.Fatal("expected route pattern label in metrics output")
	}
}

func TestNewRouterUnknownPath(t *testing.T) {
	s := &Server{config: Config{RateLimit: 10, RateLimitBurst: 10}, rateLimiter: rate.NewLimiter(10, 10)}
	rr := httptest.NewRecorder()
	s.newRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
