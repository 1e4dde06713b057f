package route

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/parcel-tracker/internal/config"
	apperrors "github.com/spec-kit/parcel-tracker/pkg/util"
)

func newTestOptimizer(baseURL, apiKey string) *Optimizer {
	return NewOptimizer(config.OptimizerConfig{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		Model:          "test-model",
		TimeoutSeconds: 5,
	}, zap.NewNop())
}

func TestOptimizeRouteDisabledWithoutKey(t *testing.T) {
	o := newTestOptimizer("http://127.0.0.1:1", "")
	_, err := o.OptimizeRoute(context.Background(), OptimizeInput{Origin: "Paris", Destination: "Marseille"})
	if err == nil {
		t.Fatal("expected error with no API key")
	}
	if apperrors.ToDomainError(err).Code != "OPTIMIZER_DISABLED" {
		t.Errorf("code = %q, want OPTIMIZER_DISABLED", apperrors.ToDomainError(err).Code)
	}
}

func TestOptimizeRouteParsesCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization = %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Paris -> Lyon -> Marseille "}}]}`))
	}))
	defer srv.Close()

	o := newTestOptimizer(srv.URL, "test-key")
	text, err := o.OptimizeRoute(context.Background(), OptimizeInput{
		Origin:      "Paris, France",
		Destination: "Marseille, France",
		Waypoints:   []string{"Lyon, France"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Paris -> Lyon -> Marseille" {
		t.Errorf("route = %q", text)
	}
}

func TestOptimizeRouteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	o := newTestOptimizer(srv.URL, "test-key")
	text, err := o.OptimizeRoute(context.Background(), OptimizeInput{Origin: "A", Destination: "B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "ok" || calls.Load() != 2 {
		t.Errorf("text = %q, calls = %d", text, calls.Load())
	}
}

func TestOptimizeRouteMapsPermissionErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	o := newTestOptimizer(srv.URL, "bad-key")
	_, err := o.OptimizeRoute(context.Background(), OptimizeInput{Origin: "A", Destination: "B"})
	if err == nil {
		t.Fatal("expected error")
	}
	if apperrors.ToDomainError(err).Code != "PERMISSION_DENIED" {
		t.Errorf("code = %q, want PERMISSION_DENIED", apperrors.ToDomainError(err).Code)
	}
}

func TestOptimizeRouteValidatesInput(t *testing.T) {
	o := newTestOptimizer("http://127.0.0.1:1", "test-key")
	_, err := o.OptimizeRoute(context.Background(), OptimizeInput{Origin: "", Destination: "B"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if apperrors.ToDomainError(err).Code != "VALIDATION_FAILED" {
		t.Errorf("code = %q, want VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
	}
}
