package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/text2tracks/backend/internal/logger"
)

type fakeCatalog struct {
	tracks     int
	pending    int
	countErr   error
	pendingErr error
}

func (f *fakeCatalog) CountTracks(ctx context.Context) (int, error) {
	return f.tracks, f.countErr
}

func (f *fakeCatalog) CountPendingTracks(ctx context.Context) (int, error) {
	return f.pending, f.pendingErr
}

func newTestRouter(catalog Catalog) chi.Router {
	h := NewHandler(catalog, logger.New(logger.Config{Level: "error", Format: "text"}))
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestHealthEndpoints(t *testing.T) {
	r := newTestRouter(nil)

	for _, path := range []string{"/", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("GET %s: expected application/json, got %s", path, ct)
		}

		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("GET %s: decode failed: %v", path, err)
		}
		if body["status"] != "ok" {
			t.Errorf("GET %s: expected status ok, got %s", path, body["status"])
		}
		if body["service"] != "text2tracks-backend" {
			t.Errorf("GET %s: expected service name, got %s", path, body["service"])
		}
	}
}

func TestStats(t *testing.T) {
	r := newTestRouter(&fakeCatalog{tracks: 42, pending: 7})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["tracks"] != 42 {
		t.Errorf("Expected 42 tracks, got %d", body["tracks"])
	}
	if body["pending"] != 7 {
		t.Errorf("Expected 7 pending, got %d", body["pending"])
	}
}

func TestStats_NoCatalog(t *testing.T) {
	r := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a catalog, got %d", rec.Code)
	}
}

func TestStats_CountError(t *testing.T) {
	r := newTestRouter(&fakeCatalog{countErr: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}
