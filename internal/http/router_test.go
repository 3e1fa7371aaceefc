package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"lookout/internal/http/handlers"
	"lookout/internal/modules/session"
)

func TestRouter_Health(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		check  error
		status int
	}{
		{"healthy", nil, http.StatusOK},
		{"redis down", errors.New("dial tcp: refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(RouterDeps{Checks: map[string]handlers.Checker{
				"redis": handlers.CheckFunc(func(context.Context) error { return tt.check }),
			}})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			if tt.check != nil && strings.Contains(w.Body.String(), "refused") {
				t.Fatal("check error leaked into response")
			}
		})
	}
}

func TestRouter_SessionRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := session.NewRegistry(ctx, session.Deps{Defaults: session.Config{RadiusM: 300, ThresholdM: 1, Tolerance: 20}})
	defer reg.Close()

	r := NewRouter(RouterDeps{Sessions: handlers.SessionDeps{Sessions: reg}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one session, got %d", reg.Len())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
