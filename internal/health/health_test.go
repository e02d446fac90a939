package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestReadyz(t *testing.T) {
	cases := []struct {
		name   string
		checks []Check
		want   int
	}{
		{"no checks", nil, http.StatusOK},
		{"all pass", []Check{{Name: "mongo", Check: func(context.Context) error { return nil }}}, http.StatusOK},
		{"nil check ignored", []Check{{Name: "redis"}}, http.StatusOK},
		{"one fails", []Check{
			{Name: "mongo", Check: func(context.Context) error { return nil }},
			{Name: "kafka", Check: func(context.Context) error { return errors.New("dial timeout") }},
		}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			Mount(r, tc.checks...)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			if tc.want == http.StatusServiceUnavailable {
				var body struct {
					Details map[string]string `json:"details"`
				}
				_ = json.NewDecoder(rec.Body).Decode(&body)
				if body.Details["kafka"] != "dial timeout" {
					t.Fatalf("expected failing check in details, got %v", body.Details)
				}
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	r := chi.NewRouter()
	Mount(r, Check{Name: "db", Check: func(context.Context) error { return errors.New("down") }})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz must not depend on checks, got %d", rec.Code)
	}
	if got := Names([]Check{{Name: "db"}, {Name: "redis"}}); got != "db,redis" {
		t.Fatalf("unexpected names %q", got)
	}
}
