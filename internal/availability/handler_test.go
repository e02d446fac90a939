package availability

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agenda-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(repo *memRepo, now time.Time) http.Handler {
	r := newTestResolver(repo, staticLedger{}, nil, now)
	h := NewHandler(NewService(repo, r, testLoc), r, validation.New(), slog.New(slog.NewTextHandler(io.Discard, nil)), 30)

	router := chi.NewRouter()
	router.Get("/availability", h.GetAvailability)
	router.Get("/availability/next", h.GetNextAvailability)
	router.Post("/admin/rules", h.AdminCreateRule)
	router.Patch("/admin/rules/{id}", h.AdminUpdateRule)
	router.Post("/admin/blocked-dates", h.AdminCreateBlockedDate)
	return router
}

func TestGetAvailabilityHandler(t *testing.T) {
	router := newTestRouter(newMemRepo(mondayRule()), time.Date(2026, 1, 20, 8, 0, 0, 0, testLoc))

	req := httptest.NewRequest(http.MethodGet, "/availability?date="+monday, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Date     string   `json:"date"`
		Duration int      `json:"duration"`
		Slots    []string `json:"slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Date != monday || body.Duration != 30 || len(body.Slots) != 6 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestGetAvailabilityHandlerRejectsBadQuery(t *testing.T) {
	router := newTestRouter(newMemRepo(mondayRule()), time.Date(2026, 1, 20, 8, 0, 0, 0, testLoc))

	for _, target := range []string{
		"/availability",
		"/availability?date=02-02-2026",
		"/availability?date=" + monday + "&duration=abc",
		"/availability?date=" + monday + "&duration=0",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestGetNextAvailabilityHandler(t *testing.T) {
	router := newTestRouter(newMemRepo(mondayRule()), time.Date(2026, 1, 28, 8, 0, 0, 0, testLoc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/availability/next", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Date string `json:"date"`
		Time string `json:"time"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Date != monday || body.Time != "09:00" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestGetNextAvailabilityHandlerNotFound(t *testing.T) {
	router := newTestRouter(newMemRepo(), time.Date(2026, 1, 28, 8, 0, 0, 0, testLoc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/availability/next", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAdminCreateRuleHandler(t *testing.T) {
	router := newTestRouter(newMemRepo(), time.Date(2026, 1, 20, 8, 0, 0, 0, testLoc))

	cases := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"dayOfWeek":1,"startTime":"09:00","endTime":"12:00","slotDurationMinutes":30}`, http.StatusCreated},
		{"sunday is valid", `{"dayOfWeek":0,"startTime":"09:00","endTime":"12:00","slotDurationMinutes":30}`, http.StatusCreated},
		{"inverted range", `{"dayOfWeek":1,"startTime":"12:00","endTime":"09:00","slotDurationMinutes":30}`, http.StatusBadRequest},
		{"bad clock", `{"dayOfWeek":1,"startTime":"9","endTime":"12:00","slotDurationMinutes":30}`, http.StatusBadRequest},
		{"unknown field", `{"dayOfWeek":1,"startTime":"09:00","endTime":"12:00","slotDurationMinutes":30,"x":1}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/admin/rules", strings.NewReader(tc.body))
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAdminUpdateRuleHandlerNotFound(t *testing.T) {
	router := newTestRouter(newMemRepo(), time.Date(2026, 1, 20, 8, 0, 0, 0, testLoc))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/admin/rules/missing", strings.NewReader(`{"isActive":false}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAdminCreateBlockedDateConflict(t *testing.T) {
	router := newTestRouter(newMemRepo(), time.Date(2026, 1, 20, 8, 0, 0, 0, testLoc))

	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin/blocked-dates", strings.NewReader(`{"date":"2026-02-02","reason":"holiday"}`))
		router.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, rec.Code)
		}
	}
}
