package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agenda-backend/internal/validation"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if err := ComparePassword(hash, "s3cret"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := ComparePassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := ComparePassword("not-a-hash", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for malformed hash, got %v", err)
	}
	if _, err := HashPassword("abc"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestManagerTokens(t *testing.T) {
	if NewManager("", time.Hour, "agenda") != nil {
		t.Fatalf("expected nil manager without secret")
	}
	m := NewManager("test-secret", time.Hour, "agenda")
	token, expires, err := m.NewAccessToken("admin", RoleAdmin)
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expected future expiry")
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if claims.Role != RoleAdmin || claims.Subject != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	other := NewManager("other-secret", time.Hour, "agenda")
	if _, err := other.Parse(token); err == nil {
		t.Fatalf("expected signature error")
	}

	expired := NewManager("test-secret", time.Hour, "agenda")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.NewAccessToken("admin", RoleAdmin)
	if _, err := m.Parse(old); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestLoginHandler(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	m := NewManager("test-secret", time.Hour, "agenda")
	h := NewHandler(m, "admin", hash, true, validation.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	cases := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"username":"admin","password":"s3cret"}`, http.StatusOK},
		{"wrong password", `{"username":"admin","password":"nope"}`, http.StatusUnauthorized},
		{"wrong user", `{"username":"root","password":"s3cret"}`, http.StatusUnauthorized},
		{"missing password", `{"username":"admin"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Login(rec, httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(tc.body)))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			if tc.want != http.StatusOK {
				return
			}
			cookies := rec.Result().Cookies()
			if len(cookies) != 1 || cookies[0].Name != AccessCookie || !cookies[0].HttpOnly || !cookies[0].Secure {
				t.Fatalf("unexpected cookies: %+v", cookies)
			}
			if _, err := m.Parse(cookies[0].Value); err != nil {
				t.Fatalf("cookie token invalid: %v", err)
			}
		})
	}
}

func TestLoginNotConfigured(t *testing.T) {
	h := NewHandler(nil, "admin", "", false, validation.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
