package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"agenda-backend/internal/httpx"
	"agenda-backend/internal/transport"
	"agenda-backend/internal/validation"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=120"`
	Password string `json:"password" validate:"required,max=200"`
}

// Handler exchanges the admin credentials for a session cookie.
type Handler struct {
	manager      *Manager
	username     string
	passwordHash string
	secure       bool
	val          *validation.Validator
	log          *slog.Logger
}

func NewHandler(manager *Manager, username, passwordHash string, secure bool, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		manager:      manager,
		username:     username,
		passwordHash: passwordHash,
		secure:       secure,
		val:          val,
		log:          log,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil || h.passwordHash == "" {
		transport.WriteError(w, http.StatusServiceUnavailable, "admin login not configured", nil)
		return
	}

	var req LoginRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.username)) == 1
	passErr := ComparePassword(h.passwordHash, req.Password)
	if !userOK || passErr != nil {
		h.log.Warn("admin login: rejected", slog.String("username", req.Username))
		transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	token, expires, err := h.manager.NewAccessToken(req.Username, RoleAdmin)
	if err != nil {
		h.log.Error("admin login: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	h.log.Info("admin login: ok", slog.String("username", req.Username))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"expiresAt": expires})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
