package appointments

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agenda-backend/internal/httpx"
	"agenda-backend/internal/middleware"
	"agenda-backend/internal/schedule"
	"agenda-backend/internal/transport"
	"agenda-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		val:     val,
		log:     log,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("appointments create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.service.Create(ctx, req)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			log.Warn("appointments create: validation error", slog.String("field", verr.Field))
			transport.WriteError(w, http.StatusBadRequest, "validation error", verr.Details)
		case errors.Is(err, ErrSlotUnavailable):
			log.Warn("appointments create: slot unavailable", slog.String("date", req.Date), slog.String("time_slot", req.TimeSlot))
			h.writeSlotUnavailable(ctx, w, log, req)
		default:
			log.Error("appointments create: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	appt := res.Appointment
	log.Info("appointments create: booked",
		slog.String("appointment_id", appt.ID),
		slog.String("service", appt.Service),
		slog.String("date", appt.Date),
		slog.String("time_slot", appt.TimeSlot),
	)
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"appointment":       appt,
		"cancellationToken": appt.CancellationToken,
		"notified":          res.Notification == nil,
	})
}

// writeSlotUnavailable answers 409 with the date's current free slots so the
// client can offer another time without a second request.
func (h *Handler) writeSlotUnavailable(ctx context.Context, w http.ResponseWriter, log *slog.Logger, req CreateRequest) {
	available := []string{}
	if slots, err := h.service.FreshAvailability(ctx, strings.TrimSpace(req.Date), strings.TrimSpace(req.Service)); err != nil {
		log.Warn("appointments create: availability compute error", slog.String("error", err.Error()))
	} else {
		available = slots
	}
	transport.WriteJSON(w, http.StatusConflict, map[string]interface{}{
		"error":          "slot unavailable",
		"availableSlots": available,
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req CancelRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("appointments cancel: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("appointments cancel: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	res, err := h.service.CancelByToken(ctx, req.Token)
	if err != nil {
		h.writeServiceError(w, log, "appointments cancel", err)
		return
	}

	log.Info("appointments cancel: ok", slog.String("appointment_id", res.Appointment.ID))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointment": res.Appointment,
		"notified":    res.Notification == nil,
	})
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limit, err := httpx.ParseLimit(r.URL.Query(), 50, 200)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	status := strings.TrimSpace(r.URL.Query().Get("status"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.ListByStatus(ctx, status, limit)
	if err != nil {
		h.writeServiceError(w, log, "admin appointments list", err)
		return
	}

	log.Info("admin appointments list: ok", slog.String("status", status), slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) AdminUpcoming(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limit, err := httpx.ParseLimit(r.URL.Query(), 10, 100)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.Upcoming(ctx, limit)
	if err != nil {
		h.writeServiceError(w, log, "admin appointments upcoming", err)
		return
	}

	log.Info("admin appointments upcoming: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) AdminCounts(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	counts, err := h.service.CountsByStatus(ctx)
	if err != nil {
		h.writeServiceError(w, log, "admin appointments counts", err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, counts)
}

func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	appt, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeServiceError(w, log, "admin appointments get", err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, appt)
}

func (h *Handler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin appointments status: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req StatusRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin appointments status: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin appointments status: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	res, err := h.service.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		h.writeServiceError(w, log, "admin appointments status", err)
		return
	}

	log.Info("admin appointments status: ok",
		slog.String("appointment_id", id),
		slog.String("status", res.Appointment.Status),
		slog.Bool("notified", res.Notification == nil),
	)
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointment": res.Appointment,
		"notified":    res.Notification == nil,
	})
}

func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin appointments delete: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, id); err != nil {
		h.writeServiceError(w, log, "admin appointments delete", err)
		return
	}

	log.Info("admin appointments delete: ok", slog.String("appointment_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) AdminRunReminders(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	asOf := strings.TrimSpace(r.URL.Query().Get("asOf"))

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	outcomes, err := h.service.RunReminderSweep(ctx, asOf)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidDate) {
			transport.WriteError(w, http.StatusBadRequest, "invalid asOf", nil)
			return
		}
		log.Error("admin reminders run: sweep failed", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	sent, failed, skipped := Tally(outcomes)
	log.Info("admin reminders run: ok",
		slog.Int("sent", sent),
		slog.Int("failed", failed),
		slog.Int("skipped", skipped),
	)
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": outcomes})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warn(op + ": not found")
		transport.WriteError(w, http.StatusNotFound, "appointment not found", nil)
	case errors.Is(err, ErrInvalidStatus):
		log.Warn(op + ": invalid status")
		transport.WriteError(w, http.StatusBadRequest, "invalid status", nil)
	case errors.Is(err, ErrInvalidTransition):
		log.Warn(op+": invalid transition", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, ErrDeleteActive):
		log.Warn(op + ": appointment still active")
		transport.WriteError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, ErrSlotUnavailable):
		log.Warn(op + ": slot unavailable")
		transport.WriteError(w, http.StatusConflict, "slot unavailable", nil)
	case errors.Is(err, ErrStaleStatus):
		log.Warn(op + ": concurrent update")
		transport.WriteError(w, http.StatusConflict, err.Error(), nil)
	default:
		log.Error(op+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
