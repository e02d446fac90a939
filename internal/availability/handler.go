package availability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agenda-backend/internal/httpx"
	"agenda-backend/internal/middleware"
	"agenda-backend/internal/schedule"
	"agenda-backend/internal/transport"
	"agenda-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

const nextAvailabilityDays = 30

type Handler struct {
	service         *Service
	resolver        *Resolver
	val             *validation.Validator
	log             *slog.Logger
	defaultDuration int
}

func NewHandler(service *Service, resolver *Resolver, val *validation.Validator, log *slog.Logger, defaultDuration int) *Handler {
	return &Handler{
		service:         service,
		resolver:        resolver,
		val:             val,
		log:             log,
		defaultDuration: defaultDuration,
	}
}

type availabilityQuery struct {
	Date string `json:"date" validate:"required,date"`
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	q := availabilityQuery{Date: strings.TrimSpace(r.URL.Query().Get("date"))}
	if err := h.val.Struct(q); err != nil {
		log.Warn("availability: invalid query")
		transport.WriteError(w, http.StatusBadRequest, "invalid query", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	duration, err := httpx.ParseDuration(r.URL.Query().Get("duration"), h.defaultDuration)
	if err != nil {
		log.Warn("availability: invalid duration")
		transport.WriteError(w, http.StatusBadRequest, "invalid duration", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	slots, cached, err := h.resolver.Available(ctx, q.Date, duration)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidDate) || errors.Is(err, schedule.ErrInvalidDuration) {
			transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		log.Error("availability: compute error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "availability error", nil)
		return
	}

	log.Info("availability: ok",
		slog.String("date", q.Date),
		slog.Int("duration", duration),
		slog.Int("slots", len(slots)),
		slog.Bool("cache_hit", cached),
	)
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"date":     q.Date,
		"timezone": h.resolver.Location().String(),
		"duration": duration,
		"slots":    slots,
	})
}

func (h *Handler) GetNextAvailability(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	if from == "" {
		from = schedule.Today(h.resolver.Location(), h.resolver.Now())
	}
	if err := h.val.Struct(availabilityQuery{Date: from}); err != nil {
		log.Warn("availability next: invalid date")
		transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
		return
	}

	duration, err := httpx.ParseDuration(r.URL.Query().Get("duration"), h.defaultDuration)
	if err != nil {
		log.Warn("availability next: invalid duration")
		transport.WriteError(w, http.StatusBadRequest, "invalid duration", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	date, slots, err := h.resolver.Next(ctx, from, duration, nextAvailabilityDays)
	if err != nil {
		log.Error("availability next: compute error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "availability error", nil)
		return
	}
	if date == "" {
		transport.WriteError(w, http.StatusNotFound, "no availability found", map[string]string{"days": strconv.Itoa(nextAvailabilityDays)})
		return
	}

	log.Info("availability next: ok", slog.String("date", date), slog.String("time", slots[0]))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"date":     date,
		"time":     slots[0],
		"slots":    slots,
		"timezone": h.resolver.Location().String(),
		"duration": duration,
	})
}

func (h *Handler) AdminListRules(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rules, err := h.service.ListRules(ctx)
	if err != nil {
		log.Error("admin rules list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin rules list: ok", slog.Int("count", len(rules)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": rules})
}

func (h *Handler) AdminCreateRule(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req CreateRuleRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin rules create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin rules create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rule, err := h.service.CreateRule(ctx, req)
	if err != nil {
		if errors.Is(err, ErrInvalidRule) {
			log.Warn("admin rules create: invalid rule", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		log.Error("admin rules create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin rules create: ok", slog.String("rule_id", rule.ID), slog.Int("day_of_week", rule.DayOfWeek))
	transport.WriteJSON(w, http.StatusCreated, rule)
}

func (h *Handler) AdminUpdateRule(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin rules update: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var patch RulePatch
	if err := httpx.DecodeJSON(r.Body, &patch); err != nil {
		log.Warn("admin rules update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(patch); err != nil {
		log.Warn("admin rules update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rule, err := h.service.UpdateRule(ctx, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, ErrRuleNotFound):
			log.Warn("admin rules update: not found", slog.String("rule_id", id))
			transport.WriteError(w, http.StatusNotFound, "rule not found", nil)
		case errors.Is(err, ErrInvalidRule):
			log.Warn("admin rules update: invalid rule", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		default:
			log.Error("admin rules update: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("admin rules update: ok", slog.String("rule_id", id))
	transport.WriteJSON(w, http.StatusOK, rule)
}

func (h *Handler) AdminDeleteRule(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin rules delete: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.DeleteRule(ctx, id); err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			log.Warn("admin rules delete: not found", slog.String("rule_id", id))
			transport.WriteError(w, http.StatusNotFound, "rule not found", nil)
			return
		}
		log.Error("admin rules delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin rules delete: ok", slog.String("rule_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) AdminListBlockedDates(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	if from != "" {
		if err := h.val.Struct(availabilityQuery{Date: from}); err != nil {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"from": "date"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.ListBlockedDates(ctx, from)
	if err != nil {
		log.Error("admin blocked dates list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin blocked dates list: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) AdminCreateBlockedDate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req BlockDateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin blocked dates create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin blocked dates create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	blocked, err := h.service.AddBlockedDate(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrDateAlreadyBlocked):
			log.Warn("admin blocked dates create: already blocked", slog.String("date", req.Date))
			transport.WriteError(w, http.StatusConflict, "date already blocked", nil)
		case errors.Is(err, schedule.ErrInvalidDate):
			transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
		default:
			log.Error("admin blocked dates create: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("admin blocked dates create: ok", slog.String("blocked_date_id", blocked.ID), slog.String("date", blocked.Date))
	transport.WriteJSON(w, http.StatusCreated, blocked)
}

func (h *Handler) AdminDeleteBlockedDate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin blocked dates delete: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.RemoveBlockedDate(ctx, id); err != nil {
		if errors.Is(err, ErrBlockedDateNotFound) {
			log.Warn("admin blocked dates delete: not found", slog.String("blocked_date_id", id))
			transport.WriteError(w, http.StatusNotFound, "blocked date not found", nil)
			return
		}
		log.Error("admin blocked dates delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin blocked dates delete: ok", slog.String("blocked_date_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
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
