package appointments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agenda-backend/internal/schedule"
	"agenda-backend/internal/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrSlotUnavailable    = errors.New("slot unavailable")
	ErrNotFound           = errors.New("appointment not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrDeleteActive       = errors.New("appointment must be cancelled or completed before deletion")
	ErrStaleStatus        = errors.New("appointment status changed concurrently")
	ErrNotificationFailed = errors.New("notification failed")
)

// ValidationError reports malformed booking input. Field and Tag name the
// first offending field; Details holds every failure keyed by field.
type ValidationError struct {
	Field   string
	Tag     string
	Details map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Tag)
}

// SlotResolver computes live availability and drops cached availability.
type SlotResolver interface {
	Resolve(ctx context.Context, date string, duration int) ([]string, error)
	InvalidateDate(ctx context.Context, date string) error
}

// Notifier receives appointment events. Each call may fail independently.
type Notifier interface {
	AppointmentCreated(ctx context.Context, appt Appointment) error
	AppointmentStatusChanged(ctx context.Context, appt Appointment, previous string) error
	AppointmentReminder(ctx context.Context, appt Appointment) error
}

const (
	notifyTimeout       = 8 * time.Second
	maxStatusAttempts   = 3
	cancellationTokenSz = 32
)

type Service struct {
	repo            Repository
	slots           SlotResolver
	notifier        Notifier
	val             *validation.Validator
	log             *slog.Logger
	location        *time.Location
	transitions     Transitions
	durations       map[string]int
	defaultDuration int
	now             func() time.Time
}

type Option func(*Service)

// WithTransitions replaces the status state machine.
func WithTransitions(t Transitions) Option {
	return func(s *Service) { s.transitions = t }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithServiceDurations sets the meeting length per service. Unlisted
// services use fallback; with a non-empty catalogue they are rejected.
func WithServiceDurations(durations map[string]int, fallback int) Option {
	return func(s *Service) {
		s.durations = durations
		s.defaultDuration = fallback
	}
}

func NewService(repo Repository, slots SlotResolver, notifier Notifier, val *validation.Validator, log *slog.Logger, location *time.Location, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		slots:       slots,
		notifier:    notifier,
		val:         val,
		log:         log,
		location:    location,
		transitions: DefaultTransitions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DurationFor returns the meeting length booked for service. Zero means every
// rule steps by its own slot duration.
func (s *Service) DurationFor(service string) (int, error) {
	if d, ok := s.durations[service]; ok {
		return d, nil
	}
	if len(s.durations) > 0 {
		return 0, &ValidationError{Field: "service", Tag: "oneof", Details: map[string]string{"service": "oneof"}}
	}
	return s.defaultDuration, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Result, error) {
	req = normalizeRequest(req)
	if err := s.validate(req); err != nil {
		return Result{}, err
	}

	startMin, err := schedule.ParseClockToMinutes(req.TimeSlot)
	if err != nil {
		return Result{}, &ValidationError{Field: "timeSlot", Tag: "clock", Details: map[string]string{"timeSlot": "clock"}}
	}
	req.TimeSlot = schedule.MinutesToClock(startMin)

	duration, err := s.DurationFor(req.Service)
	if err != nil {
		return Result{}, err
	}

	slots, err := s.slots.Resolve(ctx, req.Date, duration)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidDate) {
			return Result{}, &ValidationError{Field: "date", Tag: "date", Details: map[string]string{"date": "date"}}
		}
		return Result{}, err
	}
	if !schedule.Contains(slots, req.TimeSlot) {
		return Result{}, ErrSlotUnavailable
	}

	token, err := newCancellationToken()
	if err != nil {
		return Result{}, err
	}

	now := s.now().In(s.location)
	appt := Appointment{
		ID:                primitive.NewObjectID().Hex(),
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		Company:           req.Company,
		Service:           req.Service,
		Date:              req.Date,
		TimeSlot:          req.TimeSlot,
		Message:           req.Message,
		Status:            StatusPending,
		CancellationToken: token,
		SlotHeld:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return Result{}, err
	}
	s.invalidate(ctx, appt.Date)

	res := Result{Appointment: appt}
	res.Notification = s.dispatch(ctx, "created", appt, func(ctx context.Context, n Notifier) error {
		return n.AppointmentCreated(ctx, appt)
	})
	return res, nil
}

// FreshAvailability resolves the free slots of date for service from live
// storage.
func (s *Service) FreshAvailability(ctx context.Context, date, service string) ([]string, error) {
	duration, err := s.DurationFor(service)
	if err != nil {
		duration = s.defaultDuration
	}
	return s.slots.Resolve(ctx, date, duration)
}

func (s *Service) validate(req CreateRequest) error {
	err := s.val.Struct(req)
	if err == nil {
		return nil
	}
	errs := s.val.ValidationErrors(err)
	if len(errs) == 0 {
		return err
	}
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = fe.Tag()
	}
	return &ValidationError{Field: errs[0].Field(), Tag: errs[0].Tag(), Details: details}
}

func normalizeRequest(req CreateRequest) CreateRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Company = strings.TrimSpace(req.Company)
	req.Service = strings.TrimSpace(req.Service)
	req.Date = strings.TrimSpace(req.Date)
	req.TimeSlot = strings.TrimSpace(req.TimeSlot)
	req.Message = strings.TrimSpace(req.Message)
	return req
}

func (s *Service) Get(ctx context.Context, id string) (Appointment, error) {
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) (Result, error) {
	return s.transition(ctx, strings.TrimSpace(id), strings.TrimSpace(status))
}

// CancelByToken cancels the appointment that holds the cancellation token.
func (s *Service) CancelByToken(ctx context.Context, token string) (Result, error) {
	appt, err := s.repo.GetByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return Result{}, err
	}
	return s.transition(ctx, appt.ID, StatusCancelled)
}

func (s *Service) transition(ctx context.Context, id, to string) (Result, error) {
	if !IsKnownStatus(to) {
		return Result{}, ErrInvalidStatus
	}

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return Result{}, err
		}
		if !s.transitions.Allows(current.Status, to) {
			return Result{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
		}

		updated, err := s.repo.UpdateStatus(ctx, id, current.Status, to, s.now().In(s.location))
		if errors.Is(err, ErrStaleStatus) {
			continue
		}
		if err != nil {
			return Result{}, err
		}
		s.invalidate(ctx, updated.Date)

		res := Result{Appointment: updated}
		if to == StatusConfirmed || to == StatusCancelled {
			previous := current.Status
			res.Notification = s.dispatch(ctx, "status_changed", updated, func(ctx context.Context, n Notifier) error {
				return n.AppointmentStatusChanged(ctx, updated, previous)
			})
		}
		return res, nil
	}
	return Result{}, ErrStaleStatus
}

// Delete removes a terminal appointment. Pending and confirmed ones must be
// cancelled first so the cancellation stays on record.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !IsTerminal(appt.Status) {
		return ErrDeleteActive
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListByStatus(ctx context.Context, status string, limit int64) ([]Appointment, error) {
	status = strings.TrimSpace(status)
	if status != "" && !IsKnownStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListByStatus(ctx, status, limit)
}

// Upcoming lists pending and confirmed appointments from today onwards.
func (s *Service) Upcoming(ctx context.Context, limit int64) ([]Appointment, error) {
	return s.repo.ListUpcoming(ctx, schedule.Today(s.location, s.now()), limit)
}

// CountsByStatus reports a count for every status, including zeroes.
func (s *Service) CountsByStatus(ctx context.Context) (map[string]int, error) {
	stored, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(Statuses))
	for _, status := range Statuses {
		counts[status] = stored[status]
	}
	return counts, nil
}

// RunReminderSweep reminds every confirmed appointment dated the day after
// asOf that has not been reminded yet. Only the candidate query can fail the
// whole sweep; each appointment gets its own outcome.
func (s *Service) RunReminderSweep(ctx context.Context, asOf string) ([]ReminderOutcome, error) {
	asOf = strings.TrimSpace(asOf)
	if asOf == "" {
		asOf = schedule.Today(s.location, s.now())
	}
	target, err := schedule.AddDays(asOf, 1, s.location)
	if err != nil {
		return nil, err
	}

	candidates, err := s.repo.ListReminderCandidates(ctx, target)
	if err != nil {
		return nil, err
	}

	outcomes := make([]ReminderOutcome, 0, len(candidates))
	for _, appt := range candidates {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, s.remind(ctx, appt))
	}

	s.log.Info("reminders sweep: done",
		slog.String("as_of", asOf),
		slog.String("target_date", target),
		slog.Int("candidates", len(candidates)),
	)
	return outcomes, nil
}

func (s *Service) remind(ctx context.Context, appt Appointment) ReminderOutcome {
	out := ReminderOutcome{AppointmentID: appt.ID}
	if s.notifier == nil {
		out.Outcome = ReminderSkipped
		out.Error = "no notification sink configured"
		return out
	}

	if err := s.dispatch(ctx, "reminder", appt, func(ctx context.Context, n Notifier) error {
		return n.AppointmentReminder(ctx, appt)
	}); err != nil {
		out.Outcome = ReminderFailed
		out.Error = err.Error()
		return out
	}

	marked, err := s.repo.MarkReminderSent(ctx, appt.ID, s.now().In(s.location))
	switch {
	case err != nil:
		s.log.Error("reminders mark: database error",
			slog.String("appointment_id", appt.ID),
			slog.String("error", err.Error()),
		)
		out.Outcome = ReminderFailed
		out.Error = err.Error()
	case !marked:
		out.Outcome = ReminderSkipped
		out.Error = "already reminded or no longer confirmed"
	default:
		out.Outcome = ReminderSent
	}
	return out
}

// dispatch runs a best-effort notification. The returned error wraps
// ErrNotificationFailed and is informational only.
func (s *Service) dispatch(ctx context.Context, event string, appt Appointment, send func(context.Context, Notifier) error) error {
	if s.notifier == nil {
		return nil
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := send(notifyCtx, s.notifier); err != nil {
		s.log.Warn("appointments notify: send failed",
			slog.String("event", event),
			slog.String("appointment_id", appt.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %s: %v", ErrNotificationFailed, event, err)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, date string) {
	if err := s.slots.InvalidateDate(ctx, date); err != nil {
		s.log.Warn("appointments cache: invalidate failed",
			slog.String("date", date),
			slog.String("error", err.Error()),
		)
	}
}

func newCancellationToken() (string, error) {
	buf := make([]byte, cancellationTokenSz)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
