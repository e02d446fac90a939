package appointments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"agenda-backend/internal/validation"
)

var testLoc = time.FixedZone("WAT", 3600)

// 2026-02-02 is a Monday.
const monday = "2026-02-02"

var mondaySlots = []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}

// memRepo enforces the held-slot uniqueness the real stores get from their
// partial unique indexes.
type memRepo struct {
	mu    sync.Mutex
	items map[string]Appointment
}

func newMemRepo(items ...Appointment) *memRepo {
	r := &memRepo{items: make(map[string]Appointment)}
	for _, a := range items {
		a.SlotHeld = holdsSlot(a.Status)
		r.items[a.ID] = a
	}
	return r
}

func (r *memRepo) slotTakenLocked(exceptID, date, slot string) bool {
	for id, a := range r.items {
		if id != exceptID && a.SlotHeld && a.Date == date && a.TimeSlot == slot {
			return true
		}
	}
	return false
}

func (r *memRepo) Create(ctx context.Context, appt Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt.SlotHeld = holdsSlot(appt.Status)
	if appt.SlotHeld && r.slotTakenLocked("", appt.Date, appt.TimeSlot) {
		return ErrSlotUnavailable
	}
	for _, a := range r.items {
		if a.CancellationToken == appt.CancellationToken {
			return errors.New("duplicate token")
		}
	}
	r.items[appt.ID] = appt
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id string) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return a, nil
}

func (r *memRepo) GetByToken(ctx context.Context, token string) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.items {
		if a.CancellationToken == token {
			return a, nil
		}
	}
	return Appointment{}, ErrNotFound
}

func (r *memRepo) UpdateStatus(ctx context.Context, id, from, to string, at time.Time) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	if a.Status != from {
		return Appointment{}, ErrStaleStatus
	}
	if holdsSlot(to) && !a.SlotHeld && r.slotTakenLocked(id, a.Date, a.TimeSlot) {
		return Appointment{}, ErrSlotUnavailable
	}
	a.Status = to
	a.SlotHeld = holdsSlot(to)
	a.UpdatedAt = at
	if to == StatusCancelled {
		a.ReminderSent = false
	}
	r.items[id] = a
	return a, nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memRepo) HeldSlots(ctx context.Context, date string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0)
	for _, a := range r.items {
		if a.Date == date && holdsSlot(a.Status) {
			out = append(out, a.TimeSlot)
		}
	}
	return out, nil
}

func (r *memRepo) sorted(keep func(Appointment) bool, limit int64) []Appointment {
	out := make([]Appointment, 0)
	for _, a := range r.items {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].TimeSlot < out[j].TimeSlot
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}

func (r *memRepo) ListByStatus(ctx context.Context, status string, limit int64) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(a Appointment) bool { return status == "" || a.Status == status }, limit), nil
}

func (r *memRepo) ListUpcoming(ctx context.Context, fromDate string, limit int64) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(a Appointment) bool { return a.Date >= fromDate && holdsSlot(a.Status) }, limit), nil
}

func (r *memRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, a := range r.items {
		counts[a.Status]++
	}
	return counts, nil
}

func (r *memRepo) ListReminderCandidates(ctx context.Context, date string) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(a Appointment) bool {
		return a.Date == date && a.Status == StatusConfirmed && !a.ReminderSent
	}, 0), nil
}

func (r *memRepo) MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok || a.Status != StatusConfirmed || a.ReminderSent {
		return false, nil
	}
	a.ReminderSent = true
	a.UpdatedAt = at
	r.items[id] = a
	return true, nil
}

func (r *memRepo) get(id string) Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id]
}

// liveSlots offers fixed candidates per date minus the repository's held slots.
type liveSlots struct {
	repo        *memRepo
	candidates  map[string][]string
	mu          sync.Mutex
	invalidated []string
}

func (s *liveSlots) Resolve(ctx context.Context, date string, duration int) ([]string, error) {
	held, _ := s.repo.HeldSlots(ctx, date)
	taken := make(map[string]bool, len(held))
	for _, h := range held {
		taken[h] = true
	}
	out := make([]string, 0)
	for _, c := range s.candidates[date] {
		if !taken[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *liveSlots) InvalidateDate(ctx context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, date)
	return nil
}

type recordingNotifier struct {
	mu            sync.Mutex
	created       []string
	statusChanged []string
	reminded      []string
	failCreated   bool
	failStatus    bool
	failReminder  map[string]bool
}

func (n *recordingNotifier) AppointmentCreated(ctx context.Context, appt Appointment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failCreated {
		return errors.New("smtp down")
	}
	n.created = append(n.created, appt.ID)
	return nil
}

func (n *recordingNotifier) AppointmentStatusChanged(ctx context.Context, appt Appointment, previous string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failStatus {
		return errors.New("smtp down")
	}
	n.statusChanged = append(n.statusChanged, previous+"->"+appt.Status)
	return nil
}

func (n *recordingNotifier) AppointmentReminder(ctx context.Context, appt Appointment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failReminder[appt.ID] {
		return errors.New("mailbox full")
	}
	n.reminded = append(n.reminded, appt.ID)
	return nil
}

type fixture struct {
	repo     *memRepo
	slots    *liveSlots
	notifier *recordingNotifier
	service  *Service
}

func newFixture(opts ...Option) *fixture {
	return newFixtureWith(newMemRepo(), opts...)
}

func newFixtureWith(repo *memRepo, opts ...Option) *fixture {
	slots := &liveSlots{repo: repo, candidates: map[string][]string{monday: mondaySlots}}
	notifier := &recordingNotifier{failReminder: map[string]bool{}}
	now := time.Date(2026, 1, 20, 8, 0, 0, 0, testLoc)
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	svc := NewService(repo, slots, notifier, validation.New(), discardLogger(), testLoc, opts...)
	return &fixture{repo: repo, slots: slots, notifier: notifier, service: svc}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validRequest() CreateRequest {
	return CreateRequest{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Phone:    "+243 810 000 000",
		Service:  "consultation",
		Date:     monday,
		TimeSlot: "10:00",
	}
}

func seeded(id, date, slot, status string) Appointment {
	return Appointment{
		ID:                id,
		Name:              "Seed " + id,
		Email:             id + "@example.com",
		Service:           "consultation",
		Date:              date,
		TimeSlot:          slot,
		Status:            status,
		CancellationToken: "token-" + id,
	}
}
