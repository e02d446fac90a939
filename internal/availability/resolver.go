package availability

import (
	"context"
	"strconv"
	"time"

	"agenda-backend/internal/cache"
	"agenda-backend/internal/schedule"
)

const cachePrefix = "availability:"

// Ledger reports the time slots already held on a date by non-terminal
// appointments. Implementations must read live storage.
type Ledger interface {
	HeldSlots(ctx context.Context, date string) ([]string, error)
}

type Resolver struct {
	repo     Repository
	ledger   Ledger
	cache    cache.Cache
	cacheTTL time.Duration
	location *time.Location
	now      func() time.Time
}

func NewResolver(repo Repository, ledger Ledger, c cache.Cache, cacheTTL time.Duration, location *time.Location) *Resolver {
	if c == nil {
		c = cache.NewNoop()
	}
	return &Resolver{
		repo:     repo,
		ledger:   ledger,
		cache:    c,
		cacheTTL: cacheTTL,
		location: location,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock, used by tests and by the reminder command.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

func (r *Resolver) Now() time.Time {
	return r.now().In(r.location)
}

func (r *Resolver) Location() *time.Location {
	return r.location
}

// Resolve computes the bookable start times of date from live storage.
// A duration of 0 steps every rule by its own slot duration.
func (r *Resolver) Resolve(ctx context.Context, date string, duration int) ([]string, error) {
	if duration < 0 {
		return nil, schedule.ErrInvalidDuration
	}
	day, err := schedule.ParseDate(date, r.location)
	if err != nil {
		return nil, err
	}
	now := r.now()
	past, err := schedule.IsDatePast(date, r.location, now)
	if err != nil {
		return nil, err
	}
	if past {
		return []string{}, nil
	}

	blocked, err := r.repo.IsDateBlocked(ctx, date)
	if err != nil {
		return nil, err
	}
	if blocked {
		return []string{}, nil
	}

	rules, err := r.repo.ActiveRulesForDay(ctx, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	ranges := make([]schedule.WeeklyRange, 0, len(rules))
	for _, rule := range rules {
		ranges = append(ranges, rule.weeklyRange())
	}

	candidates, err := schedule.GenerateSlots(ranges, date, duration, r.location, now)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	held, err := r.ledger.HeldSlots(ctx, date)
	if err != nil {
		return nil, err
	}
	reserved := make(map[string]bool, len(held))
	for _, s := range held {
		reserved[s] = true
	}
	return schedule.FilterReserved(candidates, reserved), nil
}

// Available is Resolve behind the ephemeral cache. Today's date is never
// cached because the same-day buffer moves with the clock.
func (r *Resolver) Available(ctx context.Context, date string, duration int) ([]string, bool, error) {
	cacheable := !schedule.IsToday(date, r.location, r.now())
	key := cacheKey(date, duration)
	if cacheable {
		if slots, ok := cache.GetJSON[[]string](ctx, r.cache, key); ok {
			return slots, true, nil
		}
	}

	slots, err := r.Resolve(ctx, date, duration)
	if err != nil {
		return nil, false, err
	}

	if cacheable {
		_ = cache.SetJSON(ctx, r.cache, key, slots, r.cacheTTL)
	}
	return slots, false, nil
}

// Next returns the first date within days of from that still has a free slot.
func (r *Resolver) Next(ctx context.Context, from string, duration, days int) (string, []string, error) {
	if days <= 0 {
		days = 30
	}
	for i := 0; i < days; i++ {
		date, err := schedule.AddDays(from, i, r.location)
		if err != nil {
			return "", nil, err
		}
		slots, _, err := r.Available(ctx, date, duration)
		if err != nil {
			return "", nil, err
		}
		if len(slots) > 0 {
			return date, slots, nil
		}
	}
	return "", nil, nil
}

func (r *Resolver) InvalidateDate(ctx context.Context, date string) error {
	return r.cache.DeletePrefix(ctx, cachePrefix+date+":")
}

func (r *Resolver) InvalidateAll(ctx context.Context) error {
	return r.cache.DeletePrefix(ctx, cachePrefix)
}

func cacheKey(date string, duration int) string {
	return cachePrefix + date + ":" + strconv.Itoa(duration)
}
