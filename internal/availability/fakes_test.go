package availability

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

var testLoc = time.FixedZone("WAT", 3600)

type memRepo struct {
	mu      sync.Mutex
	rules   map[string]Rule
	blocked map[string]BlockedDate
	reads   int
}

func newMemRepo(rules ...Rule) *memRepo {
	r := &memRepo{rules: make(map[string]Rule), blocked: make(map[string]BlockedDate)}
	for _, rule := range rules {
		r.rules[rule.ID] = rule
	}
	return r
}

func (r *memRepo) ListRules(ctx context.Context) ([]Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (r *memRepo) ActiveRulesForDay(ctx context.Context, dayOfWeek int) ([]Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	out := make([]Rule, 0)
	for _, rule := range r.rules {
		if rule.DayOfWeek == dayOfWeek && rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *memRepo) GetRule(ctx context.Context, id string) (Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return Rule{}, ErrRuleNotFound
	}
	return rule, nil
}

func (r *memRepo) CreateRule(ctx context.Context, rule Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = rule
	return nil
}

func (r *memRepo) ReplaceRule(ctx context.Context, rule Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[rule.ID]; !ok {
		return ErrRuleNotFound
	}
	r.rules[rule.ID] = rule
	return nil
}

func (r *memRepo) DeleteRule(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return ErrRuleNotFound
	}
	delete(r.rules, id)
	return nil
}

func (r *memRepo) IsDateBlocked(ctx context.Context, date string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.blocked {
		if b.Date == date {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) ListBlockedDates(ctx context.Context, from string) ([]BlockedDate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]BlockedDate, 0)
	for _, b := range r.blocked {
		if from == "" || b.Date >= from {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *memRepo) CreateBlockedDate(ctx context.Context, blocked BlockedDate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.blocked {
		if b.Date == blocked.Date {
			return ErrDateAlreadyBlocked
		}
	}
	r.blocked[blocked.ID] = blocked
	return nil
}

func (r *memRepo) DeleteBlockedDate(ctx context.Context, id string) (BlockedDate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocked[id]
	if !ok {
		return BlockedDate{}, ErrBlockedDateNotFound
	}
	delete(r.blocked, id)
	return b, nil
}

type staticLedger map[string][]string

func (l staticLedger) HeldSlots(ctx context.Context, date string) ([]string, error) {
	return l[date], nil
}

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *memCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	return nil
}

func (c *memCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func mondayRule() Rule {
	return Rule{
		ID:                  "rule-mon",
		DayOfWeek:           int(time.Monday),
		StartTime:           "09:00",
		EndTime:             "12:00",
		SlotDurationMinutes: 30,
		IsActive:            true,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
