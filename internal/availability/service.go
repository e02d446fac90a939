package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agenda-backend/internal/schedule"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrRuleNotFound        = errors.New("rule not found")
	ErrBlockedDateNotFound = errors.New("blocked date not found")
	ErrDateAlreadyBlocked  = errors.New("date already blocked")
	ErrInvalidRule         = errors.New("invalid rule")
)

// Service applies administrative changes to the availability store and
// drops the cached availability those changes affect.
type Service struct {
	repo     Repository
	resolver *Resolver
	location *time.Location
}

func NewService(repo Repository, resolver *Resolver, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		location: location,
	}
}

func validateRule(rule Rule) error {
	if rule.DayOfWeek < 0 || rule.DayOfWeek > 6 {
		return fmt.Errorf("%w: dayOfWeek must be between 0 and 6", ErrInvalidRule)
	}
	if rule.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slotDurationMinutes must be positive", ErrInvalidRule)
	}
	if err := schedule.ValidateRange(rule.StartTime, rule.EndTime); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

func (s *Service) ListRules(ctx context.Context) ([]Rule, error) {
	return s.repo.ListRules(ctx)
}

func (s *Service) CreateRule(ctx context.Context, req CreateRuleRequest) (Rule, error) {
	now := time.Now().In(s.location)
	rule := Rule{
		ID:                  primitive.NewObjectID().Hex(),
		StartTime:           strings.TrimSpace(req.StartTime),
		EndTime:             strings.TrimSpace(req.EndTime),
		SlotDurationMinutes: req.SlotDurationMinutes,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if req.DayOfWeek != nil {
		rule.DayOfWeek = *req.DayOfWeek
	} else {
		rule.DayOfWeek = -1
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if err := validateRule(rule); err != nil {
		return Rule{}, err
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return Rule{}, err
	}
	s.invalidateAll(ctx)
	return rule, nil
}

func (s *Service) UpdateRule(ctx context.Context, id string, patch RulePatch) (Rule, error) {
	rule, err := s.repo.GetRule(ctx, strings.TrimSpace(id))
	if err != nil {
		return Rule{}, err
	}

	if patch.DayOfWeek != nil {
		rule.DayOfWeek = *patch.DayOfWeek
	}
	if patch.StartTime != nil {
		rule.StartTime = strings.TrimSpace(*patch.StartTime)
	}
	if patch.EndTime != nil {
		rule.EndTime = strings.TrimSpace(*patch.EndTime)
	}
	if patch.SlotDurationMinutes != nil {
		rule.SlotDurationMinutes = *patch.SlotDurationMinutes
	}
	if patch.IsActive != nil {
		rule.IsActive = *patch.IsActive
	}
	if err := validateRule(rule); err != nil {
		return Rule{}, err
	}
	rule.UpdatedAt = time.Now().In(s.location)

	if err := s.repo.ReplaceRule(ctx, rule); err != nil {
		return Rule{}, err
	}
	s.invalidateAll(ctx)
	return rule, nil
}

func (s *Service) DeleteRule(ctx context.Context, id string) error {
	if err := s.repo.DeleteRule(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.invalidateAll(ctx)
	return nil
}

func (s *Service) ListBlockedDates(ctx context.Context, from string) ([]BlockedDate, error) {
	return s.repo.ListBlockedDates(ctx, strings.TrimSpace(from))
}

func (s *Service) AddBlockedDate(ctx context.Context, req BlockDateRequest) (BlockedDate, error) {
	date, err := schedule.ParseDate(strings.TrimSpace(req.Date), s.location)
	if err != nil {
		return BlockedDate{}, err
	}

	blocked := BlockedDate{
		ID:        primitive.NewObjectID().Hex(),
		Date:      date.Format(schedule.DateLayout),
		Reason:    strings.TrimSpace(req.Reason),
		CreatedAt: time.Now().In(s.location),
	}
	if err := s.repo.CreateBlockedDate(ctx, blocked); err != nil {
		return BlockedDate{}, err
	}
	if s.resolver != nil {
		_ = s.resolver.InvalidateDate(ctx, blocked.Date)
	}
	return blocked, nil
}

func (s *Service) RemoveBlockedDate(ctx context.Context, id string) error {
	removed, err := s.repo.DeleteBlockedDate(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if s.resolver != nil {
		_ = s.resolver.InvalidateDate(ctx, removed.Date)
	}
	return nil
}

func (s *Service) invalidateAll(ctx context.Context) {
	if s.resolver != nil {
		_ = s.resolver.InvalidateAll(ctx)
	}
}
