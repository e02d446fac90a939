package availability

import (
	"time"

	"agenda-backend/internal/schedule"
)

// Rule is a recurring weekly availability window (WeeklyTimeSlotRule).
type Rule struct {
	ID                  string    `bson:"_id,omitempty" json:"id"`
	DayOfWeek           int       `bson:"dayOfWeek" json:"dayOfWeek"`
	StartTime           string    `bson:"startTime" json:"startTime"`
	EndTime             string    `bson:"endTime" json:"endTime"`
	SlotDurationMinutes int       `bson:"slotDurationMinutes" json:"slotDurationMinutes"`
	IsActive            bool      `bson:"isActive" json:"isActive"`
	CreatedAt           time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (r Rule) weeklyRange() schedule.WeeklyRange {
	return schedule.WeeklyRange{
		Weekday:     time.Weekday(r.DayOfWeek),
		Start:       r.StartTime,
		End:         r.EndTime,
		SlotMinutes: r.SlotDurationMinutes,
		Active:      r.IsActive,
	}
}

type BlockedDate struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Date      string    `bson:"date" json:"date"`
	Reason    string    `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

type CreateRuleRequest struct {
	DayOfWeek           *int   `json:"dayOfWeek" validate:"required,gte=0,lte=6"`
	StartTime           string `json:"startTime" validate:"required,clock"`
	EndTime             string `json:"endTime" validate:"required,clock"`
	SlotDurationMinutes int    `json:"slotDurationMinutes" validate:"required,gt=0,lte=480"`
	IsActive            *bool  `json:"isActive"`
}

// RulePatch carries the fields of a partial rule update; nil means unchanged.
type RulePatch struct {
	DayOfWeek           *int    `json:"dayOfWeek" validate:"omitempty,gte=0,lte=6"`
	StartTime           *string `json:"startTime" validate:"omitempty,clock"`
	EndTime             *string `json:"endTime" validate:"omitempty,clock"`
	SlotDurationMinutes *int    `json:"slotDurationMinutes" validate:"omitempty,gt=0,lte=480"`
	IsActive            *bool   `json:"isActive"`
}

type BlockDateRequest struct {
	Date   string `json:"date" validate:"required,date"`
	Reason string `json:"reason" validate:"omitempty,max=280"`
}
