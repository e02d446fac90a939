package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// SameDayBuffer is the minimum lead time for a booking made on the current day.
const SameDayBuffer = 30 * time.Minute

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidDate     = errors.New("invalid date format")
	ErrInvalidTime     = errors.New("invalid time format")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidRange    = errors.New("start time must be before end time")
)

// WeeklyRange is one recurring availability window of a weekday.
type WeeklyRange struct {
	Weekday     time.Weekday
	Start       string
	End         string
	SlotMinutes int
	Active      bool
}

func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation(DateLayout, dateStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

func ParseDateTime(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	if _, err := time.Parse(ClockLayout, timeStr); err != nil {
		return time.Time{}, ErrInvalidTime
	}
	if _, err := ParseDate(dateStr, loc); err != nil {
		return time.Time{}, err
	}

	parsed, err := time.ParseInLocation(DateLayout+" "+ClockLayout, dateStr+" "+timeStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidTime
	}
	return parsed, nil
}

func ParseClockToMinutes(timeStr string) (int, error) {
	tm, err := time.Parse(ClockLayout, timeStr)
	if err != nil {
		return 0, ErrInvalidTime
	}
	return tm.Hour()*60 + tm.Minute(), nil
}

func MinutesToClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ValidateRange checks that start and end are wall-clock times with start < end.
func ValidateRange(start, end string) error {
	startMin, err := ParseClockToMinutes(start)
	if err != nil {
		return err
	}
	endMin, err := ParseClockToMinutes(end)
	if err != nil {
		return err
	}
	if startMin >= endMin {
		return ErrInvalidRange
	}
	return nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func IsDatePast(dateStr string, loc *time.Location, now time.Time) (bool, error) {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return false, err
	}
	return date.Before(startOfDay(now, loc)), nil
}

func IsToday(dateStr string, loc *time.Location, now time.Time) bool {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return false
	}
	return date.Equal(startOfDay(now, loc))
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location, now time.Time) string {
	return now.In(loc).Format(DateLayout)
}

// AddDays shifts a calendar date by n days.
func AddDays(dateStr string, n int, loc *time.Location) (string, error) {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return "", err
	}
	return date.AddDate(0, 0, n).Format(DateLayout), nil
}

// GenerateSlots returns the ordered, de-duplicated start times offered on
// dateStr by the active ranges of that weekday. A duration <= 0 makes every
// range step by its own SlotMinutes. On the current day only starts strictly
// after now+SameDayBuffer are kept.
func GenerateSlots(ranges []WeeklyRange, dateStr string, duration int, loc *time.Location, now time.Time) ([]string, error) {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return nil, err
	}

	set := make(map[int]struct{})
	for _, wr := range ranges {
		if !wr.Active || wr.Weekday != date.Weekday() {
			continue
		}
		step := duration
		if step <= 0 {
			step = wr.SlotMinutes
		}
		if step <= 0 {
			return nil, ErrInvalidDuration
		}
		startMin, err := ParseClockToMinutes(wr.Start)
		if err != nil {
			return nil, err
		}
		endMin, err := ParseClockToMinutes(wr.End)
		if err != nil {
			return nil, err
		}

		for cursor := startMin; cursor+step <= endMin; cursor += step {
			set[cursor] = struct{}{}
		}
	}

	starts := make([]int, 0, len(set))
	for m := range set {
		starts = append(starts, m)
	}
	sort.Ints(starts)

	var threshold time.Time
	today := date.Equal(startOfDay(now, loc))
	if today {
		threshold = now.In(loc).Add(SameDayBuffer)
	}

	slots := make([]string, 0, len(starts))
	for _, m := range starts {
		if today {
			slotAt := date.Add(time.Duration(m) * time.Minute)
			if !slotAt.After(threshold) {
				continue
			}
		}
		slots = append(slots, MinutesToClock(m))
	}
	return slots, nil
}

func FilterReserved(slots []string, reserved map[string]bool) []string {
	filtered := make([]string, 0, len(slots))
	for _, s := range slots {
		if !reserved[s] {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func Contains(slots []string, timeStr string) bool {
	for _, s := range slots {
		if s == timeStr {
			return true
		}
	}
	return false
}
