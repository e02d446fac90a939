package schedule

import (
	"reflect"
	"testing"
	"time"
)

func mustLoadLoc(t *testing.T) *time.Location {
	t.Helper()
	return time.FixedZone("WAT", 3600)
}

func mondayMorning() []WeeklyRange {
	return []WeeklyRange{{Weekday: time.Monday, Start: "09:00", End: "12:00", SlotMinutes: 30, Active: true}}
}

func TestGenerateSlotsMonday(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 1, 20, 8, 0, 0, 0, loc)
	slots, err := GenerateSlots(mondayMorning(), "2026-02-02", 30, loc, now)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
}

func TestGenerateSlotsOtherWeekdayEmpty(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 1, 20, 8, 0, 0, 0, loc)
	slots, err := GenerateSlots(mondayMorning(), "2026-02-03", 30, loc, now)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil slots, got %#v", slots)
	}
}

func TestGenerateSlotsInactiveRuleIgnored(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 1, 20, 8, 0, 0, 0, loc)
	ranges := mondayMorning()
	ranges[0].Active = false
	slots, err := GenerateSlots(ranges, "2026-02-02", 30, loc, now)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected 0 slots, got %v", slots)
	}
}

func TestGenerateSlotsNoPartialTail(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 1, 20, 8, 0, 0, 0, loc)
	ranges := []WeeklyRange{{Weekday: time.Monday, Start: "09:00", End: "10:00", SlotMinutes: 45, Active: true}}
	slots, err := GenerateSlots(ranges, "2026-02-02", 45, loc, now)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	if !reflect.DeepEqual(slots, []string{"09:00"}) {
		t.Fatalf("unexpected slots: %v", slots)
	}
	for _, s := range slots {
		start, _ := ParseClockToMinutes(s)
		if start+45 > 10*60 {
			t.Fatalf("slot %s overruns the window", s)
		}
	}
}

func TestGenerateSlotsOverlappingRulesDeduplicated(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 1, 20, 8, 0, 0, 0, loc)
	ranges := []WeeklyRange{
		{Weekday: time.Monday, Start: "10:00", End: "12:00", SlotMinutes: 30, Active: true},
		{Weekday: time.Monday, Start: "09:00", End: "11:00", SlotMinutes: 30, Active: true},
	}
	slots, err := GenerateSlots(ranges, "2026-02-02", 30, loc, now)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
}

func TestGenerateSlotsDefaultsToRuleDuration(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 1, 20, 8, 0, 0, 0, loc)
	ranges := []WeeklyRange{{Weekday: time.Monday, Start: "14:00", End: "17:00", SlotMinutes: 45, Active: true}}
	slots, err := GenerateSlots(ranges, "2026-02-02", 0, loc, now)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	want := []string{"14:00", "14:45", "15:30", "16:15"}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
}

func TestGenerateSlotsSameDayBuffer(t *testing.T) {
	loc := mustLoadLoc(t)
	cases := []struct {
		name string
		now  time.Time
		want []string
	}{
		{"early morning", time.Date(2026, 2, 2, 8, 0, 0, 0, loc), []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}},
		{"mid morning", time.Date(2026, 2, 2, 9, 5, 0, 0, loc), []string{"10:00", "10:30", "11:00", "11:30"}},
		{"threshold is exclusive", time.Date(2026, 2, 2, 9, 30, 0, 0, loc), []string{"10:30", "11:00", "11:30"}},
		{"past the window", time.Date(2026, 2, 2, 11, 50, 0, 0, loc), []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slots, err := GenerateSlots(mondayMorning(), "2026-02-02", 30, loc, tc.now)
			if err != nil {
				t.Fatalf("GenerateSlots error: %v", err)
			}
			if !reflect.DeepEqual(slots, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, slots)
			}
		})
	}
}

func TestGenerateSlotsInvalidInput(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 1, 20, 8, 0, 0, 0, loc)
	if _, err := GenerateSlots(mondayMorning(), "02/02/2026", 30, loc, now); err != ErrInvalidDate {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	ranges := []WeeklyRange{{Weekday: time.Monday, Start: "09:00", End: "12:00", Active: true}}
	if _, err := GenerateSlots(ranges, "2026-02-02", 0, loc, now); err != ErrInvalidDuration {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestIsDatePast(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 2, 4, 10, 0, 0, 0, loc)
	past, err := IsDatePast("2026-02-03", loc, now)
	if err != nil {
		t.Fatalf("IsDatePast error: %v", err)
	}
	if !past {
		t.Fatalf("expected date to be past")
	}

	past, err = IsDatePast("2026-02-04", loc, now)
	if err != nil {
		t.Fatalf("IsDatePast error: %v", err)
	}
	if past {
		t.Fatalf("expected date to be not past")
	}
}

func TestIsToday(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 2, 4, 23, 30, 0, 0, loc)
	if !IsToday("2026-02-04", loc, now) {
		t.Fatalf("expected today")
	}
	if IsToday("2026-02-05", loc, now) {
		t.Fatalf("expected tomorrow not to be today")
	}
}

func TestAddDays(t *testing.T) {
	loc := mustLoadLoc(t)
	next, err := AddDays("2026-02-28", 1, loc)
	if err != nil {
		t.Fatalf("AddDays error: %v", err)
	}
	if next != "2026-03-01" {
		t.Fatalf("expected 2026-03-01, got %s", next)
	}
}

func TestValidateRange(t *testing.T) {
	if err := ValidateRange("09:00", "12:00"); err != nil {
		t.Fatalf("expected valid range, got %v", err)
	}
	if err := ValidateRange("12:00", "12:00"); err != ErrInvalidRange {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if err := ValidateRange("9h", "12:00"); err != ErrInvalidTime {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
}

func TestFilterReserved(t *testing.T) {
	slots := []string{"09:00", "09:45", "10:30"}
	reserved := map[string]bool{"09:45": true}
	filtered := FilterReserved(slots, reserved)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(filtered))
	}
	if filtered[1] != "10:30" {
		t.Fatalf("unexpected slots: %v", filtered)
	}
}
