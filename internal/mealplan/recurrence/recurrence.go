// Package recurrence computes meal plan due dates.
//
// Every function is pure: schedules are read, never modified, and all
// arithmetic happens on UTC calendar dates. Next always returns a date
// strictly after asOf, so repeated calls advance monotonically.
package recurrence

import (
	"fmt"
	"time"

	"github.com/smallbiznis/mealplan/internal/mealplan/domain"
)

const week = 7 * 24 * time.Hour

// Next returns the first due date after asOf, or false when the schedule
// has no further occurrence.
func Next(schedule domain.Schedule, asOf time.Time) (time.Time, bool) {
	asOf = domain.DateOf(asOf)
	start := domain.DateOf(schedule.StartDate)

	var candidate time.Time
	switch schedule.Frequency {
	case domain.FrequencyDaily:
		candidate = asOf.AddDate(0, 0, 1)

	case domain.FrequencyWeekly:
		next, ok := nextWeekday(schedule.DaysOfWeek, asOf)
		if !ok {
			return time.Time{}, false
		}
		candidate = next

	case domain.FrequencyBiweekly:
		next, ok := nextWeekday(schedule.DaysOfWeek, asOf)
		if !ok {
			return time.Time{}, false
		}
		ref := asOf
		if ref.Before(start) {
			ref = start
		}
		if weeks := int64(ref.Sub(start) / week); weeks%2 == 1 {
			next = next.AddDate(0, 0, 7)
		}
		candidate = next

	case domain.FrequencyMonthly:
		candidate = nextMonthly(start.Day(), asOf)

	case domain.FrequencyCustom:
		next, ok := nextSpecificDate(schedule.SpecificDates, asOf)
		if !ok {
			return time.Time{}, false
		}
		candidate = next

	default:
		return time.Time{}, false
	}

	if schedule.EndDate != nil && candidate.After(domain.DateOf(*schedule.EndDate)) {
		return time.Time{}, false
	}
	return candidate, true
}

// First returns the first due date for a plan created, rescheduled or resumed
// on today. A start date in the future is itself eligible, and so is a custom
// date equal to today.
func First(schedule domain.Schedule, today time.Time) (time.Time, bool) {
	anchor := domain.DateOf(today)
	if schedule.Frequency == domain.FrequencyCustom {
		anchor = anchor.AddDate(0, 0, -1)
	}
	if dayBeforeStart := domain.DateOf(schedule.StartDate).AddDate(0, 0, -1); dayBeforeStart.After(anchor) {
		anchor = dayBeforeStart
	}
	return Next(schedule, anchor)
}

// Validate checks the schedule's structure and that it still has an
// occurrence on or after today.
func Validate(schedule domain.Schedule, today time.Time) error {
	normalized := schedule.Normalized()
	if err := normalized.Validate(); err != nil {
		return err
	}
	if _, ok := First(normalized, today); !ok {
		return fmt.Errorf("%w: %w", domain.ErrInvalidSchedule, domain.ErrScheduleExhausted)
	}
	return nil
}

func nextWeekday(days []time.Weekday, asOf time.Time) (time.Time, bool) {
	if len(days) == 0 {
		return time.Time{}, false
	}
	current := asOf.Weekday()
	best := -1
	for _, day := range days {
		if day < time.Sunday || day > time.Saturday {
			continue
		}
		delta := int(day) - int(current)
		if delta <= 0 {
			delta += 7
		}
		if best == -1 || delta < best {
			best = delta
		}
	}
	if best == -1 {
		return time.Time{}, false
	}
	return asOf.AddDate(0, 0, best), true
}

func nextMonthly(anchorDay int, asOf time.Time) time.Time {
	year, month := asOf.Year(), asOf.Month()
	if asOf.Day() >= anchorDay {
		month++
	}
	candidate := clampedDate(year, month, anchorDay)
	if !candidate.After(asOf) {
		candidate = clampedDate(year, month+1, anchorDay)
	}
	return candidate
}

// clampedDate builds year-month-day, pulling day back to the month's last day.
func clampedDate(year int, month time.Month, day int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func nextSpecificDate(dates []time.Time, asOf time.Time) (time.Time, bool) {
	var best time.Time
	found := false
	for _, d := range dates {
		d = domain.DateOf(d)
		if !d.After(asOf) {
			continue
		}
		if !found || d.Before(best) {
			best = d
			found = true
		}
	}
	return best, found
}
