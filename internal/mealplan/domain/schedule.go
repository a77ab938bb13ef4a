package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Schedule describes when a plan is delivered. All dates are civil dates
// stored as UTC midnight.
type Schedule struct {
	Frequency     Frequency      `json:"frequency"`
	DaysOfWeek    []time.Weekday `json:"days_of_week,omitempty"`
	SpecificDates []time.Time    `json:"specific_dates,omitempty"`
	StartDate     time.Time      `json:"start_date"`
	EndDate       *time.Time     `json:"end_date,omitempty"`
	DeliveryTime  string         `json:"delivery_time"`
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Normalized returns a copy with dates truncated, weekdays and specific dates
// sorted and deduplicated. The receiver is not modified.
func (s Schedule) Normalized() Schedule {
	out := Schedule{
		Frequency:    Frequency(strings.ToLower(strings.TrimSpace(string(s.Frequency)))),
		StartDate:    DateOf(s.StartDate),
		DeliveryTime: strings.TrimSpace(s.DeliveryTime),
	}
	if s.EndDate != nil {
		end := DateOf(*s.EndDate)
		out.EndDate = &end
	}

	seenDays := map[time.Weekday]struct{}{}
	for _, day := range s.DaysOfWeek {
		if _, ok := seenDays[day]; ok {
			continue
		}
		seenDays[day] = struct{}{}
		out.DaysOfWeek = append(out.DaysOfWeek, day)
	}
	sort.Slice(out.DaysOfWeek, func(i, j int) bool { return out.DaysOfWeek[i] < out.DaysOfWeek[j] })

	seenDates := map[time.Time]struct{}{}
	for _, d := range s.SpecificDates {
		d = DateOf(d)
		if _, ok := seenDates[d]; ok {
			continue
		}
		seenDates[d] = struct{}{}
		out.SpecificDates = append(out.SpecificDates, d)
	}
	sort.Slice(out.SpecificDates, func(i, j int) bool { return out.SpecificDates[i].Before(out.SpecificDates[j]) })

	return out
}

// Validate checks the structural rules of a normalized schedule.
func (s Schedule) Validate() error {
	if s.StartDate.IsZero() {
		return invalidSchedule("start date is required")
	}
	if s.EndDate != nil && s.EndDate.Before(s.StartDate) {
		return invalidSchedule("end date is before start date")
	}
	if _, _, err := ParseDeliveryTime(s.DeliveryTime); err != nil {
		return err
	}

	switch s.Frequency {
	case FrequencyDaily, FrequencyMonthly:
	case FrequencyWeekly, FrequencyBiweekly:
		if len(s.DaysOfWeek) == 0 {
			return invalidSchedule("at least one weekday is required")
		}
		for _, day := range s.DaysOfWeek {
			if day < time.Sunday || day > time.Saturday {
				return invalidSchedule("weekday out of range")
			}
		}
	case FrequencyCustom:
		if len(s.SpecificDates) == 0 {
			return invalidSchedule("at least one date is required")
		}
	default:
		return invalidSchedule("unknown frequency " + strconv.Quote(string(s.Frequency)))
	}
	return nil
}

// ParseDeliveryTime parses a 24-hour "HH:MM" wall-clock time.
func ParseDeliveryTime(value string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, invalidSchedule("delivery time must be HH:MM")
	}
	hour, errH := strconv.Atoi(parts[0])
	minute, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, invalidSchedule("delivery time must be HH:MM")
	}
	return hour, minute, nil
}

// DeliveryAt combines a due date with the schedule's delivery time.
func (s Schedule) DeliveryAt(date time.Time) time.Time {
	hour, minute, err := ParseDeliveryTime(s.DeliveryTime)
	if err != nil {
		return DateOf(date)
	}
	return DateOf(date).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func invalidSchedule(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSchedule, reason)
}
