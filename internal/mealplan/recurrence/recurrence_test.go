package recurrence

import (
	"math/rand"
	"testing"
	"time"

	"github.com/smallbiznis/mealplan/internal/mealplan/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeeklyMondayThursday(t *testing.T) {
	schedule := domain.Schedule{
		Frequency:    domain.FrequencyWeekly,
		DaysOfWeek:   []time.Weekday{time.Monday, time.Thursday},
		StartDate:    date(2024, 1, 1),
		DeliveryTime: "12:00",
	}

	next, ok := Next(schedule, date(2024, 1, 3))
	require.True(t, ok)
	assert.Equal(t, date(2024, 1, 4), next)

	next, ok = Next(schedule, date(2024, 1, 4))
	require.True(t, ok)
	assert.Equal(t, date(2024, 1, 8), next, "wraps to next Monday")
}

func TestDaily(t *testing.T) {
	schedule := domain.Schedule{Frequency: domain.FrequencyDaily, StartDate: date(2024, 1, 1)}
	next, ok := Next(schedule, time.Date(2024, 2, 28, 23, 30, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, date(2024, 2, 29), next)
}

func TestBiweeklyAlternates(t *testing.T) {
	schedule := domain.Schedule{
		Frequency:  domain.FrequencyBiweekly,
		DaysOfWeek: []time.Weekday{time.Monday},
		StartDate:  date(2024, 1, 1),
	}

	due := date(2024, 1, 8)
	for i := 0; i < 10; i++ {
		next, ok := Next(schedule, due)
		require.True(t, ok)
		assert.Equal(t, 14, int(next.Sub(due).Hours()/24), "advance from %s", due.Format("2006-01-02"))
		assert.Equal(t, time.Monday, next.Weekday())
		due = next
	}
}

func TestBiweeklyBeforeStartDoesNotGoNegative(t *testing.T) {
	schedule := domain.Schedule{
		Frequency:  domain.FrequencyBiweekly,
		DaysOfWeek: []time.Weekday{time.Wednesday},
		StartDate:  date(2024, 3, 1),
	}
	next, ok := Next(schedule, date(2024, 2, 1))
	require.True(t, ok)
	assert.Equal(t, date(2024, 2, 7), next)
}

func TestMonthlyClampsToMonthEnd(t *testing.T) {
	schedule := domain.Schedule{Frequency: domain.FrequencyMonthly, StartDate: date(2023, 1, 31)}

	cases := []struct {
		asOf time.Time
		want time.Time
	}{
		{asOf: date(2023, 1, 31), want: date(2023, 2, 28)},
		{asOf: date(2023, 2, 28), want: date(2023, 3, 31)},
		{asOf: date(2024, 1, 31), want: date(2024, 2, 29)},
		{asOf: date(2024, 4, 10), want: date(2024, 4, 30)},
		{asOf: date(2024, 12, 31), want: date(2025, 1, 31)},
	}
	for _, tc := range cases {
		got, ok := Next(schedule, tc.asOf)
		require.True(t, ok)
		assert.Equal(t, tc.want, got, "asOf %s", tc.asOf.Format("2006-01-02"))
	}
}

func TestMonthlySameMonthWhenBeforeAnchor(t *testing.T) {
	schedule := domain.Schedule{Frequency: domain.FrequencyMonthly, StartDate: date(2024, 1, 15)}
	got, ok := Next(schedule, date(2024, 3, 10))
	require.True(t, ok)
	assert.Equal(t, date(2024, 3, 15), got)

	got, ok = Next(schedule, date(2024, 3, 15))
	require.True(t, ok)
	assert.Equal(t, date(2024, 4, 15), got)
}

func TestCustomExhausts(t *testing.T) {
	schedule := domain.Schedule{
		Frequency:     domain.FrequencyCustom,
		SpecificDates: []time.Time{date(2024, 1, 20), date(2024, 1, 5), date(2024, 1, 10)},
		StartDate:     date(2024, 1, 1),
	}

	next, ok := Next(schedule, date(2024, 1, 5))
	require.True(t, ok)
	assert.Equal(t, date(2024, 1, 10), next)

	next, ok = Next(schedule, date(2024, 1, 1))
	require.True(t, ok)
	assert.Equal(t, date(2024, 1, 5), next)

	_, ok = Next(schedule, date(2024, 1, 20))
	assert.False(t, ok)
}

func TestEndDateStopsSchedule(t *testing.T) {
	end := date(2024, 1, 10)
	schedule := domain.Schedule{Frequency: domain.FrequencyDaily, StartDate: date(2024, 1, 1), EndDate: &end}

	next, ok := Next(schedule, date(2024, 1, 9))
	require.True(t, ok)
	assert.Equal(t, end, next)

	_, ok = Next(schedule, date(2024, 1, 10))
	assert.False(t, ok)
}

func TestFirstHonoursFutureStart(t *testing.T) {
	schedule := domain.Schedule{Frequency: domain.FrequencyDaily, StartDate: date(2024, 2, 1)}
	first, ok := First(schedule, date(2024, 1, 20))
	require.True(t, ok)
	assert.Equal(t, date(2024, 2, 1), first)

	first, ok = First(schedule, date(2024, 3, 1))
	require.True(t, ok)
	assert.Equal(t, date(2024, 3, 2), first)
}

func TestFirstIncludesCustomDateToday(t *testing.T) {
	schedule := domain.Schedule{
		Frequency:     domain.FrequencyCustom,
		SpecificDates: []time.Time{date(2024, 1, 3), date(2024, 1, 9)},
		StartDate:     date(2024, 1, 1),
	}
	first, ok := First(schedule, time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, date(2024, 1, 3), first)

	first, ok = First(schedule, date(2024, 1, 4))
	require.True(t, ok)
	assert.Equal(t, date(2024, 1, 9), first)

	// weekly cadences still start after today
	weekly := domain.Schedule{Frequency: domain.FrequencyWeekly, DaysOfWeek: []time.Weekday{time.Wednesday}, StartDate: date(2024, 1, 1)}
	first, ok = First(weekly, date(2024, 1, 3))
	require.True(t, ok)
	assert.Equal(t, date(2024, 1, 10), first)
}

func TestValidate(t *testing.T) {
	today := date(2024, 1, 3)
	cases := []struct {
		name     string
		schedule domain.Schedule
		ok       bool
	}{
		{"daily", domain.Schedule{Frequency: domain.FrequencyDaily, StartDate: today, DeliveryTime: "08:30"}, true},
		{"weekly without days", domain.Schedule{Frequency: domain.FrequencyWeekly, StartDate: today, DeliveryTime: "08:30"}, false},
		{"bad time", domain.Schedule{Frequency: domain.FrequencyDaily, StartDate: today, DeliveryTime: "8:30"}, false},
		{"hour out of range", domain.Schedule{Frequency: domain.FrequencyDaily, StartDate: today, DeliveryTime: "24:00"}, false},
		{"unknown frequency", domain.Schedule{Frequency: "yearly", StartDate: today, DeliveryTime: "08:30"}, false},
		{"custom in past", domain.Schedule{Frequency: domain.FrequencyCustom, SpecificDates: []time.Time{date(2023, 12, 1)}, StartDate: date(2023, 11, 1), DeliveryTime: "08:30"}, false},
		{"custom today", domain.Schedule{Frequency: domain.FrequencyCustom, SpecificDates: []time.Time{today}, StartDate: today, DeliveryTime: "08:30"}, true},
		{"custom upcoming", domain.Schedule{Frequency: domain.FrequencyCustom, SpecificDates: []time.Time{date(2024, 2, 1)}, StartDate: today, DeliveryTime: "08:30"}, true},
		{"missing start", domain.Schedule{Frequency: domain.FrequencyDaily, DeliveryTime: "08:30"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.schedule, today)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
		})
	}
}

func randomSchedule(rng *rand.Rand) domain.Schedule {
	freqs := []domain.Frequency{
		domain.FrequencyDaily,
		domain.FrequencyWeekly,
		domain.FrequencyBiweekly,
		domain.FrequencyMonthly,
		domain.FrequencyCustom,
	}
	s := domain.Schedule{
		Frequency: freqs[rng.Intn(len(freqs))],
		StartDate: date(2024, 1, 1).AddDate(0, 0, rng.Intn(60)),
	}
	for day := time.Sunday; day <= time.Saturday; day++ {
		if rng.Intn(3) == 0 {
			s.DaysOfWeek = append(s.DaysOfWeek, day)
		}
	}
	if len(s.DaysOfWeek) == 0 {
		s.DaysOfWeek = []time.Weekday{time.Weekday(rng.Intn(7))}
	}
	for i := 0; i < 8; i++ {
		s.SpecificDates = append(s.SpecificDates, date(2024, 1, 1).AddDate(0, 0, rng.Intn(365)))
	}
	return s
}

func TestNextPropertiesHoldForRandomSchedules(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		schedule := randomSchedule(rng)
		clone := schedule
		clone.DaysOfWeek = append([]time.Weekday(nil), schedule.DaysOfWeek...)
		clone.SpecificDates = append([]time.Time(nil), schedule.SpecificDates...)

		asOf := date(2024, 1, 1).AddDate(0, 0, rng.Intn(400))
		for step := 0; step < 12; step++ {
			next, ok := Next(schedule, asOf)
			if !ok {
				require.Equal(t, domain.FrequencyCustom, schedule.Frequency)
				break
			}
			require.True(t, next.After(asOf), "%s: %s not after %s", schedule.Frequency, next, asOf)
			if schedule.Frequency == domain.FrequencyWeekly || schedule.Frequency == domain.FrequencyBiweekly {
				require.Contains(t, schedule.DaysOfWeek, next.Weekday())
			}
			asOf = next
		}

		require.Equal(t, clone, schedule, "schedule mutated")
	}
}
