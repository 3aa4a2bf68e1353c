package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"dcspace-backend/internal/models"
	"dcspace-backend/internal/timeutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleFromJan31LeapYear(t *testing.T) {
	activation := time.Date(2024, time.January, 31, 14, 30, 0, 0, time.UTC)

	entries := ScheduleRecurringInvoices(activation, DefaultRecurringCount)
	require.Len(t, entries, 11)

	wantDays := []int{29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	for i, e := range entries {
		assert.Equal(t, wantDays[i], e.ReleaseDate.Day(), "entry %d", i)
		assert.Equal(t, time.Month(i+2), e.ReleaseDate.Month(), "entry %d", i)
		assert.Equal(t, 2024, e.ReleaseDate.Year())
		assert.Equal(t, models.InvoiceStatusUnpaid, e.Status)
		assert.Zero(t, e.ReleaseDate.Hour())
	}
}

func TestScheduleFromJan31CommonYear(t *testing.T) {
	activation := time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC)

	entries := ScheduleRecurringInvoices(activation, DefaultRecurringCount)
	assert.Equal(t, time.Date(2023, time.February, 28, 0, 0, 0, 0, time.UTC), entries[0].ReleaseDate)
}

func TestScheduleDecemberRollsOverYear(t *testing.T) {
	activation := time.Date(2023, time.December, 15, 9, 0, 0, 0, timeutil.WIB)

	entries := ScheduleRecurringInvoices(activation, DefaultRecurringCount)
	require.Len(t, entries, 11)
	assert.Equal(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, timeutil.WIB), entries[0].ReleaseDate)
	assert.Equal(t, time.Date(2024, time.November, 15, 0, 0, 0, 0, timeutil.WIB), entries[10].ReleaseDate)
}

func TestScheduleFromFeb29(t *testing.T) {
	activation := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)

	entries := ScheduleRecurringInvoices(activation, 12)
	require.Len(t, entries, 12)
	assert.Equal(t, 29, entries[0].ReleaseDate.Day()) // Mar 29
	last := entries[11].ReleaseDate
	assert.Equal(t, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC), last)
}

func TestScheduleInvoiceIDFormat(t *testing.T) {
	activation := time.Date(2024, time.November, 5, 0, 0, 0, 0, time.UTC)

	entries := ScheduleRecurringInvoices(activation, 2)
	first := time.Date(2024, time.December, 5, 0, 0, 0, 0, time.UTC)
	second := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, fmt.Sprintf("rnt-202412-%d", first.UnixMilli()), entries[0].InvoiceID)
	assert.Equal(t, fmt.Sprintf("rnt-202501-%d", second.UnixMilli()), entries[1].InvoiceID)
}

func TestScheduleNonPositiveCount(t *testing.T) {
	assert.Empty(t, ScheduleRecurringInvoices(time.Now(), 0))
	assert.Empty(t, ScheduleRecurringInvoices(time.Now(), -3))
}

// Every activation day across three years, including a leap year, in two zones.
func TestScheduleProperties(t *testing.T) {
	for _, loc := range []*time.Location{time.UTC, timeutil.WIB} {
		start := time.Date(2023, time.January, 1, 23, 59, 0, 0, loc)
		end := time.Date(2026, time.January, 1, 0, 0, 0, 0, loc)

		for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
			entries := ScheduleRecurringInvoices(day, DefaultRecurringCount)
			require.Len(t, entries, DefaultRecurringCount, day.Format(timeutil.DateLayout))

			seen := make(map[string]bool)
			prev := day
			for i, e := range entries {
				rd := e.ReleaseDate
				label := fmt.Sprintf("%s entry %d", day.Format(timeutil.DateLayout), i)

				require.True(t, rd.After(prev), label)
				prev = rd

				wantMonth := (int(day.Month())-1+i+1)%12 + 1
				require.Equal(t, time.Month(wantMonth), rd.Month(), label)

				lastDay := timeutil.DaysIn(rd.Year(), rd.Month(), loc)
				require.LessOrEqual(t, rd.Day(), lastDay, label)
				require.Equal(t, min(day.Day(), lastDay), rd.Day(), label)

				// the date round-trips, so it is a valid calendar date
				require.Equal(t, rd, time.Date(rd.Year(), rd.Month(), rd.Day(), 0, 0, 0, 0, loc), label)

				require.True(t, strings.HasPrefix(e.InvoiceID, "rnt-"), label)
				require.False(t, seen[e.InvoiceID], label)
				seen[e.InvoiceID] = true
			}
		}
	}
}
