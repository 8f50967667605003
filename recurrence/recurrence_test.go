package recurrence_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/activity-engine/generic"
	"github.com/warp/activity-engine/recurrence"
)

func january2025() generic.PayPeriod {
	return generic.PayPeriodFor(generic.NewMonth(2025, time.January))
}

func day(m time.Month, d int) generic.TimePoint {
	year := 2025
	if m == time.December {
		year = 2024
	}
	return generic.NewTimePoint(year, m, d)
}

// =============================================================================
// WEEKLY EXPANSION
// =============================================================================

func TestExpand_ThursdayInJanuary(t *testing.T) {
	rule := recurrence.Rule{ClassID: "cls1", Weekday: time.Thursday}

	dates, err := recurrence.Expand(rule, january2025(), recurrence.Options{})
	require.NoError(t, err)

	assert.Equal(t, []generic.TimePoint{
		day(time.December, 26), day(time.January, 2), day(time.January, 9),
		day(time.January, 16), day(time.January, 23),
	}, dates)
}

func TestExpand_HolidayWindowDropsJanuarySecond(t *testing.T) {
	rule := recurrence.Rule{ClassID: "cls1", Weekday: time.Thursday}

	dates, err := recurrence.Expand(rule, january2025(), recurrence.Options{}.WithHolidayWindow(true))
	require.NoError(t, err)

	require.Len(t, dates, 4)
	assert.NotContains(t, dates, day(time.January, 2))
	assert.Contains(t, dates, day(time.December, 26))
}

func TestExpand_HolidayWindowCountMatchesWindowOccurrences(t *testing.T) {
	period := january2025()
	window, ok := recurrence.HolidayWindow(period)
	require.True(t, ok)

	for wd := time.Sunday; wd <= time.Thursday; wd++ {
		rule := recurrence.Rule{ClassID: "cls1", Weekday: wd}
		all, err := recurrence.Expand(rule, period, recurrence.Options{})
		require.NoError(t, err)
		kept, err := recurrence.Expand(rule, period, recurrence.Options{}.WithHolidayWindow(true))
		require.NoError(t, err)

		inWindow := 0
		for _, d := range all {
			if window.Contains(d) {
				inWindow++
			}
		}
		assert.Equal(t, len(all)-inWindow, len(kept), wd.String())
	}
}

func TestExpand_OnlyWeekdayAscending(t *testing.T) {
	for m := time.January; m <= time.December; m++ {
		period := generic.PayPeriodFor(generic.NewMonth(2025, m))
		dates, err := recurrence.Expand(recurrence.Rule{Weekday: time.Monday}, period, recurrence.Options{}.WithHolidayWindow(true))
		require.NoError(t, err)
		require.NotEmpty(t, dates)

		for i, d := range dates {
			assert.Equal(t, time.Monday, d.Weekday())
			assert.True(t, period.Contains(d))
			if i > 0 {
				assert.True(t, dates[i-1].Before(d), "strictly ascending")
			}
		}
	}
}

func TestExpand_WindowOnlyAppliesToJanuary(t *testing.T) {
	// The flag is a no-op outside January
	period := generic.PayPeriodFor(generic.NewMonth(2025, time.February))
	_, ok := recurrence.HolidayWindow(period)
	assert.False(t, ok)

	with, err := recurrence.Expand(recurrence.Rule{Weekday: time.Sunday}, period, recurrence.Options{}.WithHolidayWindow(true))
	require.NoError(t, err)
	without, err := recurrence.Expand(recurrence.Rule{Weekday: time.Sunday}, period, recurrence.Options{})
	require.NoError(t, err)
	assert.Equal(t, without, with)
}

func TestExpand_RejectsRestDays(t *testing.T) {
	_, err := recurrence.Expand(recurrence.Rule{Weekday: time.Friday}, january2025(), recurrence.Options{})
	assert.ErrorIs(t, err, recurrence.ErrInvalidWeekday)
}

func TestOptions_DefaultOnlyFillsUnset(t *testing.T) {
	assert.False(t, recurrence.Options{}.ExcludesHolidayWindow())
	assert.True(t, recurrence.Options{}.DefaultHolidayWindow(true).ExcludesHolidayWindow())

	off := recurrence.Options{}.WithHolidayWindow(false)
	assert.False(t, off.DefaultHolidayWindow(true).ExcludesHolidayWindow(), "explicit false survives the default")
	assert.True(t, off.WithHolidayWindow(true).ExcludesHolidayWindow())
	assert.False(t, off.ExcludesHolidayWindow(), "receiver unchanged")
}

// =============================================================================
// PICKED DATES
// =============================================================================

func TestExpandPicked_SortsAndDeduplicates(t *testing.T) {
	dates, err := recurrence.ExpandPicked([]generic.TimePoint{
		day(time.January, 10), day(time.January, 5), day(time.January, 10),
	}, january2025())
	require.NoError(t, err)
	assert.Equal(t, []generic.TimePoint{day(time.January, 5), day(time.January, 10)}, dates)
}

func TestExpandPicked_Bounds(t *testing.T) {
	_, err := recurrence.ExpandPicked([]generic.TimePoint{day(time.January, 26)}, january2025())
	assert.ErrorIs(t, err, recurrence.ErrDateOutsidePeriod)

	six := []generic.TimePoint{
		day(time.January, 5), day(time.January, 6), day(time.January, 7),
		day(time.January, 8), day(time.January, 12), day(time.January, 13),
	}
	_, err = recurrence.ExpandPicked(six, january2025())
	assert.ErrorIs(t, err, recurrence.ErrTooManyDates)
}

// =============================================================================
// FORM
// =============================================================================

func TestForm_EditsAreImmutable(t *testing.T) {
	f := recurrence.Form{PaymentPeriod: "01-25"}.Append(recurrence.WeeklyEntry("cls1", time.Sunday, ""))

	g := f.Append(recurrence.WeeklyEntry("cls2", time.Monday, ""))
	assert.Equal(t, 1, f.Len())
	assert.Equal(t, 2, g.Len())

	h, err := g.Replace(0, recurrence.WeeklyEntry("cls3", time.Tuesday, ""))
	require.NoError(t, err)
	assert.Equal(t, "cls1", g.Entries[0].ClassID)
	assert.Equal(t, "cls3", h.Entries[0].ClassID)

	k, err := h.Remove(0)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, "cls2", k.Entries[0].ClassID)

	_, err = k.Remove(5)
	assert.ErrorIs(t, err, recurrence.ErrRowOutOfRange)
}

func TestForm_TuplesInRowOrder(t *testing.T) {
	f := recurrence.Form{PaymentPeriod: "02-25"}.
		Append(recurrence.WeeklyEntry("cls1", time.Thursday, "weekly")).
		Append(recurrence.PickedEntry("cls2", "picked", day(time.January, 12), day(time.January, 5)))

	tuples, err := f.Tuples("op1", january2025())
	require.NoError(t, err)
	require.Len(t, tuples, 7)

	assert.Equal(t, "cls1", tuples[0].ClassID)
	assert.Equal(t, day(time.December, 26), tuples[0].Date)
	assert.Equal(t, "cls2", tuples[5].ClassID)
	assert.Equal(t, day(time.January, 5), tuples[5].Date)
	for _, tp := range tuples {
		assert.Equal(t, "op1", tp.OperatorID)
		assert.Equal(t, "02-25", tp.PaymentPeriod, "payment label is independent of the dates")
	}
}

func TestForm_ValidationBlocksEverything(t *testing.T) {
	thursday := time.Thursday
	friday := time.Friday

	cases := []struct {
		name    string
		form    recurrence.Form
		message string
	}{
		{"no payment period", recurrence.Form{Entries: []recurrence.Entry{recurrence.WeeklyEntry("cls1", time.Sunday, "")}}, "choose a payment period"},
		{"bad payment period", recurrence.Form{PaymentPeriod: "soon", Entries: []recurrence.Entry{recurrence.WeeklyEntry("cls1", time.Sunday, "")}}, "payment period must look like MM-YY"},
		{"no rows", recurrence.Form{PaymentPeriod: "01-25"}, "add at least one activity"},
		{"no class", recurrence.Form{PaymentPeriod: "01-25", Entries: []recurrence.Entry{{Mode: recurrence.ModeWeekly, Weekday: &thursday}}}, "choose a class"},
		{"no weekday", recurrence.Form{PaymentPeriod: "01-25", Entries: []recurrence.Entry{{Mode: recurrence.ModeWeekly, ClassID: "cls1"}}}, "choose a weekday"},
		{"rest day", recurrence.Form{PaymentPeriod: "01-25", Entries: []recurrence.Entry{{Mode: recurrence.ModeWeekly, ClassID: "cls1", Weekday: &friday}}}, "choose a weekday between Sunday and Thursday"},
		{"empty dates", recurrence.Form{PaymentPeriod: "01-25", Entries: []recurrence.Entry{{Mode: recurrence.ModePicked, ClassID: "cls1"}}}, "pick at least one date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tuples, err := tc.form.Tuples("op1", january2025())
			assert.Nil(t, tuples)

			var verr *recurrence.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.ErrorIs(t, err, recurrence.ErrInvalidComposition)
			assert.Equal(t, tc.message, verr.Message())
		})
	}
}

func TestForm_OneBadRowFailsTheWholeForm(t *testing.T) {
	// GIVEN: A valid weekly row followed by a picked date outside the period
	f := recurrence.Form{PaymentPeriod: "01-25"}.
		Append(recurrence.WeeklyEntry("cls1", time.Sunday, "")).
		Append(recurrence.PickedEntry("cls2", "", day(time.January, 28)))

	// WHEN: Expanding
	tuples, err := f.Tuples("op1", january2025())

	// THEN: Nothing partial comes back
	assert.Nil(t, tuples)
	var verr *recurrence.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 1, verr.Problems[0].Row)
}
