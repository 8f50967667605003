package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/activity-engine/generic"
)

// =============================================================================
// ASSIGNMENT EFFECTIVE RANGE TESTS
// =============================================================================

func TestAssignment_IsActive(t *testing.T) {
	end := generic.NewTimePoint(2025, time.January, 31)
	a := generic.Assignment{
		Weekday:       time.Sunday,
		EffectiveFrom: generic.NewTimePoint(2025, time.January, 1),
		EffectiveTo:   &end,
	}

	assert.False(t, a.IsActive(generic.NewTimePoint(2024, time.December, 31)))
	assert.True(t, a.IsActive(generic.NewTimePoint(2025, time.January, 1)), "start is inclusive")
	assert.True(t, a.IsActive(end), "end is inclusive")
	assert.False(t, a.IsActive(generic.NewTimePoint(2025, time.February, 1)))

	open := generic.Assignment{Weekday: time.Sunday}
	assert.True(t, open.IsActive(generic.NewTimePoint(1999, time.June, 1)), "no bounds means always active")
}

func TestAssignment_Overlaps(t *testing.T) {
	jan := generic.PayPeriodFor(generic.NewMonth(2025, time.January)).Period
	endedBefore := generic.NewTimePoint(2024, time.December, 25)
	endedInside := generic.NewTimePoint(2024, time.December, 26)

	tests := []struct {
		name string
		a    generic.Assignment
		want bool
	}{
		{"open", generic.Assignment{}, true},
		{"starts on last day", generic.Assignment{EffectiveFrom: jan.End}, true},
		{"starts after", generic.Assignment{EffectiveFrom: jan.End.AddDays(1)}, false},
		{"ends on first day", generic.Assignment{EffectiveTo: &endedInside}, true},
		{"ended before", generic.Assignment{EffectiveTo: &endedBefore}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(jan))
		})
	}
}

func TestAssignment_AppliesOnMatchesWeekday(t *testing.T) {
	a := generic.Assignment{Weekday: time.Tuesday, EffectiveFrom: generic.NewTimePoint(2025, time.January, 10)}

	assert.True(t, a.AppliesOn(generic.NewTimePoint(2025, time.January, 14)))
	assert.False(t, a.AppliesOn(generic.NewTimePoint(2025, time.January, 15)), "Wednesday")
	assert.False(t, a.AppliesOn(generic.NewTimePoint(2025, time.January, 7)), "before effective date")
}
