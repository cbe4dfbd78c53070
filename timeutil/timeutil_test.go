package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustClock(t *testing.T, tz string) *Clock {
	t.Helper()
	c, err := NewClock(tz)
	require.NoError(t, err)
	return c
}

func TestCombineToLocalRoundTrip(t *testing.T) {
	c := mustClock(t, "Europe/Madrid")

	cases := []struct {
		date  time.Time
		clock string
	}{
		{time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC), "09:00"},
		{time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC), "23:45"}, // DST in effect
		{time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC), "00:15"},
	}
	for _, tc := range cases {
		instant, err := c.Combine(tc.date, tc.clock)
		require.NoError(t, err)
		assert.Equal(t, time.UTC, instant.Location())

		local := c.ToLocal(instant)
		assert.True(t, SameDate(local, tc.date), "date drifted for %s %s", tc.date, tc.clock)
		mins, err := ParseClock(tc.clock)
		require.NoError(t, err)
		assert.Equal(t, mins, MinutesOfDay(local), "time drifted for %s %s", tc.date, tc.clock)
	}
}

func TestAssumeUTCTreatsNaiveAsUTC(t *testing.T) {
	naive := time.Date(2025, time.February, 3, 8, 30, 0, 0, time.Local)
	got := AssumeUTC(naive)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 8, got.Hour())
	assert.Equal(t, 30, got.Minute())

	aware := time.Date(2025, time.February, 3, 8, 30, 0, 0, time.UTC)
	assert.True(t, AssumeUTC(aware).Equal(aware))
}

func TestParseClock(t *testing.T) {
	mins, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, mins)

	for _, bad := range []string{"24:00", "12:60", "nonsense", ""} {
		_, err := ParseClock(bad)
		assert.Error(t, err, "expected error for %q", bad)
	}
}

func TestWeekdayIndexMondayFirst(t *testing.T) {
	monday := time.Date(2025, time.January, 6, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, WeekdayIndex(monday))
	assert.Equal(t, 6, WeekdayIndex(monday.AddDate(0, 0, 6))) // Sunday
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "4 h 30 min", FormatDuration(4*time.Hour+30*time.Minute))
	assert.Equal(t, "0 h 0 min", FormatDuration(-time.Hour))
	// 29.6 minutes of seconds rounds to 30 at presentation only.
	assert.Equal(t, "0 h 30 min", FormatDuration(29*time.Minute+36*time.Second))
}

func TestSameDatePtr(t *testing.T) {
	day := time.Date(2025, time.May, 5, 0, 0, 0, 0, time.UTC)
	other := day.AddDate(0, 0, 1)
	assert.False(t, SameDatePtr(nil, day))
	assert.True(t, SameDatePtr(&day, day))
	assert.False(t, SameDatePtr(&other, day))
}
