package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentTrackingPeriod_AllWeekdays(t *testing.T) {
	// 2024-09-02 is a Monday; sweep one full week
	base := time.Date(2024, 9, 2, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		now := base.AddDate(0, 0, i)
		tp := CurrentTrackingPeriod(now, nil)

		assert.Contains(t, DefaultPayoutDays, tp.Start.Weekday(), "start on %s", now.Weekday())

		gap := int(tp.End.Sub(tp.Start).Hours() / 24)
		assert.GreaterOrEqual(t, gap, 1, "gap on %s", now.Weekday())
		assert.LessOrEqual(t, gap, 6, "gap on %s", now.Weekday())
		assert.False(t, tp.Start.After(now), "start must not be in the future on %s", now.Weekday())
	}
}

func TestCurrentTrackingPeriod_MidWeek(t *testing.T) {
	// Friday 2024-09-06: period is Wednesday 9/4 to Saturday 9/7
	now := time.Date(2024, 9, 6, 9, 30, 0, 0, time.UTC)
	tp := CurrentTrackingPeriod(now, nil)

	assert.Equal(t, time.Wednesday, tp.Start.Weekday())
	assert.Equal(t, 4, tp.Start.Day())
	assert.Equal(t, time.Saturday, tp.End.Weekday())
	assert.Equal(t, 7, tp.End.Day())
	assert.Equal(t, "9/4 - 9/7", tp.String())
}

func TestCurrentTrackingPeriod_OnPayoutDay(t *testing.T) {
	// A payout day is the start of the new period, not the end of
	// the previous one. Saturday 2024-09-07:
	now := time.Date(2024, 9, 7, 0, 0, 0, 0, time.UTC)
	tp := CurrentTrackingPeriod(now, nil)

	assert.Equal(t, time.Saturday, tp.Start.Weekday())
	assert.Equal(t, 7, tp.Start.Day())
	assert.Equal(t, time.Wednesday, tp.End.Weekday())
	assert.Equal(t, 11, tp.End.Day())
}

func TestCurrentTrackingPeriod_SinglePayoutDay(t *testing.T) {
	// With one payout day the window is always a full week
	now := time.Date(2024, 9, 4, 12, 0, 0, 0, time.UTC) // Wednesday
	tp := CurrentTrackingPeriod(now, []time.Weekday{time.Wednesday})

	require.Equal(t, time.Wednesday, tp.Start.Weekday())
	assert.Equal(t, 7*24*time.Hour, tp.End.Sub(tp.Start))
}

func TestTrackingPeriod_StringNoPadding(t *testing.T) {
	tp := TrackingPeriod{
		Start: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "1/3 - 1/6", tp.String())
}
