package ledger

import (
	"fmt"
	"time"
)

// Payout days used when none are configured
var DefaultPayoutDays = []time.Weekday{time.Wednesday, time.Saturday}

// TrackingPeriod is the open accrual window, bounded by the two
// payout weekdays. It is derived from the clock on demand and
// never persisted
type TrackingPeriod struct {
	Start time.Time
	End   time.Time
}

// String formats the period as "M/D - M/D", no zero padding, no year
func (tp TrackingPeriod) String() string {
	return fmt.Sprintf("%s - %s", formatDay(tp.Start), formatDay(tp.End))
}

func formatDay(t time.Time) string {
	return fmt.Sprintf("%d/%d", int(t.Month()), t.Day())
}

// CurrentTrackingPeriod computes the accrual window that contains now.
// Start is the most recent payout day, today included; End is the next
// payout day strictly after Start, a full week later if the two coincide
func CurrentTrackingPeriod(now time.Time, payoutDays []time.Weekday) TrackingPeriod {

	if len(payoutDays) == 0 {
		payoutDays = DefaultPayoutDays
	}

	isPayoutDay := func(day time.Weekday) bool {
		for _, d := range payoutDays {
			if d == day {
				return true
			}
		}
		return false
	}

	// Walk back to the most recent payout day
	today := now.Weekday()
	last := today
	for !isPayoutDay(last) {
		last = (last + 6) % 7
	}
	start := now.AddDate(0, 0, -int((today-last+7)%7))

	// Next payout day strictly after the start, wrapping to the
	// first payout day of next week if none remain
	next := time.Weekday(-1)
	for _, day := range payoutDays {
		if day > last {
			next = day
			break
		}
	}
	if next == -1 {
		next = payoutDays[0]
	}
	gap := int((next - last + 7) % 7)
	if gap == 0 {
		gap = 7
	}
	end := start.AddDate(0, 0, gap)

	return TrackingPeriod{Start: start, End: end}
}
