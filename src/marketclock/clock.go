// Package marketclock answers the two wall-clock questions the reconciliation
// core needs: which trading-day window a timestamp belongs to, and whether
// signals may be mutated right now. Both are pure functions of time.
package marketclock

import "time"

const (
	// MarketOpenHour is the start of a trading day. Everything before 09:00
	// still logically belongs to the previous trading day.
	MarketOpenHour = 9

	// MarketCloseHour ends the live-trading block during which signals must
	// not be mutated.
	MarketCloseHour = 16
)

// TradingDayWindow returns the [start, end) interval of the trading day the
// given instant belongs to. Before 09:00 the trading day is the previous
// business day (weekends skipped) and the window runs until 09:00 today;
// otherwise it runs from 09:00 today until 09:00 tomorrow.
func TradingDayWindow(now time.Time) (start, end time.Time) {
	todayOpen := atHour(now, MarketOpenHour)

	if now.Before(todayOpen) {
		prev := previousBusinessDay(now)
		return atHour(prev, MarketOpenHour), todayOpen
	}

	return todayOpen, todayOpen.AddDate(0, 0, 1)
}

// MaySyncNow reports whether a signal batch may be applied at the given
// instant. On weekdays syncing is blocked during market hours
// [09:00, 16:00) so signals are not rewritten while being traded against. On
// weekends only the before-09:00 stretch is allowed: it is still part of the
// prior trading day.
//
// Callers that had their timing validated by the invoking scheduler bypass
// this check explicitly (skipGate on the ledger).
func MaySyncNow(now time.Time) bool {
	open := atHour(now, MarketOpenHour)

	if isWeekend(now) {
		return now.Before(open)
	}

	close := atHour(now, MarketCloseHour)
	if !now.Before(open) && now.Before(close) {
		return false
	}
	return true
}

func atHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func previousBusinessDay(t time.Time) time.Time {
	day := t.AddDate(0, 0, -1)
	for isWeekend(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}
