package marketclock

import (
	"testing"
	"time"
)

// 2026-08-26 is a Wednesday, 2026-08-29 a Saturday.
func wednesday(hour, min, sec int) time.Time {
	return time.Date(2026, 8, 26, hour, min, sec, 0, time.UTC)
}

func saturday(hour, min, sec int) time.Time {
	return time.Date(2026, 8, 29, hour, min, sec, 0, time.UTC)
}

func TestMaySyncNowWeekdayBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		now     time.Time
		allowed bool
	}{
		{"one second before open", wednesday(8, 59, 59), true},
		{"exactly at open", wednesday(9, 0, 0), false},
		{"mid session", wednesday(12, 30, 0), false},
		{"one second before close", wednesday(15, 59, 59), false},
		{"exactly at close", wednesday(16, 0, 0), true},
		{"evening", wednesday(22, 0, 0), true},
		{"midnight", wednesday(0, 0, 0), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MaySyncNow(tc.now); got != tc.allowed {
				t.Fatalf("MaySyncNow(%v) = %v, want %v", tc.now, got, tc.allowed)
			}
		})
	}
}

func TestMaySyncNowWeekend(t *testing.T) {
	if !MaySyncNow(saturday(8, 30, 0)) {
		t.Fatalf("expected sync allowed before 09:00 on a weekend")
	}
	if MaySyncNow(saturday(9, 0, 0)) {
		t.Fatalf("expected sync blocked from 09:00 on a weekend")
	}
	if MaySyncNow(saturday(20, 0, 0)) {
		t.Fatalf("expected sync blocked in a weekend evening")
	}
}

func TestTradingDayWindowAfterOpen(t *testing.T) {
	start, end := TradingDayWindow(wednesday(10, 15, 0))

	if !start.Equal(wednesday(9, 0, 0)) {
		t.Fatalf("unexpected window start: %v", start)
	}
	if !end.Equal(time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window end: %v", end)
	}
}

func TestTradingDayWindowBeforeOpenBelongsToPreviousDay(t *testing.T) {
	start, end := TradingDayWindow(wednesday(7, 45, 0))

	if !start.Equal(time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window start: %v", start)
	}
	if !end.Equal(wednesday(9, 0, 0)) {
		t.Fatalf("unexpected window end: %v", end)
	}
}

func TestTradingDayWindowMondayMorningSkipsWeekend(t *testing.T) {
	// Monday 2026-08-31 before open: the trading day is Friday 2026-08-28.
	monday := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)

	start, end := TradingDayWindow(monday)

	if !start.Equal(time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected window to start on Friday, got %v", start)
	}
	if !end.Equal(time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window end: %v", end)
	}
}
