package utils

import (
	"testing"
	"time"
)

func TestMarketOpenClose(t *testing.T) {
	date := time.Date(2024, 2, 14, 12, 0, 0, 0, ET)

	open := MarketOpenTime(date)
	if open.Hour() != 9 || open.Minute() != 30 {
		t.Errorf("MarketOpenTime = %v, want 09:30", open)
	}

	close := MarketCloseTime(date)
	if close.Hour() != 16 || close.Minute() != 0 {
		t.Errorf("MarketCloseTime = %v, want 16:00", close)
	}
}

func TestIsMarketOpenAt(t *testing.T) {
	// Wednesday at 10:00 AM ET — should be open
	weekday := time.Date(2024, 2, 14, 10, 0, 0, 0, ET)
	if !IsMarketOpenAt(weekday) {
		t.Error("Expected market to be open on Wednesday 10:00 AM")
	}

	saturday := time.Date(2024, 2, 17, 10, 0, 0, 0, ET)
	if IsMarketOpenAt(saturday) {
		t.Error("Expected market to be closed on Saturday")
	}

	afterClose := time.Date(2024, 2, 14, 16, 0, 0, 0, ET)
	if IsMarketOpenAt(afterClose) {
		t.Error("Expected market to be closed at 4:00 PM")
	}
}

func TestIsTradingDay(t *testing.T) {
	tests := []struct {
		date string
		want bool
	}{
		{"2024-07-04", false}, // Independence Day
		{"2024-07-05", true},
		{"2024-07-06", false}, // Saturday
		{"2023-06-19", false}, // Juneteenth
	}
	for _, tt := range tests {
		d, _ := time.Parse("2006-01-02", tt.date)
		if got := IsTradingDay(d); got != tt.want {
			t.Errorf("IsTradingDay(%s) = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestNextPrevTradingDay(t *testing.T) {
	// Friday before a Monday holiday (Memorial Day 2024)
	fri := time.Date(2024, 5, 24, 0, 0, 0, 0, time.UTC)
	sat := fri.AddDate(0, 0, 1)

	next := NextTradingDay(sat)
	if next.Format("2006-01-02") != "2024-05-28" {
		t.Errorf("NextTradingDay(%v) = %v, want 2024-05-28", sat, next)
	}
	if got := NextTradingDay(fri); !got.Equal(fri) {
		t.Errorf("NextTradingDay on a trading day should return it, got %v", got)
	}

	prev := PrevTradingDay(time.Date(2024, 5, 28, 0, 0, 0, 0, time.UTC))
	if !prev.Equal(fri) {
		t.Errorf("PrevTradingDay = %v, want %v", prev, fri)
	}
}

func TestTradingDaysBetween(t *testing.T) {
	// Mon 2024-01-08 to Mon 2024-01-15: five trading days
	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if got := TradingDaysBetween(start, end); got != 5 {
		t.Errorf("TradingDaysBetween = %d, want 5", got)
	}
}

func TestCalendarDaysForCoversHorizon(t *testing.T) {
	for _, h := range []int{1, 7, 30} {
		span := CalendarDaysFor(h)
		if span < h+7 {
			t.Errorf("CalendarDaysFor(%d) = %d, shorter than horizon + 7", h, span)
		}
		// Holiday-heavy start: Thanksgiving through New Year.
		start := time.Date(2024, 11, 22, 0, 0, 0, 0, time.UTC)
		if got := TradingDaysBetween(start.AddDate(0, 0, 1), start.AddDate(0, 0, span+1)); got < h {
			t.Errorf("CalendarDaysFor(%d): only %d trading days in span", h, got)
		}
	}
}

func TestMarketStatusAt(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2024, 2, 17, 11, 0, 0, 0, ET), "CLOSED (Weekend)"},
		{time.Date(2024, 12, 25, 11, 0, 0, 0, ET), "CLOSED (Christmas Day)"},
		{time.Date(2024, 2, 14, 8, 0, 0, 0, ET), "PRE-MARKET"},
		{time.Date(2024, 2, 14, 11, 0, 0, 0, ET), "OPEN"},
		{time.Date(2024, 2, 14, 17, 0, 0, 0, ET), "CLOSED"},
	}
	for _, tt := range tests {
		if got := MarketStatusAt(tt.at); got != tt.want {
			t.Errorf("MarketStatusAt(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
}
