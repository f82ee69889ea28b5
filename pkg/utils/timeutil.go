package utils

import (
	"time"
)

// ET is the US Eastern time zone the NYSE trades in.
var ET *time.Location

func init() {
	var err error
	ET, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback: fixed EST offset if tz database is not available
		ET = time.FixedZone("EST", -5*60*60)
	}
}

// NowET returns the current time in US Eastern time.
func NowET() time.Time {
	return time.Now().In(ET)
}

// MarketOpenTime returns the NYSE opening time (9:30 AM ET) for a given date.
func MarketOpenTime(date time.Time) time.Time {
	d := date.In(ET)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, ET)
}

// MarketCloseTime returns the NYSE closing time (4:00 PM ET) for a given date.
func MarketCloseTime(date time.Time) time.Time {
	d := date.In(ET)
	return time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, ET)
}

// IsMarketOpenAt checks if the NYSE would be open at the given time.
func IsMarketOpenAt(t time.Time) bool {
	t = t.In(ET)
	if !IsTradingDay(t) {
		return false
	}
	return !t.Before(MarketOpenTime(t)) && t.Before(MarketCloseTime(t))
}

// IsTradingDay checks if the given calendar date is a NYSE trading day.
// Dates are compared by their calendar day, so UTC-midnight filing dates
// work unchanged.
func IsTradingDay(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !IsTradingHoliday(t)
}

// IsTradingHoliday checks if the given date is a full-day NYSE holiday.
func IsTradingHoliday(t time.Time) bool {
	_, ok := nyseHolidays[t.Format("2006-01-02")]
	return ok
}

// NextTradingDay returns the first trading day on or after the given date.
func NextTradingDay(from time.Time) time.Time {
	d := from
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// PrevTradingDay returns the last trading day strictly before the given date.
func PrevTradingDay(from time.Time) time.Time {
	prev := from.AddDate(0, 0, -1)
	for !IsTradingDay(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// TradingDaysBetween returns the number of trading days between two dates (exclusive of end).
func TradingDaysBetween(start, end time.Time) int {
	count := 0
	for current := start; current.Before(end); current = current.AddDate(0, 0, 1) {
		if IsTradingDay(current) {
			count++
		}
	}
	return count
}

// CalendarDaysFor returns a calendar-day span that always contains at least
// the given number of trading days after a start date, plus a one-week
// buffer for holidays.
func CalendarDaysFor(tradingDays int) int {
	if tradingDays <= 0 {
		return 7
	}
	return (tradingDays*7+4)/5 + 7
}

// NYSE full-day closures, 2020 through 2026.
var nyseHolidays = map[string]string{
	"2020-01-01": "New Year's Day", "2020-01-20": "Martin Luther King Jr. Day", "2020-02-17": "Washington's Birthday",
	"2020-04-10": "Good Friday", "2020-05-25": "Memorial Day", "2020-07-03": "Independence Day",
	"2020-09-07": "Labor Day", "2020-11-26": "Thanksgiving Day", "2020-12-25": "Christmas Day",

	"2021-01-01": "New Year's Day", "2021-01-18": "Martin Luther King Jr. Day", "2021-02-15": "Washington's Birthday",
	"2021-04-02": "Good Friday", "2021-05-31": "Memorial Day", "2021-07-05": "Independence Day",
	"2021-09-06": "Labor Day", "2021-11-25": "Thanksgiving Day", "2021-12-24": "Christmas Day",

	"2022-01-17": "Martin Luther King Jr. Day", "2022-02-21": "Washington's Birthday", "2022-04-15": "Good Friday",
	"2022-05-30": "Memorial Day", "2022-06-20": "Juneteenth", "2022-07-04": "Independence Day",
	"2022-09-05": "Labor Day", "2022-11-24": "Thanksgiving Day", "2022-12-26": "Christmas Day",

	"2023-01-02": "New Year's Day", "2023-01-16": "Martin Luther King Jr. Day", "2023-02-20": "Washington's Birthday",
	"2023-04-07": "Good Friday", "2023-05-29": "Memorial Day", "2023-06-19": "Juneteenth",
	"2023-07-04": "Independence Day", "2023-09-04": "Labor Day", "2023-11-23": "Thanksgiving Day",
	"2023-12-25": "Christmas Day",

	"2024-01-01": "New Year's Day", "2024-01-15": "Martin Luther King Jr. Day", "2024-02-19": "Washington's Birthday",
	"2024-03-29": "Good Friday", "2024-05-27": "Memorial Day", "2024-06-19": "Juneteenth",
	"2024-07-04": "Independence Day", "2024-09-02": "Labor Day", "2024-11-28": "Thanksgiving Day",
	"2024-12-25": "Christmas Day",

	"2025-01-01": "New Year's Day", "2025-01-09": "National Day of Mourning", "2025-01-20": "Martin Luther King Jr. Day",
	"2025-02-17": "Washington's Birthday", "2025-04-18": "Good Friday", "2025-05-26": "Memorial Day",
	"2025-06-19": "Juneteenth", "2025-07-04": "Independence Day", "2025-09-01": "Labor Day",
	"2025-11-27": "Thanksgiving Day", "2025-12-25": "Christmas Day",

	"2026-01-01": "New Year's Day", "2026-01-19": "Martin Luther King Jr. Day", "2026-02-16": "Washington's Birthday",
	"2026-04-03": "Good Friday", "2026-05-25": "Memorial Day", "2026-06-19": "Juneteenth",
	"2026-07-03": "Independence Day", "2026-09-07": "Labor Day", "2026-11-26": "Thanksgiving Day",
	"2026-12-25": "Christmas Day",
}

// MarketStatus returns the current NYSE status string.
func MarketStatus() string {
	return MarketStatusAt(NowET())
}

// MarketStatusAt returns the NYSE status at the given time.
func MarketStatusAt(now time.Time) string {
	now = now.In(ET)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return "CLOSED (Weekend)"
	}
	if name, ok := nyseHolidays[now.Format("2006-01-02")]; ok {
		return "CLOSED (" + name + ")"
	}

	switch {
	case now.Before(MarketOpenTime(now)):
		return "PRE-MARKET"
	case now.Before(MarketCloseTime(now)):
		return "OPEN"
	default:
		return "CLOSED"
	}
}
