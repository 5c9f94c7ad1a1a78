// Package calendar answers trading-day questions for the simulated market:
// whether a given date is a trading day, and what date lies N trading days
// ahead. The holiday set is a fixed, versioned list owned by configuration;
// there are no network calls and no mutation, so every function here is
// deterministic and safe to call inside a retried transaction.
package calendar

import "time"

// DateFormat is the wire/config format for holiday dates.
const DateFormat = "2006-01-02"

// Calendar holds the non-trading dates for one market.
type Calendar struct {
	version  string
	holidays map[time.Time]struct{}
}

// defaultVersion identifies the embedded US-market holiday list.
const defaultVersion = "us-2025.2"

// defaultHolidays is the embedded NYSE holiday list for 2025–2026.
var defaultHolidays = []string{
	"2025-01-01", // New Year's Day
	"2025-01-20", // Martin Luther King Jr. Day
	"2025-02-17", // Washington's Birthday
	"2025-04-18", // Good Friday
	"2025-05-26", // Memorial Day
	"2025-06-19", // Juneteenth
	"2025-07-04", // Independence Day
	"2025-09-01", // Labor Day
	"2025-11-27", // Thanksgiving
	"2025-12-25", // Christmas
	"2026-01-01",
	"2026-01-19",
	"2026-02-16",
	"2026-04-03",
	"2026-05-25",
	"2026-06-19",
	"2026-07-03", // Independence Day (observed)
	"2026-09-07",
	"2026-11-26",
	"2026-12-25",
}

// New builds a Calendar from a versioned list of holiday dates in
// "YYYY-MM-DD" form. Unparseable entries are skipped.
func New(version string, dates []string) *Calendar {
	c := &Calendar{
		version:  version,
		holidays: make(map[time.Time]struct{}, len(dates)),
	}
	for _, s := range dates {
		d, err := time.Parse(DateFormat, s)
		if err != nil {
			continue
		}
		c.holidays[midnight(d)] = struct{}{}
	}
	return c
}

// Default returns a Calendar loaded with the embedded US-market holiday list.
func Default() *Calendar {
	return New(defaultVersion, defaultHolidays)
}

// Version reports which holiday list this calendar was built from.
func (c *Calendar) Version() string {
	return c.version
}

// IsTradingDay reports whether t falls on a trading day. Weekends and
// listed holidays are non-trading days.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	day := midnight(t)
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[day]
	return !holiday
}

// NextTradingDay returns the date n trading days after t, skipping weekends
// and holidays entirely: T+1 from a Friday is the following Monday, or later
// if Monday is a holiday. n values below 1 are treated as 1.
func (c *Calendar) NextTradingDay(t time.Time, n int) time.Time {
	if n < 1 {
		n = 1
	}
	day := midnight(t)
	for remaining := n; remaining > 0; {
		day = day.AddDate(0, 0, 1)
		if c.IsTradingDay(day) {
			remaining--
		}
	}
	return day
}

// midnight truncates t to a date in UTC.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
