// Package clock defines the cohort-local notion of a "day" used by QR issuance,
// redemption and aggregation.
package clock

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DateLayout is the calendar-day format used on the wire and in storage.
const DateLayout = "2006-01-02"

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Policy maps instants to cohort-local calendar days.
type Policy struct {
	clock Clock
	loc   *time.Location
}

// NewPolicy loads the named IANA timezone. An empty name means UTC.
func NewPolicy(c Clock, timezone string) (*Policy, error) {
	if c == nil {
		c = SystemClock{}
	}
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load cohort timezone %q: %w", timezone, err)
		}
		loc = l
	}
	return &Policy{clock: c, loc: loc}, nil
}

// Location returns the cohort timezone.
func (p *Policy) Location() *time.Location { return p.loc }

// Now returns the current instant in UTC.
func (p *Policy) Now() time.Time { return p.clock.Now().UTC() }

// DayStart truncates t to midnight of its cohort-local day.
func (p *Policy) DayStart(t time.Time) time.Time {
	local := t.In(p.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.loc)
}

// Today is midnight of the current cohort-local day.
func (p *Policy) Today() time.Time { return p.DayStart(p.clock.Now()) }

// DayString formats the cohort-local day containing t.
func (p *Policy) DayString(t time.Time) string { return t.In(p.loc).Format(DateLayout) }

// TodayString formats the current cohort-local day.
func (p *Policy) TodayString() string { return p.DayString(p.clock.Now()) }

// ParseDay parses a YYYY-MM-DD string as a cohort-local day.
func (p *Policy) ParseDay(raw string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, raw, p.loc)
}

// AddDays shifts a day start by n calendar days, staying on local midnight across DST.
func (p *Policy) AddDays(day time.Time, n int) time.Time {
	local := day.In(p.loc)
	return time.Date(local.Year(), local.Month(), local.Day()+n, 0, 0, 0, 0, p.loc)
}

// Expired reports whether now is strictly after expiresAt.
func (p *Policy) Expired(expiresAt time.Time) bool {
	return p.clock.Now().After(expiresAt)
}

// LastDays returns the window most recent day starts ending today, oldest first.
func (p *Policy) LastDays(window int) []time.Time {
	if window <= 0 {
		return nil
	}
	today := p.Today()
	days := make([]time.Time, window)
	for i := 0; i < window; i++ {
		days[i] = p.AddDays(today, i-(window-1))
	}
	return days
}
