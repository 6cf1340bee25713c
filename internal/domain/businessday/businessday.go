// Package businessday maps UTC instants onto calendar buckets whose day starts
// at a configurable local time instead of midnight.
//
// A business day D with offset 20:00 runs from D 20:00 local to D+1 20:00 local.
// Calendar dates are represented as time.Time values at 00:00 UTC.
package businessday

import (
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without /usr/share/zoneinfo

	"github.com/erp/profitledger/internal/domain/shared"
)

// DateLayout is the ISO calendar date layout used for bucket keys and query parameters.
const DateLayout = "2006-01-02"

// Policy is an immutable timezone plus day-start offset pair.
// The zero value is midnight-anchored UTC.
type Policy struct {
	loc     *time.Location
	hours   int
	minutes int
}

// ParseOffset parses an "HH:MM" day-start offset. Hours must be 0-23 and minutes 0-59.
func ParseOffset(hhmm string) (time.Duration, error) {
	h, m, err := parseHHMM(hhmm)
	if err != nil {
		return 0, err
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

func parseHHMM(hhmm string) (int, int, error) {
	s := strings.TrimSpace(hhmm)
	hs, ms, ok := strings.Cut(s, ":")
	if !ok || hs == "" || ms == "" {
		return 0, 0, shared.ConfigurationError("invalid business day start %q: expected HH:MM", hhmm)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, shared.ConfigurationError("invalid business day start %q: bad hours", hhmm)
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return 0, 0, shared.ConfigurationError("invalid business day start %q: bad minutes", hhmm)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, shared.ConfigurationError("invalid business day start %q: out of bounds", hhmm)
	}
	return h, m, nil
}

// NewPolicy builds a Policy from an IANA timezone name and an "HH:MM" day start.
func NewPolicy(timezone, dayStart string) (Policy, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(timezone))
	if err != nil {
		return Policy{}, shared.ConfigurationError("unknown timezone %q", timezone)
	}
	h, m, err := parseHHMM(dayStart)
	if err != nil {
		return Policy{}, err
	}
	return Policy{loc: loc, hours: h, minutes: m}, nil
}

// Location returns the policy timezone.
func (p Policy) Location() *time.Location {
	if p.loc == nil {
		return time.UTC
	}
	return p.loc
}

// Offset returns the day-start offset as a duration.
func (p Policy) Offset() time.Duration {
	return time.Duration(p.hours)*time.Hour + time.Duration(p.minutes)*time.Minute
}

// DayStart returns the offset formatted as HH:MM.
func (p Policy) DayStart() string {
	return twoDigits(p.hours) + ":" + twoDigits(p.minutes)
}

// BucketDate converts instant to local time, subtracts the day-start offset on
// the wall clock and returns the resulting calendar date.
func (p Policy) BucketDate(instant time.Time) time.Time {
	local := instant.In(p.Location())
	shifted := time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour()-p.hours, local.Minute()-p.minutes, local.Second(), local.Nanosecond(), time.UTC)
	return Date(shifted.Year(), shifted.Month(), shifted.Day())
}

// WindowToUTC returns the half-open UTC window [start, endExclusive) covering
// the business days from startDate through endDateInclusive.
func (p Policy) WindowToUTC(startDate, endDateInclusive time.Time) (time.Time, time.Time) {
	loc := p.Location()
	start := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), p.hours, p.minutes, 0, 0, loc)
	end := time.Date(endDateInclusive.Year(), endDateInclusive.Month(), endDateInclusive.Day()+1, p.hours, p.minutes, 0, 0, loc)
	return start.UTC(), end.UTC()
}

// Date returns the calendar date y-m-d as a UTC midnight time.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TruncateDate drops the clock part of t, keeping the calendar date t carries in its own location.
func TruncateDate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, shared.InvalidArgumentError("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
