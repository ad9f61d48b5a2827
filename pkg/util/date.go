package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds or milliseconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return FromUnixAuto(ts), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// FromUnixAuto treats values above 1e11 as milliseconds.
func FromUnixAuto(ts int64) time.Time {
	if ts > 1e11 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("clock %q must be HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("clock %q: bad minute", s)
	}
	return h, m, nil
}

// TradingDay maps instants to trading days that start at a fixed wall clock time.
type TradingDay struct {
	Hour   int
	Minute int
	Loc    *time.Location
}

// NewTradingDay builds a TradingDay from "HH:MM" and an IANA location name.
func NewTradingDay(clock, location string) (TradingDay, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return TradingDay{}, err
	}
	loc, err := time.LoadLocation(location)
	if err != nil {
		return TradingDay{}, fmt.Errorf("load location: %w", err)
	}
	return TradingDay{Hour: h, Minute: m, Loc: loc}, nil
}

// Start returns the start of the trading day containing t.
func (d TradingDay) Start(t time.Time) time.Time {
	loc := d.Loc
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), d.Hour, d.Minute, 0, 0, loc)
	if lt.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// Next returns the next boundary strictly after t.
func (d TradingDay) Next(t time.Time) time.Time {
	return d.Start(t).AddDate(0, 0, 1)
}

// Same reports whether a and b fall into the same trading day.
func (d TradingDay) Same(a, b time.Time) bool {
	return d.Start(a).Equal(d.Start(b))
}
