package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeUnixMillis(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got, ok := ParseTime(strconv.FormatInt(want.UnixMilli(), 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(want) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("09:30")
	if err != nil || h != 9 || m != 30 {
		t.Fatalf("unexpected %d:%d %v", h, m, err)
	}
	for _, bad := range []string{"", "24:00", "9", "10:75", "aa:bb"} {
		if _, _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestTradingDayBoundary(t *testing.T) {
	d, err := NewTradingDay("09:00", "UTC")
	if err != nil {
		t.Fatalf("new trading day: %v", err)
	}
	before := time.Date(2024, 5, 2, 8, 59, 0, 0, time.UTC)
	after := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

	if d.Same(before, after) {
		t.Fatalf("08:59 and 09:00 must be different trading days")
	}
	if got := d.Start(before); !got.Equal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", got)
	}
	if got := d.Next(before); !got.Equal(after) {
		t.Fatalf("unexpected next %v", got)
	}
	if !d.Same(after, after.Add(23*time.Hour)) {
		t.Fatalf("expected same trading day")
	}
}
