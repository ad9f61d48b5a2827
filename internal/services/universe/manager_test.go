package universe

import (
	"fmt"
	"testing"
	"time"

	"VoltX/internal/domain/models"
)

func TestReplaceNormalizesAndTruncates(t *testing.T) {
	m := NewManager(time.Hour, []string{"usdcusdt"})
	in := []string{" btcusdt", "BTCUSDT", "USDCUSDT", ""}
	for i := 0; i < 15; i++ {
		in = append(in, fmt.Sprintf("SYM%dUSDT", i))
	}
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	u := m.Replace(in, t0)

	if len(u.Symbols) != models.MaxUniverseSize {
		t.Fatalf("expected %d symbols, got %d", models.MaxUniverseSize, len(u.Symbols))
	}
	if u.Symbols[0] != "BTCUSDT" || u.Symbols[1] != "SYM0USDT" {
		t.Fatalf("unexpected order %v", u.Symbols)
	}
	if u.Contains("USDCUSDT") {
		t.Fatalf("blacklisted symbol kept")
	}
	if !u.ValidUntil.Equal(t0.Add(time.Hour)) || u.Version != 1 {
		t.Fatalf("unexpected window/version %+v", u)
	}
	if m.Expired(t0.Add(59*time.Minute)) || !m.Expired(t0.Add(time.Hour)) {
		t.Fatalf("unexpected expiry")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	m := NewManager(time.Hour, nil)
	t0 := time.Now()
	first := m.Replace([]string{"AAA", "BBB"}, t0)
	second := m.Replace([]string{"CCC"}, t0.Add(time.Hour))

	// a cycle holding the first snapshot still sees it unchanged
	if !first.Contains("AAA") || first.Contains("CCC") {
		t.Fatalf("old snapshot mutated: %+v", first)
	}
	if m.Current() != second || second.Version != 2 {
		t.Fatalf("current snapshot not replaced")
	}
}

func TestLegacyTracking(t *testing.T) {
	m := NewManager(time.Hour, nil)
	u := m.Replace([]string{"AAA", "BBB"}, time.Now())
	m.MarkOpen("BBB")
	m.MarkOpen("BBB")
	if len(m.Legacy(u)) != 0 {
		t.Fatalf("no legacy expected while in universe")
	}

	u = m.Replace([]string{"AAA"}, time.Now())
	legacy := m.Legacy(u)
	if len(legacy) != 1 || legacy[0] != "BBB" {
		t.Fatalf("expected BBB legacy, got %v", legacy)
	}
	if Eligible(u, "BBB") || !m.Managed(u, "BBB") {
		t.Fatalf("legacy symbol must be managed but not eligible")
	}

	m.MarkFlat("BBB")
	if !m.Managed(u, "BBB") {
		t.Fatalf("second position still open")
	}
	m.MarkFlat("BBB")
	if m.Managed(u, "BBB") || len(m.Legacy(u)) != 0 {
		t.Fatalf("flat symbol should be released")
	}
}
