package dip

import (
	"testing"
	"time"

	"VoltX/internal/domain/models"
)

var (
	t0   = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	flat = models.GuardProfile{Regime: models.RegimeFlat, DipDropMinPct: 2.0, DipDropMaxPct: 2.5, DipRSICeiling: 47, SizeMultiplier: 1}
	bull = models.GuardProfile{Regime: models.RegimeBull, DipDropMinPct: 1.5, DipDropMaxPct: 2.5, DipRSICeiling: 50, SizeMultiplier: 1.2}
	bear = models.GuardProfile{Regime: models.RegimeBear, DipDropMinPct: 2.0, DipDropMaxPct: 2.5, DipRSICeiling: 40, SizeMultiplier: 0.5}
)

func cfg() Config {
	return Config{TakeProfitPct: 5, StopLossPct: 1.5}
}

func dipSnap(price, rsi float64) *models.IndicatorSnapshot {
	return &models.IndicatorSnapshot{
		Symbol: "ETHUSDT", Price: price, High20: 100, RSI14: rsi,
		BollingerLower: 98, BollingerMid: 100, BollingerUpper: 102,
		Reversal: true,
	}
}

func TestDipReversalEntryThenTakeProfit(t *testing.T) {
	e := New("ETHUSDT", cfg())
	sig := e.Evaluate(dipSnap(98, 45), flat, t0)
	if sig == nil || sig.Kind != models.SignalEntry || sig.Reason != models.ReasonDipReversal {
		t.Fatalf("expected dip entry, got %+v (%s)", sig, e.Check(dipSnap(98, 45), flat))
	}
	tp, sl := e.OnFill("d1", 98)
	if tp < 102.9-1e-9 || tp > 102.9+1e-9 || sl < 96.53-1e-9 || sl > 96.53+1e-9 {
		t.Fatalf("unexpected thresholds tp=%v sl=%v", tp, sl)
	}
	if e.OnPrice(101, t0.Add(time.Minute)) != nil {
		t.Fatalf("no exit between thresholds")
	}
	exit := e.OnPrice(102.9, t0.Add(2*time.Minute))
	if exit == nil || exit.Reason != models.ReasonTakeProfit || exit.PositionID != "d1" {
		t.Fatalf("expected take profit, got %+v", exit)
	}
	if e.OnPrice(103, t0.Add(3*time.Minute)) != nil {
		t.Fatalf("exit must be emitted once")
	}
}

func TestStopLoss(t *testing.T) {
	e := New("ETHUSDT", cfg())
	e.Evaluate(dipSnap(98, 45), flat, t0)
	e.OnFill("d1", 100)
	exit := e.OnPrice(98.5, t0.Add(time.Minute))
	if exit == nil || exit.Reason != models.ReasonStopLoss {
		t.Fatalf("expected stop loss, got %+v", exit)
	}
}

func TestGuardsMustHoldTogether(t *testing.T) {
	cases := []struct {
		name string
		mod  func(s *models.IndicatorSnapshot)
	}{
		{"rsi too high", func(s *models.IndicatorSnapshot) { s.RSI14 = 47 }},
		{"above band", func(s *models.IndicatorSnapshot) { s.BollingerLower = 97 }},
		{"no reversal", func(s *models.IndicatorSnapshot) { s.Reversal = false }},
	}
	for _, tc := range cases {
		e := New("ETHUSDT", cfg())
		s := dipSnap(98, 45)
		tc.mod(s)
		if sig := e.Evaluate(s, flat, t0); sig != nil {
			t.Fatalf("%s: expected no entry", tc.name)
		}
		if e.State() != StateDropDetected {
			t.Fatalf("%s: expected DROP_DETECTED, got %s", tc.name, e.State())
		}
	}

	e := New("ETHUSDT", cfg())
	if e.Evaluate(dipSnap(99, 30), flat, t0) != nil || e.State() != StateWatching {
		t.Fatalf("1%% drop is outside the band")
	}
	if e.Evaluate(dipSnap(97, 30), flat, t0) != nil || e.State() != StateWatching {
		t.Fatalf("3%% drop is outside the band")
	}
}

func TestRegimeProfiles(t *testing.T) {
	// 1.6% drop with rsi 45: only the looser BULL profile accepts it
	s := dipSnap(98.4, 45)
	s.BollingerLower = 98.5
	if New("X", cfg()).Evaluate(s, bull, t0) == nil {
		t.Fatalf("bull profile should accept")
	}
	if New("X", cfg()).Evaluate(s, flat, t0) != nil {
		t.Fatalf("flat profile should reject the shallow drop")
	}
	if New("X", cfg()).Evaluate(dipSnap(98, 45), bear, t0) != nil {
		t.Fatalf("bear profile should reject rsi 45")
	}
}

func TestTrendFilterAndTolerance(t *testing.T) {
	c := cfg()
	c.TrendFilter = true
	s := dipSnap(98, 45)
	s.EMA12, s.EMA26 = 99, 100
	if New("X", c).Evaluate(s, flat, t0) != nil {
		t.Fatalf("trend filter should block")
	}

	c = cfg()
	c.BandTolerancePct = 0.5
	s = dipSnap(98, 45)
	s.BollingerLower = 97.6
	if New("X", c).Evaluate(s, flat, t0) == nil {
		t.Fatalf("price within band tolerance should count as a touch")
	}
}

func TestCooldownAndEntryFailure(t *testing.T) {
	c := cfg()
	c.Cooldown = time.Hour
	e := New("ETHUSDT", c)
	e.Evaluate(dipSnap(98, 45), flat, t0)
	e.OnEntryFailed()
	if e.State() != StateWatching {
		t.Fatalf("failed entry should return to WATCHING, got %s", e.State())
	}
	e.Evaluate(dipSnap(98, 45), flat, t0)
	e.OnFill("d1", 98)
	e.OnPrice(96, t0.Add(time.Minute))
	e.OnClosed(t0.Add(time.Minute))

	if e.Evaluate(dipSnap(98, 45), flat, t0.Add(30*time.Minute)) != nil {
		t.Fatalf("entry during cooldown")
	}
	if e.Evaluate(dipSnap(98, 45), flat, t0.Add(2*time.Hour)) == nil {
		t.Fatalf("entry after cooldown expected")
	}
}

func TestExhaustedVolumeBlocksDip(t *testing.T) {
	e := New("X", cfg())
	s := dipSnap(98, 45)
	s.Volume = models.VolumeExhausted
	if got := e.Check(s, flat); got != "volume exhausted" {
		t.Fatalf("expected exhausted rejection, got %q", got)
	}
	if e.Evaluate(s, flat, t0) != nil {
		t.Fatalf("exhausted symbol entered")
	}
	s.Volume = models.VolumeNormal
	if e.Evaluate(s, flat, t0) == nil {
		t.Fatalf("entry expected once volume cools off")
	}
}
