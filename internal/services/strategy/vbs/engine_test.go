package vbs

import (
	"testing"
	"time"

	"VoltX/internal/domain/models"
	"VoltX/pkg/util"
)

func testConfig() Config {
	return Config{
		BreakoutFactor:  0.7,
		AntiChasePct:    3,
		TrailingStopPct: 2,
		HardStopPct:     1.5,
		RSICeiling:      75,
	}
}

var day1 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func snap(price, sma, rsi float64) *models.IndicatorSnapshot {
	return &models.IndicatorSnapshot{Symbol: "BTCUSDT", Price: price, SMA120: sma, RSI14: rsi}
}

func guards(r models.RegimeState) models.GuardProfile {
	return models.GuardProfile{Regime: r}
}

func armed(cfg Config) *Engine {
	e := New("BTCUSDT", cfg)
	// open 105, previous range 10 -> level 112
	e.SetLevels(day1, 105, 110, 100)
	return e
}

func TestBreakoutEntryThenTrailingStopExit(t *testing.T) {
	e := armed(testConfig())
	if e.Level() != 112 {
		t.Fatalf("expected level 112, got %v", e.Level())
	}
	at := day1.Add(2 * time.Hour)
	sig := e.Evaluate(snap(113, 108, 60), guards(models.RegimeFlat), at)
	if sig == nil || sig.Kind != models.SignalEntry || sig.Reason != models.ReasonBreakout {
		t.Fatalf("expected breakout entry, got %+v", sig)
	}
	if e.State() != StateEntryTriggered {
		t.Fatalf("expected ENTRY_TRIGGERED, got %s", e.State())
	}

	tr := e.OnFill("p1", 113)
	if tr.HighWaterMark != 113 || e.State() != StateOpen {
		t.Fatalf("unexpected fill state %+v %s", tr, e.State())
	}

	tr, sig = e.OnPrice(120, at.Add(time.Minute))
	if sig != nil {
		t.Fatalf("no exit expected at 120")
	}
	if tr.HighWaterMark != 120 || !tr.StartTrailing || e.State() != StateTrailing {
		t.Fatalf("expected trailing at hwm 120, got %+v", tr)
	}
	if tr.StopPrice < 117.6-1e-9 || tr.StopPrice > 117.6+1e-9 {
		t.Fatalf("expected stop 117.6, got %v", tr.StopPrice)
	}

	tr, sig = e.OnPrice(117, at.Add(2*time.Minute))
	if sig == nil || sig.Kind != models.SignalExit || sig.Reason != models.ReasonTrailingStop || sig.PositionID != "p1" {
		t.Fatalf("expected trailing exit, got %+v", sig)
	}
	if tr.HighWaterMark != 120 {
		t.Fatalf("hwm must not decrease, got %v", tr.HighWaterMark)
	}
	if _, again := e.OnPrice(116, at.Add(3*time.Minute)); again != nil {
		t.Fatalf("exit must be emitted once")
	}
}

func TestHardStop(t *testing.T) {
	e := armed(testConfig())
	e.Evaluate(snap(113, 108, 60), guards(models.RegimeFlat), day1)
	e.OnFill("p1", 113)
	// hard stop 111.305 sits above the trailing stop 110.74
	_, sig := e.OnPrice(111.3, day1.Add(time.Minute))
	if sig == nil || sig.Reason != models.ReasonHardStop {
		t.Fatalf("expected hard stop, got %+v", sig)
	}
}

func TestEntryGuards(t *testing.T) {
	cases := []struct {
		name string
		s    *models.IndicatorSnapshot
	}{
		{"at level", snap(112, 100, 60)},
		{"chasing", snap(115.5, 100, 60)},
		{"below trend", snap(113, 114, 60)},
		{"rsi hot", snap(113, 100, 80)},
	}
	for _, tc := range cases {
		e := armed(testConfig())
		if sig := e.Evaluate(tc.s, guards(models.RegimeBull), day1); sig != nil {
			t.Fatalf("%s: expected no entry", tc.name)
		}
		if e.State() != StateArmed {
			t.Fatalf("%s: expected ARMED, got %s", tc.name, e.State())
		}
	}
	// anti-chase boundary 112 * 1.03 is accepted
	e := armed(testConfig())
	if sig := e.Evaluate(snap(112*1.03, 100, 60), guards(models.RegimeBull), day1); sig == nil {
		t.Fatalf("price at the anti-chase limit should enter")
	}
}

func TestRSIBoundaryPolicy(t *testing.T) {
	e := armed(testConfig())
	if sig := e.Evaluate(snap(113, 100, 75), guards(models.RegimeBull), day1); sig != nil {
		t.Fatalf("rsi equal to ceiling must be rejected by default")
	}
	cfg := testConfig()
	cfg.RSIInclusive = true
	e = armed(cfg)
	if sig := e.Evaluate(snap(113, 100, 75), guards(models.RegimeBull), day1); sig == nil {
		t.Fatalf("inclusive ceiling should accept rsi 75")
	}
}

func TestOptionalGates(t *testing.T) {
	cfg := testConfig()
	cfg.RequireBull = true
	cfg.RequireVolume = true
	e := armed(cfg)
	s := snap(113, 100, 60)
	s.Volume = models.VolumeTrendActive
	if e.Evaluate(s, guards(models.RegimeFlat), day1) != nil {
		t.Fatalf("bull gate should block FLAT")
	}
	s.Volume = models.VolumeNormal
	if e.Evaluate(s, guards(models.RegimeBull), day1) != nil {
		t.Fatalf("volume gate should block a quiet symbol")
	}
	s.Volume = models.VolumeTrendActive
	if e.Evaluate(s, guards(models.RegimeBull), day1) == nil {
		t.Fatalf("all gates hold")
	}
}

func TestExhaustedVolumeBlocksEntry(t *testing.T) {
	e := armed(testConfig())
	s := snap(113, 100, 60)
	s.Volume = models.VolumeExhausted
	if got := e.Check(s, guards(models.RegimeBull)); got != "volume exhausted" {
		t.Fatalf("expected exhausted rejection, got %q", got)
	}
	if e.Evaluate(s, guards(models.RegimeBull), day1) != nil || e.State() != StateArmed {
		t.Fatalf("exhausted symbol must stay ARMED without entry")
	}
	s.Volume = models.VolumeNormal
	if e.Evaluate(s, guards(models.RegimeBull), day1) == nil {
		t.Fatalf("entry expected once volume cools off")
	}
}

func TestBandBreakConfirmation(t *testing.T) {
	cfg := testConfig()
	cfg.RequireBandBreak = true
	cfg.BandTolerancePct = 0.5
	e := armed(cfg)
	s := snap(113, 100, 60)
	s.BollingerUpper = 114
	// 114 * 0.995 = 113.43
	if e.Evaluate(s, guards(models.RegimeBull), day1) != nil {
		t.Fatalf("price below the band tolerance should not enter")
	}
	s.BollingerUpper = 0
	if e.Evaluate(s, guards(models.RegimeBull), day1) != nil {
		t.Fatalf("missing band should not confirm")
	}
	s.BollingerUpper = 113.5
	if e.Evaluate(s, guards(models.RegimeBull), day1) == nil {
		t.Fatalf("price within 0.5%% of the upper band should enter")
	}
}

func TestRegimeGuardsChangeDecision(t *testing.T) {
	bull := models.GuardProfile{Regime: models.RegimeBull, VBSAntiChasePct: 3, VBSRSICeiling: 75}
	bear := models.GuardProfile{Regime: models.RegimeBear, VBSAntiChasePct: 1.5, VBSRSICeiling: 70}

	// 2% over level 112 and rsi 72 pass the bull profile only
	s := snap(114.24, 100, 72)
	if got := armed(testConfig()).Check(s, bear); got == "" {
		t.Fatalf("bear profile should reject the chase")
	}
	if armed(testConfig()).Evaluate(s, bear, day1) != nil {
		t.Fatalf("bear profile entered")
	}
	if armed(testConfig()).Evaluate(s, bull, day1) == nil {
		t.Fatalf("bull profile should enter")
	}

	s = snap(113, 100, 72)
	if got := armed(testConfig()).Check(s, bear); got != "rsi 72.00 over ceiling 70.00" {
		t.Fatalf("expected bear rsi ceiling, got %q", got)
	}
	// zero fields fall back to the engine config
	if armed(testConfig()).Evaluate(s, guards(models.RegimeBear), day1) == nil {
		t.Fatalf("empty profile should use configured thresholds")
	}
}

func TestOneEntryPerDay(t *testing.T) {
	e := armed(testConfig())
	e.Evaluate(snap(113, 100, 60), guards(models.RegimeBull), day1)
	e.OnEntryFailed()
	if e.State() != StateArmed {
		t.Fatalf("failed entry should re-arm")
	}
	e.Evaluate(snap(113, 100, 60), guards(models.RegimeBull), day1)
	e.OnFill("p1", 113)
	e.OnPrice(100, day1.Add(time.Minute))
	e.OnClosed()
	if e.State() != StateClosed {
		t.Fatalf("expected CLOSED for the rest of the day, got %s", e.State())
	}
	if e.Evaluate(snap(113, 100, 60), guards(models.RegimeBull), day1) != nil {
		t.Fatalf("second entry on the same day")
	}
	e.SetLevels(day1, 120, 130, 100)
	if e.Level() != 112 {
		t.Fatalf("level must be computed once per day")
	}

	day2 := day1.Add(24 * time.Hour)
	e.SetLevels(day2, 110, 115, 105)
	if e.State() != StateArmed || e.Level() != 117 {
		t.Fatalf("expected re-armed at 117, got %s %v", e.State(), e.Level())
	}
}

func TestCarriedPositionRearmsAfterClose(t *testing.T) {
	e := armed(testConfig())
	e.Evaluate(snap(113, 100, 60), guards(models.RegimeBull), day1)
	e.OnFill("p1", 113)
	e.SetLevels(day1.Add(24*time.Hour), 110, 115, 105)
	if e.State() != StateOpen {
		t.Fatalf("open position must survive the day roll, got %s", e.State())
	}
	e.OnPrice(100, day1.Add(25*time.Hour))
	e.OnClosed()
	if e.State() != StateArmed {
		t.Fatalf("new day entry still available, got %s", e.State())
	}
}

func TestDailyRange(t *testing.T) {
	td, _ := util.NewTradingDay("00:00", "UTC")
	d := NewDailyRange(td)
	add := func(at time.Time, o, h, l float64) {
		d.Add(models.Candle{Symbol: "BTCUSDT", Timeframe: models.TF1m, Open: o, High: h, Low: l, Close: o, OpenTime: at})
	}
	add(day1.Add(time.Hour), 100, 104, 99)
	add(day1.Add(2*time.Hour), 101, 110, 100)
	if _, _, _, _, ok := d.Levels(); ok {
		t.Fatalf("no previous day yet")
	}
	day2 := day1.Add(24 * time.Hour)
	add(day2.Add(time.Minute), 105, 106, 104)
	day, open, ph, pl, ok := d.Levels()
	if !ok || !day.Equal(day2) || open != 105 || ph != 110 || pl != 99 {
		t.Fatalf("unexpected levels %v %v %v %v %v", day, open, ph, pl, ok)
	}
	// late candle from the previous day is ignored
	add(day1.Add(23*time.Hour), 90, 200, 1)
	if _, _, ph, pl, _ := d.Levels(); ph != 110 || pl != 99 {
		t.Fatalf("late candle changed previous range")
	}
}

func TestDailyRangeSkipsGapDays(t *testing.T) {
	td, _ := util.NewTradingDay("00:00", "UTC")
	d := NewDailyRange(td)
	add := func(at time.Time, o, h, l float64) {
		d.Add(models.Candle{Symbol: "BTCUSDT", Timeframe: models.TF1m, Open: o, High: h, Low: l, Close: o, OpenTime: at})
	}
	add(day1.Add(time.Hour), 100, 110, 90)
	// day2 missing
	day3 := day1.Add(48 * time.Hour)
	add(day3.Add(time.Minute), 105, 106, 104)
	if _, _, ph, pl, ok := d.Levels(); ok || ph != 0 || pl != 0 {
		t.Fatalf("range from two days back must not arm, got %v %v %v", ph, pl, ok)
	}
	day4 := day3.Add(24 * time.Hour)
	add(day4.Add(time.Minute), 107, 108, 106)
	day, open, ph, pl, ok := d.Levels()
	if !ok || !day.Equal(day4) || open != 107 || ph != 106 || pl != 104 {
		t.Fatalf("expected day3 range, got %v %v %v %v %v", day, open, ph, pl, ok)
	}
}
