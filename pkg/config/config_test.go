package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := c.Strategy
	if s.BreakoutFactor != 0.7 || s.TrailingStopPct != 2.0 || s.HardStopPct != 1.5 || s.AntiChasePct != 3.0 {
		t.Fatalf("unexpected vbs defaults %+v", s)
	}
	if s.VBSRSICeiling != 75 || s.VBSRSIInclusive {
		t.Fatalf("unexpected rsi ceiling defaults %v %v", s.VBSRSICeiling, s.VBSRSIInclusive)
	}
	if len(s.DipDropRangePct) != 2 || s.DipDropRangePct[0] != 1.5 || s.DipDropRangePct[1] != 2.5 {
		t.Fatalf("unexpected drop range %v", s.DipDropRangePct)
	}
	if s.DipTakeProfitPct != 5.0 || s.DipStopLossPct != 1.5 {
		t.Fatalf("unexpected dip exits %v %v", s.DipTakeProfitPct, s.DipStopLossPct)
	}
	if c.Risk.LossStreak != 5 || c.Risk.DailyLossLimitPct != 3.0 {
		t.Fatalf("unexpected breaker defaults %+v", c.Risk)
	}
	if c.Universe.RefreshMinutes != 60 {
		t.Fatalf("unexpected refresh %d", c.Universe.RefreshMinutes)
	}
	if c.Recorder.Backend != "none" || c.Recorder.BatchSize != 500 || c.Recorder.BatchTimeout != 5*time.Second {
		t.Fatalf("unexpected recorder defaults %+v", c.Recorder)
	}
	if s.FillTimeout() != 30*time.Second {
		t.Fatalf("unexpected fill timeout %v", s.FillTimeout())
	}
}

func TestParseProfileDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := c.Risk.Profiles
	if p.Bull.SizeMultiplier <= p.Flat.SizeMultiplier || p.Flat.SizeMultiplier <= p.Bear.SizeMultiplier {
		t.Fatalf("multipliers must decrease bull > flat > bear: %+v", p)
	}
	if p.Bull.DipDropMinPct != 1.5 || p.Flat.DipDropMinPct != 2.0 {
		t.Fatalf("unexpected drop bands %+v", p)
	}
	if p.Bull.DipRSICeiling != 50 || p.Flat.DipRSICeiling != 47 || p.Bear.DipRSICeiling != 40 {
		t.Fatalf("unexpected rsi ceilings %+v", p)
	}
	if p.Bull.VBSAntiChasePct != 3 || p.Flat.VBSAntiChasePct != 3 || p.Bear.VBSAntiChasePct != 1.5 {
		t.Fatalf("unexpected vbs anti-chase %+v", p)
	}
	if p.Bull.VBSRSICeiling != 75 || p.Bear.VBSRSICeiling != 70 {
		t.Fatalf("unexpected vbs rsi ceilings %+v", p)
	}
}

func TestParseScannerDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := c.Strategy
	if !s.VolumeScanner || s.RelVolumeThreshold != 3 || s.ClimaxThreshold != 5 {
		t.Fatalf("unexpected scanner defaults %+v", s)
	}
	if s.ClimaxWickRatio != 0.5 || s.ClimaxDropPct != 3 || s.ExhaustionRSI != 70 || s.ExhaustionCooldown != time.Hour {
		t.Fatalf("unexpected climax defaults %+v", s)
	}
	if s.VBSBandConfirm || s.VBSBandTolerance != 0.5 {
		t.Fatalf("band confirmation must be opt-in, got %v %v", s.VBSBandConfirm, s.VBSBandTolerance)
	}

	c, err = Parse([]byte("environment: test\nstrategy:\n  volume_scanner: false\n  vbs_band_confirm: true\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Strategy.VolumeScanner || !c.Strategy.VBSBandConfirm {
		t.Fatalf("overrides ignored %+v", c.Strategy)
	}
}

func TestParseOverrides(t *testing.T) {
	y := `
environment: prod
strategy:
  breakout_factor: 0.5
  vbs_rsi_inclusive: true
  dip_drop_range_pct: [1.0, 3.0]
risk:
  circuit_breaker_loss_streak: 3
`
	c, err := Parse([]byte(y))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Strategy.BreakoutFactor != 0.5 || !c.Strategy.VBSRSIInclusive {
		t.Fatalf("overrides not applied %+v", c.Strategy)
	}
	if c.Risk.LossStreak != 3 {
		t.Fatalf("unexpected streak %d", c.Risk.LossStreak)
	}
	if c.Risk.Profiles.Bull.DipDropMinPct != 1.0 {
		t.Fatalf("profile must follow drop range, got %v", c.Risk.Profiles.Bull.DipDropMinPct)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"missing environment": "strategy:\n  breakout_factor: 0.7\n",
		"inverted drop band":  "environment: x\nstrategy:\n  dip_drop_range_pct: [3, 2]\n",
		"bad timeframe":       "environment: x\nstrategy:\n  trend_timeframe: 7m\n",
		"bad reset clock":     "environment: x\nstrategy:\n  trading_day_reset: \"25:00\"\n",
		"http without url":    "environment: x\nexecution:\n  mode: http\n",
		"kafka feed brokers":  "environment: x\nfeed:\n  source: kafka\n",
		"recorder without ch": "environment: x\nrecorder:\n  backend: clickhouse\n",
		"unknown recorder":    "environment: x\nrecorder:\n  backend: s3\n",
	}
	for name, y := range cases {
		if _, err := Parse([]byte(y)); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if !strings.Contains(err.Error(), "config") {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
}

func TestLoadShippedConfig(t *testing.T) {
	c, err := Load("../../config/config.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Feed.Source != "websocket" || len(c.Feed.Symbols) == 0 {
		t.Fatalf("unexpected feed %+v", c.Feed)
	}
	if c.Execution.Mode != "paper" || c.Recorder.Backend != "none" {
		t.Fatalf("shipped config must run without infrastructure, got %s/%s", c.Execution.Mode, c.Recorder.Backend)
	}
}
