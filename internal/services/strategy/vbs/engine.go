package vbs

import (
	"fmt"
	"math"
	"time"

	"VoltX/internal/domain/models"
	"VoltX/internal/services/strategy"
)

// State is the lifecycle of the breakout engine for one symbol.
type State string

const (
	StateWatching       State = "WATCHING"
	StateArmed          State = "ARMED"
	StateEntryTriggered State = "ENTRY_TRIGGERED"
	StateOpen           State = "OPEN"
	StateTrailing       State = "TRAILING"
	StateClosed         State = "CLOSED"
)

// Config holds the breakout thresholds. Percentages are in percent units.
// AntiChasePct and RSICeiling are defaults; a GuardProfile may override them per regime.
type Config struct {
	BreakoutFactor  float64
	AntiChasePct    float64
	TrailingStopPct float64
	HardStopPct     float64
	RSICeiling      float64
	// RSIInclusive accepts RSI equal to the ceiling.
	RSIInclusive bool
	RequireBull  bool
	// RequireVolume only enters while the volume scanner reports TREND_ACTIVE.
	RequireVolume bool
	// RequireBandBreak wants price at or near the upper Bollinger band.
	RequireBandBreak bool
	BandTolerancePct float64
}

// Trail is the stop state after a price update.
type Trail struct {
	HighWaterMark float64
	StopPrice     float64
	HardStop      float64
	// Raised is true when the high water mark moved up on this update.
	Raised bool
	// StartTrailing is true on the update that moved OPEN to TRAILING.
	StartTrailing bool
}

// Engine is the volatility breakout state machine for one symbol.
// It is not safe for concurrent use; the owning symbol worker serializes calls.
type Engine struct {
	symbol string
	cfg    Config

	state      State
	day        time.Time
	level      float64
	enteredDay time.Time

	positionID  string
	entry       float64
	hwm         float64
	stop        float64
	hardStop    float64
	exitPending bool
}

// New returns a WATCHING engine. It arms once SetLevels installs a day's level.
func New(symbol string, cfg Config) *Engine {
	return &Engine{symbol: symbol, cfg: cfg, state: StateWatching}
}

func (e *Engine) State() State           { return e.state }
func (e *Engine) Level() float64         { return e.level }
func (e *Engine) PositionID() string     { return e.positionID }
func (e *Engine) Day() time.Time         { return e.day }
func (e *Engine) HighWaterMark() float64 { return e.hwm }

// BreakoutLevel is open + (prevHigh - prevLow) * k.
func BreakoutLevel(open, prevHigh, prevLow, k float64) float64 {
	return open + (prevHigh-prevLow)*k
}

// SetLevels installs the breakout level for a trading day. The level is
// computed once per day; repeated calls for the same day are ignored.
func (e *Engine) SetLevels(day time.Time, open, prevHigh, prevLow float64) {
	if !e.day.IsZero() && !day.After(e.day) {
		return
	}
	e.day = day
	e.level = BreakoutLevel(open, prevHigh, prevLow, e.cfg.BreakoutFactor)
	switch e.state {
	case StateWatching, StateClosed:
		e.state = StateArmed
	}
}

// Check evaluates the entry guards against a snapshot and returns the first
// failing guard, or "" when all hold.
func (e *Engine) Check(snap *models.IndicatorSnapshot, g models.GuardProfile) string {
	price := snap.Price
	chase, ceiling := e.cfg.AntiChasePct, e.cfg.RSICeiling
	if g.VBSAntiChasePct > 0 {
		chase = g.VBSAntiChasePct
	}
	if g.VBSRSICeiling > 0 {
		ceiling = g.VBSRSICeiling
	}
	switch {
	case e.level <= 0:
		return "no breakout level"
	case snap.Volume == models.VolumeExhausted:
		return "volume exhausted"
	case !strategy.Above(price, e.level):
		return fmt.Sprintf("price %.8g not above level %.8g", price, e.level)
	case !strategy.AtMost(price, e.level*(1+chase/100)):
		return fmt.Sprintf("price %.8g chases level %.8g", price, e.level)
	case !snap.AboveTrend():
		return fmt.Sprintf("price %.8g not above sma120 %.8g", price, snap.SMA120)
	case !e.rsiOK(snap.RSI14, ceiling):
		return fmt.Sprintf("rsi %.2f over ceiling %.2f", snap.RSI14, ceiling)
	case e.cfg.RequireBull && g.Regime != models.RegimeBull:
		return "regime " + string(g.Regime)
	case e.cfg.RequireVolume && snap.Volume != models.VolumeTrendActive:
		return fmt.Sprintf("volume status %q not trend active", snap.Volume)
	case e.cfg.RequireBandBreak && !e.bandOK(snap):
		return fmt.Sprintf("price %.8g below bollinger upper %.8g", price, snap.BollingerUpper)
	}
	return ""
}

func (e *Engine) rsiOK(rsi, ceiling float64) bool {
	if e.cfg.RSIInclusive {
		return rsi <= ceiling
	}
	return rsi < ceiling
}

func (e *Engine) bandOK(snap *models.IndicatorSnapshot) bool {
	if snap.BollingerUpper <= 0 {
		return false
	}
	return !strategy.Below(snap.Price, snap.BollingerUpper*(1-e.cfg.BandTolerancePct/100))
}

// Evaluate emits an ENTRY signal when ARMED and every guard holds.
func (e *Engine) Evaluate(snap *models.IndicatorSnapshot, g models.GuardProfile, at time.Time) *models.Signal {
	if e.state != StateArmed || snap == nil {
		return nil
	}
	if e.Check(snap, g) != "" {
		return nil
	}
	e.state = StateEntryTriggered
	return &models.Signal{
		Symbol:       e.symbol,
		Strategy:     models.StrategyVBS,
		Kind:         models.SignalEntry,
		TriggerPrice: snap.Price,
		Timestamp:    at,
		Reason:       models.ReasonBreakout,
	}
}

// OnEntryFailed returns a triggered engine to ARMED after a cancel or reject.
func (e *Engine) OnEntryFailed() {
	if e.state == StateEntryTriggered {
		e.state = StateArmed
	}
}

// OnFill moves the engine to OPEN and seeds the stops from the fill price.
func (e *Engine) OnFill(positionID string, entry float64) Trail {
	e.state = StateOpen
	e.positionID = positionID
	e.entry = entry
	e.hwm = entry
	e.enteredDay = e.day
	e.exitPending = false
	e.stop = e.hwm * (1 - e.cfg.TrailingStopPct/100)
	e.hardStop = entry * (1 - e.cfg.HardStopPct/100)
	return e.trail(false, false)
}

// OnPrice updates the trailing stop and emits an EXIT once price falls to the
// tighter of the trailing stop and the hard stop. Only one EXIT is emitted per position.
func (e *Engine) OnPrice(price float64, at time.Time) (Trail, *models.Signal) {
	if e.state != StateOpen && e.state != StateTrailing {
		return Trail{}, nil
	}
	raised := price > e.hwm
	if raised {
		e.hwm = price
		e.stop = e.hwm * (1 - e.cfg.TrailingStopPct/100)
	}
	start := raised && e.state == StateOpen
	if start {
		e.state = StateTrailing
	}
	tr := e.trail(raised, start)

	if e.exitPending {
		return tr, nil
	}
	exitAt := math.Max(e.stop, e.hardStop)
	if !strategy.AtMost(price, exitAt) {
		return tr, nil
	}
	reason := models.ReasonTrailingStop
	if e.hardStop > e.stop {
		reason = models.ReasonHardStop
	}
	e.exitPending = true
	return tr, &models.Signal{
		Symbol:       e.symbol,
		Strategy:     models.StrategyVBS,
		Kind:         models.SignalExit,
		TriggerPrice: price,
		Timestamp:    at,
		Reason:       reason,
		PositionID:   e.positionID,
	}
}

func (e *Engine) trail(raised, start bool) Trail {
	return Trail{HighWaterMark: e.hwm, StopPrice: e.stop, HardStop: e.hardStop, Raised: raised, StartTrailing: start}
}

// OnClosed finishes the position. The engine re-arms only on a later trading day.
func (e *Engine) OnClosed() {
	e.positionID = ""
	e.exitPending = false
	e.entry, e.hwm, e.stop, e.hardStop = 0, 0, 0, 0
	if e.day.After(e.enteredDay) {
		e.state = StateArmed
		return
	}
	e.state = StateClosed
}
