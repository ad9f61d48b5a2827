package dip

import (
	"fmt"
	"time"

	"VoltX/internal/domain/models"
	"VoltX/internal/services/strategy"
)

// State is the lifecycle of the dip engine for one symbol.
type State string

const (
	StateWatching       State = "WATCHING"
	StateDropDetected   State = "DROP_DETECTED"
	StateEntryTriggered State = "ENTRY_TRIGGERED"
	StateOpen           State = "OPEN"
	StateClosed         State = "CLOSED"
)

// Config holds exit targets and entry filters. The drop band and RSI ceiling
// come from the regime GuardProfile instead.
type Config struct {
	TakeProfitPct float64
	StopLossPct   float64
	// BandTolerancePct lets price sit slightly above the lower band and still count as a touch.
	BandTolerancePct float64
	// TrendFilter requires EMA12 > EMA26.
	TrendFilter bool
	Cooldown    time.Duration
}

// Engine is the dip mean-reversion state machine for one symbol.
// Not safe for concurrent use.
type Engine struct {
	symbol string
	cfg    Config

	state       State
	positionID  string
	entry       float64
	takeProfit  float64
	stopLoss    float64
	exitPending bool
	closedAt    time.Time
}

// New returns a WATCHING engine for symbol.
func New(symbol string, cfg Config) *Engine {
	return &Engine{symbol: symbol, cfg: cfg, state: StateWatching}
}

func (e *Engine) State() State { return e.state }

func (e *Engine) PositionID() string { return e.positionID }

// DropPct is the percent decline of price from the 20-candle high.
func DropPct(high, price float64) float64 {
	if high <= 0 {
		return 0
	}
	return (high - price) * 100 / high
}

// Check returns the first failing entry guard under profile g, or "".
func (e *Engine) Check(snap *models.IndicatorSnapshot, g models.GuardProfile) string {
	drop := DropPct(snap.High20, snap.Price)
	switch {
	case snap.Volume == models.VolumeExhausted:
		return "volume exhausted"
	case !strategy.AtLeast(drop, g.DipDropMinPct) || !strategy.AtMost(drop, g.DipDropMaxPct):
		return fmt.Sprintf("drop %.3f%% outside [%.2f, %.2f]", drop, g.DipDropMinPct, g.DipDropMaxPct)
	case !(snap.RSI14 < g.DipRSICeiling):
		return fmt.Sprintf("rsi %.2f not below %.2f", snap.RSI14, g.DipRSICeiling)
	case snap.BollingerLower <= 0 || !strategy.AtMost(snap.Price, snap.BollingerLower*(1+e.cfg.BandTolerancePct/100)):
		return fmt.Sprintf("price %.8g above lower band %.8g", snap.Price, snap.BollingerLower)
	case !snap.Reversal:
		return "no reversal candle"
	case e.cfg.TrendFilter && snap.EMA12 <= snap.EMA26:
		return "ema12 not above ema26"
	}
	return ""
}

func (e *Engine) inDropBand(snap *models.IndicatorSnapshot, g models.GuardProfile) bool {
	drop := DropPct(snap.High20, snap.Price)
	return strategy.AtLeast(drop, g.DipDropMinPct) && strategy.AtMost(drop, g.DipDropMaxPct)
}

// Evaluate emits an ENTRY when all guards hold at once. Between WATCHING and
// DROP_DETECTED the engine follows the drop band alone.
func (e *Engine) Evaluate(snap *models.IndicatorSnapshot, g models.GuardProfile, at time.Time) *models.Signal {
	if snap == nil {
		return nil
	}
	if e.state == StateClosed && !at.Before(e.closedAt.Add(e.cfg.Cooldown)) {
		e.state = StateWatching
	}
	if e.state != StateWatching && e.state != StateDropDetected {
		return nil
	}
	if !e.inDropBand(snap, g) {
		e.state = StateWatching
		return nil
	}
	e.state = StateDropDetected
	if e.Check(snap, g) != "" {
		return nil
	}
	e.state = StateEntryTriggered
	return &models.Signal{
		Symbol:       e.symbol,
		Strategy:     models.StrategyDip,
		Kind:         models.SignalEntry,
		TriggerPrice: snap.Price,
		Timestamp:    at,
		Reason:       models.ReasonDipReversal,
	}
}

// OnEntryFailed returns a triggered engine to WATCHING.
func (e *Engine) OnEntryFailed() {
	if e.state == StateEntryTriggered {
		e.state = StateWatching
	}
}

// OnFill moves to OPEN and fixes the exit thresholds.
func (e *Engine) OnFill(positionID string, entry float64) (takeProfit, stopLoss float64) {
	e.state = StateOpen
	e.positionID = positionID
	e.entry = entry
	e.exitPending = false
	e.takeProfit = entry * (1 + e.cfg.TakeProfitPct/100)
	e.stopLoss = entry * (1 - e.cfg.StopLossPct/100)
	return e.takeProfit, e.stopLoss
}

// OnPrice emits an EXIT when the first of take-profit or stop-loss is crossed.
func (e *Engine) OnPrice(price float64, at time.Time) *models.Signal {
	if e.state != StateOpen || e.exitPending {
		return nil
	}
	var reason models.ReasonCode
	switch {
	case strategy.AtLeast(price, e.takeProfit):
		reason = models.ReasonTakeProfit
	case strategy.AtMost(price, e.stopLoss):
		reason = models.ReasonStopLoss
	default:
		return nil
	}
	e.exitPending = true
	return &models.Signal{
		Symbol:       e.symbol,
		Strategy:     models.StrategyDip,
		Kind:         models.SignalExit,
		TriggerPrice: price,
		Timestamp:    at,
		Reason:       reason,
		PositionID:   e.positionID,
	}
}

// OnClosed starts the re-entry cooldown.
func (e *Engine) OnClosed(at time.Time) {
	e.state = StateClosed
	e.closedAt = at
	e.positionID = ""
	e.exitPending = false
	e.entry, e.takeProfit, e.stopLoss = 0, 0, 0
}
