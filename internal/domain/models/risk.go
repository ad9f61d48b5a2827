package models

import "time"

// RiskState is process-wide and has a single owner. Readers get copies.
type RiskState struct {
	ConsecutiveLosses     int       `json:"consecutive_losses"`
	DailyPnlPct           float64   `json:"daily_pnl_pct"`
	CircuitBreakerTripped bool      `json:"circuit_breaker_tripped"`
	TripReason            ErrorCode `json:"trip_reason,omitempty"`
	TripTimestamp         time.Time `json:"trip_timestamp,omitempty"`
	TradingDay            time.Time `json:"trading_day"`
	ClosedToday           int       `json:"closed_today"`
	Sequence              uint64    `json:"sequence"`
}

// CloseEvent is applied to RiskState exactly once, in close order.
type CloseEvent struct {
	PositionID     string    `json:"position_id"`
	Symbol         string    `json:"symbol"`
	Strategy       Strategy  `json:"strategy"`
	RealizedPnlPct float64   `json:"realized_pnl_pct"`
	Weight         float64   `json:"weight"`
	ClosedAt       time.Time `json:"closed_at"`
}

// GuardProfile carries regime dependent thresholds for the signal engines.
type GuardProfile struct {
	Regime        RegimeState `json:"regime"`
	DipDropMinPct float64     `json:"dip_drop_min_pct"`
	DipDropMaxPct float64     `json:"dip_drop_max_pct"`
	DipRSICeiling float64     `json:"dip_rsi_ceiling"`
	// VBS thresholds; zero keeps the engine's configured value.
	VBSAntiChasePct float64 `json:"vbs_anti_chase_pct"`
	VBSRSICeiling   float64 `json:"vbs_rsi_ceiling"`
	SizeMultiplier  float64 `json:"size_multiplier"`
}

// SizingDecision is the outcome of position sizing for one entry.
type SizingDecision struct {
	Notional float64 `json:"notional"`
	Qty      float64 `json:"qty"`
	Weight   float64 `json:"weight"`
}
