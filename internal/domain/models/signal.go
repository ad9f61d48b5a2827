package models

import "time"

type Strategy string

const (
	StrategyVBS Strategy = "VBS"
	StrategyDip Strategy = "DIP"
)

type SignalKind string

const (
	SignalEntry SignalKind = "ENTRY"
	SignalExit  SignalKind = "EXIT"
)

// ReasonCode explains why a signal fired.
type ReasonCode string

const (
	ReasonBreakout     ReasonCode = "BREAKOUT"
	ReasonDipReversal  ReasonCode = "DIP_REVERSAL"
	ReasonTrailingStop ReasonCode = "TRAILING_STOP"
	ReasonHardStop     ReasonCode = "HARD_STOP"
	ReasonTakeProfit   ReasonCode = "TAKE_PROFIT"
	ReasonStopLoss     ReasonCode = "STOP_LOSS"
)

type Signal struct {
	Symbol       string     `json:"symbol"`
	Strategy     Strategy   `json:"strategy"`
	Kind         SignalKind `json:"kind"`
	TriggerPrice float64    `json:"trigger_price"`
	Timestamp    time.Time  `json:"timestamp"`
	Reason       ReasonCode `json:"reason"`
	// PositionID is set on EXIT signals.
	PositionID string `json:"position_id,omitempty"`
}
