package models

import "time"

type PositionState string

const (
	PositionPending   PositionState = "PENDING"
	PositionOpen      PositionState = "OPEN"
	PositionTrailing  PositionState = "TRAILING"
	PositionClosed    PositionState = "CLOSED"
	PositionCancelled PositionState = "CANCELLED"
)

// Terminal reports CLOSED or CANCELLED.
func (s PositionState) Terminal() bool {
	return s == PositionClosed || s == PositionCancelled
}

// Position is owned by the position lifecycle manager. Callers receive copies.
type Position struct {
	ID             string        `json:"id"`
	Symbol         string        `json:"symbol"`
	Strategy       Strategy      `json:"strategy"`
	State          PositionState `json:"state"`
	Size           float64       `json:"size"`
	FilledQty      float64       `json:"filled_qty"`
	EntryPrice     float64       `json:"entry_price"`
	HighWaterMark  float64       `json:"high_water_mark"`
	StopPrice      float64       `json:"stop_price"`
	HardStop       float64       `json:"hard_stop"`
	TakeProfit     float64       `json:"take_profit,omitempty"`
	OrderID        string        `json:"order_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	OpenedAt       time.Time     `json:"opened_at,omitempty"`
	ClosedAt       time.Time     `json:"closed_at,omitempty"`
	ExitPrice      float64       `json:"exit_price,omitempty"`
	ExitReason     ReasonCode    `json:"exit_reason,omitempty"`
	CancelReason   string        `json:"cancel_reason,omitempty"`
	RealizedPnlPct float64       `json:"realized_pnl_pct"`
	// Weight is the share of equity committed at entry, used to scale daily pnl.
	Weight float64 `json:"weight"`
}

// Key identifies the single-position slot.
func (p *Position) Key() PositionKey {
	return PositionKey{Symbol: p.Symbol, Strategy: p.Strategy}
}

// PositionKey is the (symbol, strategy) pair.
type PositionKey struct {
	Symbol   string
	Strategy Strategy
}

// OpenRequest asks the lifecycle manager for a new PENDING position.
type OpenRequest struct {
	Symbol     string
	Strategy   Strategy
	Size       float64
	Weight     float64
	LimitPrice float64
	At         time.Time
}
