package models

import "time"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderRequest struct {
	ClientID   string  `json:"client_id"`
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Qty        float64 `json:"qty"`
	LimitPrice float64 `json:"limit_price,omitempty"`
	// Tolerance is the accepted slippage from LimitPrice, in percent.
	Tolerance float64 `json:"tolerance_pct,omitempty"`
}

type Fill struct {
	OrderID  string    `json:"order_id"`
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Price    float64   `json:"price"`
	Qty      float64   `json:"qty"`
	Fee      float64   `json:"fee"`
	FilledAt time.Time `json:"filled_at"`
}
