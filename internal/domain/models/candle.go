package models

import (
	"fmt"
	"time"
)

// Candle represents an OHLCV bar. A closed candle is never modified.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"tf"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	// Closed is false for intrabar updates of the forming candle.
	Closed bool `json:"closed"`
}

// Validate checks the candle is well formed.
func (c Candle) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if !IsValidTimeframe(c.Timeframe) {
		return fmt.Errorf("timeframe invalid: %q", c.Timeframe)
	}
	if c.OpenTime.IsZero() {
		return fmt.Errorf("open time missing")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 || c.Volume < 0 {
		return fmt.Errorf("non-positive price or negative volume")
	}
	if c.High < c.Low {
		return fmt.Errorf("high below low")
	}
	return nil
}

// End returns the close time, deriving it from the timeframe when absent.
func (c Candle) End() time.Time {
	if !c.CloseTime.IsZero() {
		return c.CloseTime
	}
	return c.OpenTime.Add(c.Timeframe.Duration())
}

// Body is |close - open|.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// LowerWick is the distance from the body bottom to the low.
func (c Candle) LowerWick() float64 {
	bottom := c.Open
	if c.Close < bottom {
		bottom = c.Close
	}
	return bottom - c.Low
}

// UpperWick is the distance from the body top to the high.
func (c Candle) UpperWick() float64 {
	top := c.Open
	if c.Close > top {
		top = c.Close
	}
	return c.High - top
}
