package models

import "time"

// IndicatorSnapshot is recomputed each evaluation tick and superseded, never mutated.
type IndicatorSnapshot struct {
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"price"`
	SMA120         float64 `json:"sma120"`
	RSI14          float64 `json:"rsi14"`
	BollingerUpper float64 `json:"bb_upper"`
	BollingerMid   float64 `json:"bb_mid"`
	BollingerLower float64 `json:"bb_lower"`
	RangeATR       float64 `json:"range_atr"`
	RelativeVolume float64 `json:"rel_volume"`
	High20         float64 `json:"high20"`
	EMA12          float64 `json:"ema12"`
	EMA26          float64 `json:"ema26"`
	// Reversal reports a bullish or hammer pattern on the last closed candle.
	Reversal bool `json:"reversal"`
	// Volume is the scanner status at evaluation time. Empty means not scanned.
	Volume VolumeStatus `json:"volume_status,omitempty"`
	AsOf   time.Time    `json:"as_of"`
}

// VolumeStatus classifies recent volume activity of a symbol.
type VolumeStatus string

const (
	VolumeNormal      VolumeStatus = "NORMAL"
	VolumeTrendActive VolumeStatus = "TREND_ACTIVE"
	// VolumeExhausted follows a buying climax with an overbought RSI. No entries until it cools off.
	VolumeExhausted VolumeStatus = "EXHAUSTED"
)

// AboveTrend reports whether price trades above its 120-period trend average.
func (s *IndicatorSnapshot) AboveTrend() bool {
	return s != nil && s.SMA120 > 0 && s.Price > s.SMA120
}
