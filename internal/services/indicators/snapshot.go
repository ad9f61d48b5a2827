package indicators

import (
	"time"

	"VoltX/internal/domain/models"
)

// Params holds indicator periods.
type Params struct {
	TrendPeriod     int
	RSIPeriod       int
	BollingerPeriod int
	BollingerK      float64
	ATRPeriod       int
	VolumePeriod    int
	HighPeriod      int
	FastEMA         int
	SlowEMA         int
}

// DefaultParams returns the periods used by both strategies.
func DefaultParams() Params {
	return Params{
		TrendPeriod:     120,
		RSIPeriod:       14,
		BollingerPeriod: 20,
		BollingerK:      2,
		ATRPeriod:       14,
		VolumePeriod:    20,
		HighPeriod:      20,
		FastEMA:         12,
		SlowEMA:         26,
	}
}

// MinEvalCandles is the smallest evaluation window Compute accepts.
func (p Params) MinEvalCandles() int {
	need := p.RSIPeriod + 1
	for _, n := range []int{p.BollingerPeriod, p.ATRPeriod + 1, p.VolumePeriod + 1, p.HighPeriod, p.SlowEMA, p.FastEMA} {
		if n > need {
			need = n
		}
	}
	return need
}

// Compute builds a snapshot from closed candles. The trend window feeds sma120,
// the evaluation window feeds everything else. price is the latest traded price,
// which may come from a forming candle.
func Compute(symbol string, trend, eval []models.Candle, price float64, at time.Time, p Params) (*models.IndicatorSnapshot, error) {
	sma, err := SMA(trend, p.TrendPeriod)
	if err != nil {
		return nil, err
	}
	rsi, err := RSI(eval, p.RSIPeriod)
	if err != nil {
		return nil, err
	}
	upper, mid, lower, err := Bollinger(eval, p.BollingerPeriod, p.BollingerK)
	if err != nil {
		return nil, err
	}
	atr, err := RangeATR(eval, p.ATRPeriod)
	if err != nil {
		return nil, err
	}
	relVol, err := RelativeVolume(eval, p.VolumePeriod)
	if err != nil {
		return nil, err
	}
	high, err := HighestHigh(eval, p.HighPeriod)
	if err != nil {
		return nil, err
	}
	fast, err := EMA(eval, p.FastEMA)
	if err != nil {
		return nil, err
	}
	slow, err := EMA(eval, p.SlowEMA)
	if err != nil {
		return nil, err
	}

	if price <= 0 {
		price = eval[len(eval)-1].Close
	}
	if price > high {
		high = price
	}
	return &models.IndicatorSnapshot{
		Symbol:         symbol,
		Price:          price,
		SMA120:         sma,
		RSI14:          rsi,
		BollingerUpper: upper,
		BollingerMid:   mid,
		BollingerLower: lower,
		RangeATR:       atr,
		RelativeVolume: relVol,
		High20:         high,
		EMA12:          fast,
		EMA26:          slow,
		Reversal:       IsReversal(eval[len(eval)-1]),
		AsOf:           at,
	}, nil
}
