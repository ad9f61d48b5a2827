package indicators

import (
	"VoltX/internal/domain/models"

	"github.com/markcheno/go-talib"
)

// All functions take candles oldest first and never modify them.

func insufficient(symbol, name string, have, need int) error {
	return models.NewError(models.CodeInsufficientData, symbol, "", "%s needs %d candles, have %d", name, need, have)
}

func symbolOf(window []models.Candle) string {
	if len(window) == 0 {
		return ""
	}
	return window[len(window)-1].Symbol
}

func closesOf(window []models.Candle) []float64 {
	out := make([]float64, len(window))
	for i, c := range window {
		out[i] = c.Close
	}
	return out
}

// SMA is the mean close of the last period candles.
func SMA(window []models.Candle, period int) (float64, error) {
	if period <= 0 || len(window) < period {
		return 0, insufficient(symbolOf(window), "sma", len(window), period)
	}
	out := talib.Sma(closesOf(window[len(window)-period:]), period)
	return out[len(out)-1], nil
}

// EMA is seeded with the SMA of the first period closes, then smoothed with 2/(period+1).
func EMA(window []models.Candle, period int) (float64, error) {
	if period <= 0 || len(window) < period {
		return 0, insufficient(symbolOf(window), "ema", len(window), period)
	}
	out := talib.Ema(closesOf(window), period)
	return out[len(out)-1], nil
}

// RSI uses Wilder smoothing over the whole window. A window without a single
// price change reads 50.
func RSI(window []models.Candle, period int) (float64, error) {
	if period < 2 || len(window) < period+1 {
		return 0, insufficient(symbolOf(window), "rsi", len(window), period+1)
	}
	closes := closesOf(window)
	if flat(closes) {
		return 50, nil
	}
	out := talib.Rsi(closes, period)
	return out[len(out)-1], nil
}

func flat(vals []float64) bool {
	for _, v := range vals[1:] {
		if v != vals[0] {
			return false
		}
	}
	return true
}

// Bollinger returns upper, middle and lower bands using the population
// standard deviation of the last period closes.
func Bollinger(window []models.Candle, period int, k float64) (upper, middle, lower float64, err error) {
	if period < 2 || len(window) < period {
		return 0, 0, 0, insufficient(symbolOf(window), "bollinger", len(window), period)
	}
	u, m, l := talib.BBands(closesOf(window[len(window)-period:]), period, k, k, talib.SMA)
	n := len(m) - 1
	return u[n], m[n], l[n], nil
}

// RangeATR is the Wilder-smoothed average true range.
func RangeATR(window []models.Candle, period int) (float64, error) {
	if period <= 0 || len(window) < period+1 {
		return 0, insufficient(symbolOf(window), "atr", len(window), period+1)
	}
	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	for i, c := range window {
		highs[i], lows[i] = c.High, c.Low
	}
	out := talib.Atr(highs, lows, closesOf(window), period)
	return out[len(out)-1], nil
}

// RelativeVolume divides the last candle's volume by the mean volume of the
// period candles before it.
func RelativeVolume(window []models.Candle, period int) (float64, error) {
	if period <= 0 || len(window) < period+1 {
		return 0, insufficient(symbolOf(window), "relative volume", len(window), period+1)
	}
	last := len(window) - 1
	sum := 0.0
	for i := last - period; i < last; i++ {
		sum += window[i].Volume
	}
	avg := sum / float64(period)
	if avg <= 0 {
		return 0, models.NewError(models.CodeInsufficientData, symbolOf(window), "", "relative volume: zero average volume")
	}
	return window[last].Volume / avg, nil
}

// HighestHigh is the maximum high of the last n candles.
func HighestHigh(window []models.Candle, n int) (float64, error) {
	if n <= 0 || len(window) < n {
		return 0, insufficient(symbolOf(window), "highest high", len(window), n)
	}
	high := window[len(window)-n].High
	for i := len(window) - n + 1; i < len(window); i++ {
		if window[i].High > high {
			high = window[i].High
		}
	}
	return high, nil
}

// IsReversal reports a bullish candle or a hammer (lower wick longer than twice the body).
func IsReversal(c models.Candle) bool {
	if c.Close >= c.Open {
		return true
	}
	return c.LowerWick() > 2*c.Body()
}
