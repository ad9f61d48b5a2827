package vbs

import (
	"time"

	"VoltX/internal/domain/models"
	"VoltX/pkg/util"
)

// DailyRange aggregates candles into trading-day OHLC to derive breakout levels.
type DailyRange struct {
	td util.TradingDay

	day       time.Time
	open      float64
	high      float64
	low       float64
	prevHigh  float64
	prevLow   float64
	prevValid bool
}

// NewDailyRange returns an empty aggregate for the given trading day boundary.
func NewDailyRange(td util.TradingDay) *DailyRange {
	return &DailyRange{td: td}
}

// Add folds a candle in. Daily candles replace the aggregate for their day,
// intraday candles extend it. Out-of-order candles from older days are ignored.
func (d *DailyRange) Add(c models.Candle) {
	day := d.td.Start(c.OpenTime)
	switch {
	case d.day.IsZero():
		d.startDay(day, c)
	case day.After(d.day):
		// a gap of missed days leaves no previous range
		d.prevValid = d.open > 0 && d.td.Next(d.day).Equal(day)
		if d.prevValid {
			d.prevHigh, d.prevLow = d.high, d.low
		} else {
			d.prevHigh, d.prevLow = 0, 0
		}
		d.startDay(day, c)
	case day.Before(d.day):
		return
	default:
		if c.Timeframe == models.TF1d {
			d.open, d.high, d.low = c.Open, c.High, c.Low
			return
		}
		if c.High > d.high {
			d.high = c.High
		}
		if c.Low < d.low {
			d.low = c.Low
		}
	}
}

func (d *DailyRange) startDay(day time.Time, c models.Candle) {
	d.day = day
	d.open, d.high, d.low = c.Open, c.High, c.Low
}

// Levels returns the current day, its open and the previous day's range.
// ok is false until the trading day right before the current one has been observed.
func (d *DailyRange) Levels() (day time.Time, open, prevHigh, prevLow float64, ok bool) {
	return d.day, d.open, d.prevHigh, d.prevLow, d.prevValid && d.open > 0
}
