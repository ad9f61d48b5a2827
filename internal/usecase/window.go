package usecase

import "VoltX/internal/domain/models"

// window keeps the latest closed candles of one timeframe in open-time order.
type window struct {
	max     int
	candles []models.Candle
}

func newWindow(max int) *window {
	return &window{max: max, candles: make([]models.Candle, 0, max)}
}

// add appends c. A candle with the same open time as the last one replaces it;
// older candles are dropped.
func (w *window) add(c models.Candle) bool {
	if n := len(w.candles); n > 0 {
		last := w.candles[n-1].OpenTime
		switch {
		case c.OpenTime.Equal(last):
			w.candles[n-1] = c
			return true
		case c.OpenTime.Before(last):
			return false
		}
	}
	w.candles = append(w.candles, c)
	if len(w.candles) > w.max {
		w.candles = append(w.candles[:0], w.candles[len(w.candles)-w.max:]...)
	}
	return true
}

func (w *window) len() int { return len(w.candles) }

func (w *window) slice() []models.Candle { return w.candles }
