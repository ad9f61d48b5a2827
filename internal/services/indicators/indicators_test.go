package indicators

import (
	"errors"
	"math"
	"testing"
	"time"

	"VoltX/internal/domain/models"
)

func closes(vals ...float64) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(vals))
	for i, v := range vals {
		out[i] = models.Candle{
			Symbol: "BTCUSDT", Timeframe: models.TF1m,
			Open: v, High: v, Low: v, Close: v, Volume: 1,
			OpenTime: base.Add(time.Duration(i) * time.Minute), Closed: true,
		}
	}
	return out
}

func ramp(n int, start, step float64) []models.Candle {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = start + float64(i)*step
	}
	return closes(vals...)
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSMA(t *testing.T) {
	v, err := SMA(closes(1, 2, 3, 4, 5), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near(v, 4) {
		t.Fatalf("expected 4, got %v", v)
	}
	_, err = SMA(closes(1, 2), 3)
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	v, err := EMA(closes(2, 4, 6), 3)
	if err != nil || !near(v, 4) {
		t.Fatalf("expected seed 4, got %v %v", v, err)
	}
	// one more bar: (10-4)*0.5+4 = 7
	v, _ = EMA(closes(2, 4, 6, 10), 3)
	if !near(v, 7) {
		t.Fatalf("expected 7, got %v", v)
	}
}

func TestRSI(t *testing.T) {
	up := ramp(15, 100, 1)
	v, err := RSI(up, 14)
	if err != nil || v != 100 {
		t.Fatalf("monotonic rise should give 100, got %v %v", v, err)
	}
	flat := closes(5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5)
	if v, _ := RSI(flat, 14); v != 50 {
		t.Fatalf("flat series should give 50, got %v", v)
	}
	down := ramp(20, 200, -1)
	if v, _ := RSI(down, 14); v != 0 {
		t.Fatalf("monotonic fall should give 0, got %v", v)
	}
	// alternating +2/-1: avg gain 1, avg loss 0.5 over the seed -> rs 2 -> 66.67
	vals := []float64{100}
	for i := 0; i < 14; i++ {
		last := vals[len(vals)-1]
		if i%2 == 0 {
			vals = append(vals, last+2)
		} else {
			vals = append(vals, last-1)
		}
	}
	v, _ = RSI(closes(vals...), 14)
	if math.Abs(v-200.0/3.0) > 1e-9 {
		t.Fatalf("expected 66.67, got %v", v)
	}
	if _, err := RSI(ramp(14, 1, 1), 14); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestBollinger(t *testing.T) {
	upper, mid, lower, err := Bollinger(closes(2, 4, 4, 4, 5, 5, 7, 9), 8, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// population sd of the classic sample is 2
	if !near(mid, 5) || !near(upper, 9) || !near(lower, 1) {
		t.Fatalf("unexpected bands %v %v %v", upper, mid, lower)
	}
}

func TestRangeATR(t *testing.T) {
	w := closes(10, 10, 10, 10)
	for i := range w {
		w[i].High = w[i].Close + 1
		w[i].Low = w[i].Close - 1
	}
	v, err := RangeATR(w, 3)
	if err != nil || !near(v, 2) {
		t.Fatalf("expected 2, got %v %v", v, err)
	}
}

func TestLongWindowsUseTrailingValues(t *testing.T) {
	w := ramp(130, 100, 0.1)
	// mean of closes 11..130 of the ramp
	if v, err := SMA(w, 120); err != nil || math.Abs(v-106.95) > 1e-9 {
		t.Fatalf("expected 106.95, got %v %v", v, err)
	}
	// a constant-step ramp keeps the ema one lag behind: last - step*(period-1)/2
	if v, err := EMA(w, 3); err != nil || math.Abs(v-(112.9-0.1)) > 1e-9 {
		t.Fatalf("expected 112.8, got %v %v", v, err)
	}
	upper, mid, lower, err := Bollinger(w, 20, 2)
	if err != nil || math.Abs(mid-111.95) > 1e-9 || !near(upper-mid, mid-lower) || upper <= mid {
		t.Fatalf("unexpected bands %v %v %v %v", upper, mid, lower, err)
	}
	if _, err := RSI(w, 1); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("rsi period 1 should be rejected, got %v", err)
	}
	if _, _, _, err := Bollinger(w[:10], 20, 2); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("short bollinger window should be insufficient, got %v", err)
	}
}

func TestRelativeVolume(t *testing.T) {
	w := closes(1, 1, 1, 1)
	w[3].Volume = 6
	w[0].Volume, w[1].Volume, w[2].Volume = 1, 2, 3
	v, err := RelativeVolume(w, 3)
	if err != nil || !near(v, 3) {
		t.Fatalf("expected 3, got %v %v", v, err)
	}
	for i := range w {
		w[i].Volume = 0
	}
	if _, err := RelativeVolume(w, 3); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("zero average volume should be insufficient, got %v", err)
	}
}

func TestHighestHigh(t *testing.T) {
	v, err := HighestHigh(closes(5, 9, 3, 4), 3)
	if err != nil || v != 9 {
		t.Fatalf("expected 9, got %v %v", v, err)
	}
	v, _ = HighestHigh(closes(5, 9, 3, 4), 2)
	if v != 4 {
		t.Fatalf("expected 4, got %v", v)
	}
}

func TestIsReversal(t *testing.T) {
	cases := []struct {
		name string
		c    models.Candle
		want bool
	}{
		{"bullish", models.Candle{Open: 10, Close: 11, High: 11, Low: 10}, true},
		{"doji", models.Candle{Open: 10, Close: 10, High: 10, Low: 10}, true},
		{"hammer", models.Candle{Open: 10, Close: 9.9, High: 10, Low: 9.5}, true},
		{"bearish", models.Candle{Open: 10, Close: 9, High: 10, Low: 8.9}, false},
	}
	for _, c := range cases {
		if got := IsReversal(c.c); got != c.want {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestComputeDeterministic(t *testing.T) {
	trend := ramp(130, 100, 0.1)
	eval := ramp(40, 110, 0.05)
	for i := range eval {
		eval[i].Volume = float64(1 + i%3)
	}
	at := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)
	p := DefaultParams()
	a, err := Compute("BTCUSDT", trend, eval, 0, at, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := Compute("BTCUSDT", trend, eval, 0, at, p)
	if *a != *b {
		t.Fatalf("snapshots differ: %+v vs %+v", a, b)
	}
	if a.Price != eval[len(eval)-1].Close || !a.AboveTrend() {
		t.Fatalf("unexpected snapshot %+v", a)
	}
	if _, err := Compute("BTCUSDT", trend[:100], eval, 0, at, p); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("short trend window should be insufficient, got %v", err)
	}
	if _, err := Compute("BTCUSDT", trend, eval[:p.MinEvalCandles()-1], 0, at, p); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("short eval window should be insufficient, got %v", err)
	}
}
