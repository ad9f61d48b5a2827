package regime

import (
	"math"

	"VoltX/internal/domain/models"
	"VoltX/internal/domain/service"
)

// ClassifierFunc adapts a plain function to service.RegimeClassifier.
type ClassifierFunc func(inputs models.RegimeInputs) (models.RegimeState, float64)

func (f ClassifierFunc) Classify(inputs models.RegimeInputs) (models.RegimeState, float64) {
	return f(inputs)
}

// Thresholds configures ThresholdClassifier.
type Thresholds struct {
	BreadthWeight  float64
	MomentumWeight float64
	// MomentumScale is the mean distance from sma120, in percent, that saturates momentum.
	MomentumScale float64
	BullScore     float64
	BearScore     float64
}

// ThresholdClassifier scores market breadth and momentum against the trend average.
type ThresholdClassifier struct {
	cfg Thresholds
}

var _ service.RegimeClassifier = (*ThresholdClassifier)(nil)

func NewThresholdClassifier(cfg Thresholds) *ThresholdClassifier {
	if cfg.MomentumScale <= 0 {
		cfg.MomentumScale = 1
	}
	return &ThresholdClassifier{cfg: cfg}
}

// Measure returns breadth (fraction of symbols above sma120) and momentum
// (mean percent distance from sma120). Snapshots without a trend value are ignored.
func Measure(inputs models.RegimeInputs) (breadth, momentum float64, n int) {
	above := 0
	sum := 0.0
	for _, s := range inputs.Snapshots {
		if s.SMA120 <= 0 || s.Price <= 0 {
			continue
		}
		n++
		if s.Price > s.SMA120 {
			above++
		}
		sum += (s.Price - s.SMA120) / s.SMA120 * 100
	}
	if n == 0 {
		return 0, 0, 0
	}
	return float64(above) / float64(n), sum / float64(n), n
}

// Classify maps the inputs to a regime. Without usable samples it reports FLAT with score 0.
func (c *ThresholdClassifier) Classify(inputs models.RegimeInputs) (models.RegimeState, float64) {
	breadth, momentum, n := Measure(inputs)
	if n == 0 {
		return models.RegimeFlat, 0
	}
	m := math.Max(-1, math.Min(1, momentum/c.cfg.MomentumScale))
	score := c.cfg.BreadthWeight*(breadth-0.5)*2 + c.cfg.MomentumWeight*m
	switch {
	case score >= c.cfg.BullScore:
		return models.RegimeBull, score
	case score <= c.cfg.BearScore:
		return models.RegimeBear, score
	default:
		return models.RegimeFlat, score
	}
}
