package usecase

import (
	"context"
	"testing"
	"time"

	"VoltX/internal/domain/models"
	"VoltX/internal/services/regime"
	"VoltX/internal/services/universe"
)

type fakeSnapshots struct {
	prices []float64
}

func (f *fakeSnapshots) Snapshots(symbols []string) []models.IndicatorSnapshot {
	out := make([]models.IndicatorSnapshot, 0, len(symbols))
	for i, s := range symbols {
		if i >= len(f.prices) {
			break
		}
		out = append(out, models.IndicatorSnapshot{Symbol: s, Price: f.prices[i], SMA120: 100})
	}
	return out
}

func newCycle(src *fakeSnapshots, pub *fakePublisher, m *fakeMetrics) (*RegimeCycle, *regime.Publisher) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	u := universe.NewManager(time.Hour, nil)
	u.Replace([]string{"AAA", "BBB", "CCC"}, t0)
	cls := regime.NewThresholdClassifier(regime.Thresholds{
		BreadthWeight: 0.6, MomentumWeight: 0.4, MomentumScale: 2,
		BullScore: 0.3, BearScore: -0.3,
	})
	rp := regime.NewPublisher(cls, 3, t0)
	return NewRegimeCycle(src, u, rp, pub, m, nil, time.Minute), rp
}

func TestRegimeCyclePublishesChange(t *testing.T) {
	src := &fakeSnapshots{prices: []float64{103, 102, 104}}
	pub := &fakePublisher{}
	m := &fakeMetrics{}
	c, _ := newCycle(src, pub, m)

	r := c.RunOnce(context.Background())
	if r.State != models.RegimeBull || r.Version != 1 {
		t.Fatalf("expected BULL v1, got %+v", r)
	}
	ev, ok := pub.last(models.EventRegimeChanged)
	if !ok || ev.Reason != string(models.RegimeBull) {
		t.Fatalf("expected REGIME_CHANGED event, got %+v", ev)
	}

	// same state again bumps the version but emits nothing new
	r = c.RunOnce(context.Background())
	if r.Version != 2 || pub.count(models.EventRegimeChanged) != 1 {
		t.Fatalf("unexpected second cycle %+v events=%d", r, pub.count(models.EventRegimeChanged))
	}
	if m.regime.Version != 2 {
		t.Fatalf("metrics should see the latest regime, got %+v", m.regime)
	}
}

func TestRegimeCycleKeepsRegimeWithFewSamples(t *testing.T) {
	src := &fakeSnapshots{prices: []float64{97, 96}}
	pub := &fakePublisher{}
	c, rp := newCycle(src, pub, &fakeMetrics{})

	r := c.RunOnce(context.Background())
	if r.State != models.RegimeFlat || r.Version != 0 || rp.Current() != r {
		t.Fatalf("regime should be kept, got %+v", r)
	}
	if pub.count(models.EventRegimeChanged) != 0 {
		t.Fatalf("no event expected")
	}
}
