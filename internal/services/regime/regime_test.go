package regime

import (
	"sync"
	"testing"
	"time"

	"VoltX/internal/domain/models"
)

func snaps(prices ...float64) []models.IndicatorSnapshot {
	out := make([]models.IndicatorSnapshot, len(prices))
	for i, p := range prices {
		out[i] = models.IndicatorSnapshot{Symbol: "S", Price: p, SMA120: 100}
	}
	return out
}

func defaultClassifier() *ThresholdClassifier {
	return NewThresholdClassifier(Thresholds{
		BreadthWeight: 0.6, MomentumWeight: 0.4, MomentumScale: 2,
		BullScore: 0.3, BearScore: -0.3,
	})
}

func TestThresholdClassifier(t *testing.T) {
	c := defaultClassifier()
	cases := []struct {
		name   string
		prices []float64
		want   models.RegimeState
	}{
		{"all above", []float64{103, 102, 104}, models.RegimeBull},
		{"all below", []float64{97, 98, 96}, models.RegimeBear},
		{"mixed", []float64{101, 99, 100.5, 99.5}, models.RegimeFlat},
	}
	for _, tc := range cases {
		got, _ := c.Classify(models.RegimeInputs{Snapshots: snaps(tc.prices...)})
		if got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
	if got, score := c.Classify(models.RegimeInputs{}); got != models.RegimeFlat || score != 0 {
		t.Fatalf("empty inputs should be FLAT/0, got %s/%v", got, score)
	}
}

func TestPublisherVersioning(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPublisher(defaultClassifier(), 3, t0)
	if p.Current().State != models.RegimeFlat || p.Current().Version != 0 {
		t.Fatalf("unexpected initial regime %+v", p.Current())
	}

	t1 := t0.Add(time.Minute)
	r, changed := p.Update(models.RegimeInputs{Snapshots: snaps(103, 102, 104), At: t1})
	if !changed || r.State != models.RegimeBull || r.Version != 1 || !r.EnteredAt.Equal(t1) {
		t.Fatalf("expected change to BULL v1, got %+v changed=%v", r, changed)
	}

	t2 := t1.Add(time.Minute)
	r, changed = p.Update(models.RegimeInputs{Snapshots: snaps(104, 103, 105), At: t2})
	if changed || r.Version != 2 || !r.EnteredAt.Equal(t1) || !r.UpdatedAt.Equal(t2) {
		t.Fatalf("same state should keep enteredAt, got %+v", r)
	}

	// below minimum sample size the regime is kept
	r, changed = p.Update(models.RegimeInputs{Snapshots: snaps(90), At: t2.Add(time.Minute)})
	if changed || r.Version != 2 || r.State != models.RegimeBull {
		t.Fatalf("small sample should be ignored, got %+v", r)
	}
}

func TestClassifierFuncSwap(t *testing.T) {
	always := ClassifierFunc(func(models.RegimeInputs) (models.RegimeState, float64) {
		return models.RegimeBear, -1
	})
	p := NewPublisher(always, 1, time.Now())
	r, changed := p.Update(models.RegimeInputs{Snapshots: snaps(120), At: time.Now()})
	if !changed || r.State != models.RegimeBear {
		t.Fatalf("custom classifier not used: %+v", r)
	}
}

func TestPublisherConcurrentReaders(t *testing.T) {
	p := NewPublisher(defaultClassifier(), 1, time.Now())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for j := 0; j < 500; j++ {
				r := p.Current()
				if r == nil || r.Version < last {
					t.Errorf("version went backwards or nil regime")
					return
				}
				last = r.Version
			}
		}()
	}
	for i := 0; i < 200; i++ {
		price := 95.0
		if i%2 == 0 {
			price = 105
		}
		p.Update(models.RegimeInputs{Snapshots: snaps(price), At: time.Now()})
	}
	wg.Wait()
	if p.Current().Version != 200 {
		t.Fatalf("expected version 200, got %d", p.Current().Version)
	}
}
