package regime

import (
	"sync"
	"sync/atomic"
	"time"

	"VoltX/internal/domain/models"
	"VoltX/internal/domain/service"
)

// Publisher holds the current regime as an immutable versioned value.
// Readers never observe a partially updated regime.
type Publisher struct {
	current    atomic.Pointer[models.Regime]
	mu         sync.Mutex // serializes writers
	classifier service.RegimeClassifier
	minSamples int
}

var _ service.RegimeReader = (*Publisher)(nil)

// NewPublisher starts in FLAT at version 0.
func NewPublisher(classifier service.RegimeClassifier, minSamples int, now time.Time) *Publisher {
	p := &Publisher{classifier: classifier, minSamples: minSamples}
	p.current.Store(&models.Regime{State: models.RegimeFlat, EnteredAt: now, UpdatedAt: now})
	return p
}

// Current returns the latest published regime. Never nil.
func (p *Publisher) Current() *models.Regime {
	return p.current.Load()
}

// Update classifies inputs and publishes a new version. It returns the new value
// and whether the state changed. With fewer than minSamples usable snapshots the
// current regime is kept unchanged.
func (p *Publisher) Update(inputs models.RegimeInputs) (*models.Regime, bool) {
	breadth, momentum, n := Measure(inputs)
	if n < p.minSamples {
		return p.Current(), false
	}
	state, score := p.classifier.Classify(inputs)
	return p.publish(state, score, breadth, momentum, n, inputs.At)
}

// Publish stores an externally decided state.
func (p *Publisher) Publish(state models.RegimeState, score float64, at time.Time) (*models.Regime, bool) {
	return p.publish(state, score, 0, 0, 0, at)
}

func (p *Publisher) publish(state models.RegimeState, score, breadth, momentum float64, n int, at time.Time) (*models.Regime, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.current.Load()
	next := &models.Regime{
		State:     state,
		EnteredAt: prev.EnteredAt,
		Score:     score,
		Breadth:   breadth,
		Momentum:  momentum,
		Samples:   n,
		Version:   prev.Version + 1,
		UpdatedAt: at,
	}
	changed := state != prev.State
	if changed {
		next.EnteredAt = at
	}
	p.current.Store(next)
	return next, changed
}
