package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"VoltX/internal/domain/models"
)

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	regime models.Regime
	closed int
}

func (m *fakeMetrics) RecordSignal(models.Strategy, models.SignalKind, models.ReasonCode) {}
func (m *fakeMetrics) RecordPositionOpened(models.Strategy)                               {}
func (m *fakeMetrics) RecordOpenPositions(int)                                            {}
func (m *fakeMetrics) RecordRisk(models.RiskState)                                        {}
func (m *fakeMetrics) RecordLastPrice(string, float64)                                    {}
func (m *fakeMetrics) RecordLatency(string, time.Duration)                                {}

func (m *fakeMetrics) RecordPositionClosed(models.Strategy, float64) {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordRegime(r models.Regime) {
	m.mu.Lock()
	m.regime = r
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (f *fakePublisher) Publish(_ context.Context, e models.Event) error {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) count(t models.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (f *fakePublisher) last(t models.EventType) (models.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].Type == t {
			return f.events[i], true
		}
	}
	return models.Event{}, false
}

type fakeJournal struct {
	mu     sync.Mutex
	closed []models.Position
}

func (j *fakeJournal) Record(_ context.Context, p models.Position) error {
	j.mu.Lock()
	j.closed = append(j.closed, p)
	j.mu.Unlock()
	return nil
}

func (j *fakeJournal) Recent(_ context.Context, symbol string, limit int) ([]models.Position, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.Position
	for i := len(j.closed) - 1; i >= 0 && len(out) < limit; i-- {
		if j.closed[i].Symbol == symbol {
			out = append(out, j.closed[i])
		}
	}
	return out, nil
}

func (j *fakeJournal) Close() error { return nil }

func (j *fakeJournal) len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.closed)
}

type fakeAlerts struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (a *fakeAlerts) Raise(_ context.Context, al models.Alert) error {
	a.mu.Lock()
	a.alerts = append(a.alerts, al)
	a.mu.Unlock()
	return nil
}

func (a *fakeAlerts) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

type fakeHistory struct {
	candles map[models.Timeframe][]models.Candle
}

func (h *fakeHistory) GetLatestNCandles(_ context.Context, _ string, n int, tf models.Timeframe) ([]models.Candle, error) {
	cs := h.candles[tf]
	if len(cs) > n {
		cs = cs[len(cs)-n:]
	}
	return cs, nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
