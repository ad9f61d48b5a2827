package repository

import (
	"context"
	"testing"
	"time"

	"VoltX/internal/domain/models"
	"VoltX/pkg/cache"
)

func TestUniverseSourceFormats(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(16)
	src := NewRedisUniverseSource(mc, "universe:current")

	if _, err := src.Latest(ctx); err == nil {
		t.Fatalf("expected error for a missing ranking")
	}

	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	if err := src.Publish(ctx, models.RankedSymbols{Symbols: []string{"BTCUSDT", "ETHUSDT"}, GeneratedAt: at}, time.Hour); err != nil {
		t.Fatalf("publish: %v", err)
	}
	r, err := src.Latest(ctx)
	if err != nil || len(r.Symbols) != 2 || !r.GeneratedAt.Equal(at) {
		t.Fatalf("unexpected ranking %+v err=%v", r, err)
	}

	_ = mc.Set(ctx, "universe:current", `["SOLUSDT"]`, time.Hour)
	r, err = src.Latest(ctx)
	if err != nil || len(r.Symbols) != 1 || r.Symbols[0] != "SOLUSDT" {
		t.Fatalf("bare array should decode, got %+v err=%v", r, err)
	}
}

func TestRiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(16)
	st := NewRedisRiskStore(mc, "risk:state")

	got, err := st.Load(ctx)
	if err != nil || got != nil {
		t.Fatalf("empty store should load nil, got %+v err=%v", got, err)
	}
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	want := models.RiskState{ConsecutiveLosses: 5, CircuitBreakerTripped: true, TripReason: models.CodeCircuitBreakerActive, TradingDay: day, Sequence: 9}
	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = st.Load(ctx)
	if err != nil || !got.CircuitBreakerTripped || got.TripReason != models.CodeCircuitBreakerActive || !got.TradingDay.Equal(day) {
		t.Fatalf("unexpected state %+v err=%v", got, err)
	}
}

type recordingQueue struct {
	msgType string
	payload interface{}
}

func (q *recordingQueue) Publish(_ context.Context, msgType string, payload interface{}) error {
	q.msgType, q.payload = msgType, payload
	return nil
}

func TestQueueAlertSink(t *testing.T) {
	q := &recordingQueue{}
	sink := NewQueueAlertSink(q, "exit_alert")
	a := models.Alert{Symbol: "BTCUSDT", PositionID: "p1", Attempts: 5}
	if err := sink.Raise(context.Background(), a); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if q.msgType != "exit_alert" || q.payload.(models.Alert).PositionID != "p1" {
		t.Fatalf("unexpected enqueue %s %+v", q.msgType, q.payload)
	}
}
