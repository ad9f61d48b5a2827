package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"VoltX/internal/domain/models"
)

type memStore struct {
	mu     sync.Mutex
	stored []models.Candle
	fail   bool
	closed bool
}

func (s *memStore) StoreCandles(_ context.Context, cs []models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("clickhouse unavailable")
	}
	s.stored = append(s.stored, cs...)
	return nil
}

func (s *memStore) Close() error {
	s.closed = true
	return nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

func TestCandleRecorderBatchesClosedCandles(t *testing.T) {
	next := &captureProc{}
	store := &memStore{}
	r := NewCandleRecorder(next, store, &fakeMetrics{}, nil, 2, time.Hour)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	open := &models.Candle{Symbol: "BTCUSDT", Timeframe: models.TF1m, OpenTime: t0}
	closed := &models.Candle{Symbol: "BTCUSDT", Timeframe: models.TF1m, OpenTime: t0, Closed: true}
	for _, c := range []*models.Candle{open, closed} {
		if err := r.Process(context.Background(), c); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if len(next.got) != 2 {
		t.Fatalf("every candle must reach the engine, got %d", len(next.got))
	}
	if store.len() != 0 || r.Pending() != 1 {
		t.Fatalf("only closed candles are queued, pending=%d", r.Pending())
	}

	_ = r.Process(context.Background(), closed)
	if store.len() != 2 || r.Pending() != 0 {
		t.Fatalf("full batch should flush, stored=%d", store.len())
	}

	_ = r.Process(context.Background(), closed)
	r.Close()
	if store.len() != 3 || !store.closed {
		t.Fatalf("close should flush and close the store, stored=%d", store.len())
	}
}

func TestCandleRecorderStoreFailureDoesNotBlockEngine(t *testing.T) {
	next := &captureProc{}
	m := &fakeMetrics{}
	r := NewCandleRecorder(next, &memStore{fail: true}, m, nil, 1, time.Hour)
	c := &models.Candle{Symbol: "ETHUSDT", Timeframe: models.TF1m, Closed: true}
	if err := r.Process(context.Background(), c); err != nil {
		t.Fatalf("storage errors must not surface to the feed: %v", err)
	}
	if len(next.got) != 1 || m.errors["store_batch"] != 1 {
		t.Fatalf("unexpected state engine=%d errors=%v", len(next.got), m.errors)
	}
}
