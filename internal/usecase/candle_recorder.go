package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
	mid "VoltX/internal/middleware"
	"VoltX/pkg/logger"
)

// CandleRecorder forwards candles to the engine and batches closed ones into a
// CandleStore. A storage failure never blocks evaluation.
type CandleRecorder struct {
	next    mid.Proc
	store   domrepo.CandleStore
	metrics domrepo.Metrics
	log     *logger.Logger
	batchSz int
	batchTO time.Duration

	mu    sync.Mutex
	batch []models.Candle

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewCandleRecorder creates a recorder. A nil store turns it into a pass-through.
func NewCandleRecorder(
	next mid.Proc,
	store domrepo.CandleStore,
	metrics domrepo.Metrics,
	log *logger.Logger,
	batchSz int,
	batchTO time.Duration,
) *CandleRecorder {
	if batchSz <= 0 {
		batchSz = 500
	}
	if batchTO <= 0 {
		batchTO = 5 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CandleRecorder{
		next:    next,
		store:   store,
		metrics: metrics,
		log:     log,
		batchSz: batchSz,
		batchTO: batchTO,
		stop:    make(chan struct{}),
	}
}

// Process hands c to the engine, then queues it for storage if closed.
func (r *CandleRecorder) Process(ctx context.Context, c *models.Candle) error {
	if c == nil {
		return fmt.Errorf("candle is nil")
	}
	var err error
	if r.next != nil {
		err = r.next.Process(ctx, c)
	}
	if r.store == nil || !c.Closed {
		return err
	}

	r.mu.Lock()
	r.batch = append(r.batch, *c)
	full := len(r.batch) >= r.batchSz
	r.mu.Unlock()
	if full {
		if ferr := r.Flush(ctx); ferr != nil {
			r.log.Warn("Candle batch store failed", logger.Error(ferr))
		}
	}
	return err
}

// ProcessBatch stores candles directly, bypassing the engine.
func (r *CandleRecorder) ProcessBatch(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 || r.store == nil {
		return nil
	}
	start := time.Now()
	if err := r.store.StoreCandles(ctx, candles); err != nil {
		r.metrics.RecordError("store_batch")
		return fmt.Errorf("store batch: %w", err)
	}
	r.metrics.RecordLatency("store_batch", time.Since(start))
	return nil
}

// Flush writes the pending batch. Failed candles are dropped; the feed is
// the source of truth and the store only backs warm-up.
func (r *CandleRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	pending := r.batch
	r.batch = nil
	r.mu.Unlock()
	return r.ProcessBatch(ctx, pending)
}

// Pending returns the number of candles waiting for the next flush.
func (r *CandleRecorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batch)
}

// Start flushes on every batch timeout until Close or ctx is done.
func (r *CandleRecorder) Start(ctx context.Context) {
	if r.store == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.batchTO)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				if err := r.Flush(ctx); err != nil {
					r.log.Warn("Periodic candle flush failed", logger.Error(err))
				}
			}
		}
	}()
}

// Close flushes what is left and closes the store.
func (r *CandleRecorder) Close() {
	select {
	case <-r.stop:
		return
	default:
		close(r.stop)
	}
	r.wg.Wait()
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Flush(ctx); err != nil {
		r.log.Warn("Final candle flush failed", logger.Error(err))
	}
	_ = r.store.Close()
}

var _ mid.Proc = (*CandleRecorder)(nil)
