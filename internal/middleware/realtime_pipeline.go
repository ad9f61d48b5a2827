package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, c *models.Candle) error
}

var errNilCandle = errors.New("candle nil")

// seriesKey identifies one symbol/timeframe series.
type seriesKey struct {
	symbol string
	tf     models.Timeframe
}

// RealtimePipeline sits between the market stream and the recorder.
// Intrabar updates are throttled per series and dropped on downstream errors.
// Closed bars are deduplicated and parked for redelivery when downstream fails.
type RealtimePipeline struct {
	proc      Proc
	metrics   domrepo.Metrics
	minGap    time.Duration
	bufSize   int
	transform func(*models.Candle) *models.Candle
	now       func() time.Time

	mu         sync.Mutex
	lastUpdate map[seriesKey]time.Time
	lastClosed map[seriesKey]time.Time

	parked chan *models.Candle
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	runMu  sync.Mutex
	active bool
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS caps intrabar updates per second per series. Zero disables the cap.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n <= 0 {
			p.minGap = 0
			return
		}
		p.minGap = time.Second / time.Duration(n)
	}
}

func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform rewrites candles after validation. The result is validated again.
func WithTransform(fn func(*models.Candle) *models.Candle) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *RealtimePipeline) { p.now = now }
}

func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:       proc,
		metrics:    metrics,
		minGap:     250 * time.Millisecond,
		bufSize:    1000,
		now:        time.Now,
		lastUpdate: make(map[seriesKey]time.Time),
		lastClosed: make(map[seriesKey]time.Time),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.parked = make(chan *models.Candle, p.bufSize)
	return p
}

// Start redelivers parked closed bars until ctx ends or Stop is called.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.active {
		return
	}
	p.active = true
	go p.redeliver(ctx)
}

// Stop ends redelivery and waits for the loop to exit.
func (p *RealtimePipeline) Stop() {
	p.runMu.Lock()
	active := p.active
	p.runMu.Unlock()
	p.once.Do(func() { close(p.stop) })
	if active {
		<-p.done
	}
}

// Buffered returns the number of closed bars waiting for redelivery.
func (p *RealtimePipeline) Buffered() int { return len(p.parked) }

func (p *RealtimePipeline) redeliver(ctx context.Context) {
	defer close(p.done)
	const minWait, maxWait = 50 * time.Millisecond, 2 * time.Second
	wait := minWait
	for {
		var c *models.Candle
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case c = <-p.parked:
		}
		err := p.proc.Process(ctx, c)
		if err == nil {
			p.markClosed(c)
			wait = minWait
			continue
		}
		p.metrics.RecordError("pipeline_redeliver")
		p.park(c)
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-p.stop:
			t.Stop()
			return
		case <-ctx.Done():
			t.Stop()
			return
		}
		if wait *= 2; wait > maxWait {
			wait = maxWait
		}
	}
}

// Process validates, filters and forwards one candle.
func (p *RealtimePipeline) Process(ctx context.Context, c *models.Candle) error {
	start := p.now()
	if c == nil {
		p.metrics.RecordError("pipeline_validate")
		return errNilCandle
	}
	if err := c.Validate(); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		if c = p.transform(c); c == nil {
			return nil
		}
		if err := c.Validate(); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}

	if c.Closed {
		if p.seenClosed(c) {
			p.metrics.RecordError("pipeline_duplicate")
			return nil
		}
	} else if !p.admit(c, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, c); err != nil {
		p.metrics.RecordError("pipeline_process")
		if c.Closed {
			p.park(c)
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	if c.Closed {
		p.markClosed(c)
	}
	p.metrics.RecordLatency("pipeline_process", p.now().Sub(start))
	return nil
}

func (p *RealtimePipeline) park(c *models.Candle) {
	select {
	case p.parked <- c:
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
}

// admit applies the intrabar gap per series.
func (p *RealtimePipeline) admit(c *models.Candle, now time.Time) bool {
	if p.minGap <= 0 {
		return true
	}
	k := seriesKey{c.Symbol, c.Timeframe}
	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.lastUpdate[k]; ok && now.Sub(last) < p.minGap {
		return false
	}
	p.lastUpdate[k] = now
	return true
}

// seenClosed reports a closed bar at or before the last delivered one. Streams
// replay the most recent closed kline after a reconnect.
func (p *RealtimePipeline) seenClosed(c *models.Candle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastClosed[seriesKey{c.Symbol, c.Timeframe}]
	return ok && !c.OpenTime.After(last)
}

func (p *RealtimePipeline) markClosed(c *models.Candle) {
	k := seriesKey{c.Symbol, c.Timeframe}
	p.mu.Lock()
	if c.OpenTime.After(p.lastClosed[k]) {
		p.lastClosed[k] = c.OpenTime
	}
	p.mu.Unlock()
}
