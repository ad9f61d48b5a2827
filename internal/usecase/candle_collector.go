package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"VoltX/internal/domain/models"
	drepo "VoltX/internal/domain/repository"
	mid "VoltX/internal/middleware"
	"VoltX/pkg/logger"
)

// CandleCollector reads candles from the market data feed and hands them to the engine.
type CandleCollector struct {
	stream  drepo.CandleStream
	proc    mid.Proc
	metrics drepo.Metrics
	pipe    *mid.RealtimePipeline
	log     *logger.Logger
	delay   time.Duration

	mu      sync.Mutex
	symbols []string
	closing atomic.Bool
}

var errStreamClosed = errors.New("market stream closed")

// NewCandleCollector creates a collector. When pipe is nil candles go straight to proc.
func NewCandleCollector(stream drepo.CandleStream, proc mid.Proc, metrics drepo.Metrics, pipe *mid.RealtimePipeline, log *logger.Logger, reconnectDelay time.Duration) *CandleCollector {
	if log == nil {
		log = logger.Nop()
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &CandleCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe, log: log, delay: reconnectDelay}
}

// IsConnected returns true if the market stream is connected.
func (c *CandleCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects and subscribes to symbols, then consumes in the background.
func (c *CandleCollector) Start(ctx context.Context, symbols []string) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.symbols = append([]string(nil), symbols...)
	c.mu.Unlock()
	if len(symbols) > 0 {
		if err := c.stream.Subscribe(ctx, symbols); err != nil {
			return err
		}
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	ch, errCh := c.stream.Read(ctx)
	go c.consume(ctx, ch, errCh)
	return nil
}

// Resubscribe follows a universe change. Held legacy symbols stay subscribed.
func (c *CandleCollector) Resubscribe(ctx context.Context, symbols []string) {
	c.mu.Lock()
	known := make(map[string]struct{}, len(c.symbols))
	for _, s := range c.symbols {
		known[s] = struct{}{}
	}
	var added []string
	for _, s := range symbols {
		if _, ok := known[s]; !ok {
			added = append(added, s)
			c.symbols = append(c.symbols, s)
		}
	}
	c.mu.Unlock()
	if len(added) == 0 {
		return
	}
	if err := c.stream.Subscribe(ctx, added); err != nil {
		c.metrics.RecordError("stream_subscribe")
		c.log.Warn("Subscribe failed", logger.Strings("symbols", added), logger.Error(err))
		return
	}
	c.log.Info("Subscribed", logger.Strings("symbols", added))
}

// OnUniverse adapts Resubscribe to a universe listener.
func (c *CandleCollector) OnUniverse(ctx context.Context, u *models.Universe) {
	c.Resubscribe(ctx, u.Symbols)
}

func (c *CandleCollector) consume(ctx context.Context, ch <-chan *models.Candle, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err == nil {
				continue
			}
			if c.closing.Load() {
				return
			}
			if !ok {
				err = errStreamClosed
			}
			c.metrics.RecordError("stream")
			c.log.Warn("Market stream error, reconnecting", logger.Error(err))
			if !c.reconnect(ctx) {
				return
			}
			ch, errCh = c.stream.Read(ctx)
		case cd, ok := <-ch:
			if !ok {
				// the error channel reports why
				ch = nil
				continue
			}
			if cd == nil {
				continue
			}
			var err error
			if c.pipe != nil {
				err = c.pipe.Process(ctx, cd)
			} else {
				err = c.proc.Process(ctx, cd)
			}
			if err != nil {
				c.log.Debug("Candle not processed", logger.String("symbol", cd.Symbol), logger.Error(err))
			}
		}
	}
}

// reconnect retries until the stream is back or ctx is done.
func (c *CandleCollector) reconnect(ctx context.Context) bool {
	for {
		rerr := c.stream.Reconnect(ctx)
		if rerr == nil {
			c.log.Info("Market stream reconnected")
			return true
		}
		c.log.Error("Reconnect failed", logger.Error(rerr))
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return false
		}
		if c.closing.Load() {
			return false
		}
	}
}

// Shutdown stops pipeline and closes stream.
func (c *CandleCollector) Shutdown(ctx context.Context) error {
	c.closing.Store(true)
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
