package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
	"VoltX/internal/service/ratelimit"
	"VoltX/pkg/logger"
)

// RouterConfig controls order submission timeouts and the exit retry policy.
type RouterConfig struct {
	FillTimeout time.Duration
	RetryBase   time.Duration
	RetryMax    time.Duration
	// AlertAfter is the number of failed exit attempts before operators are alerted.
	AlertAfter     int
	Tolerance      float64
	ToleranceDecay float64
	ToleranceFloor float64
	// AlertEvery bounds escalations per symbol.
	AlertEvery time.Duration
}

// EntryResult is posted back to the symbol worker once an entry order settles.
type EntryResult struct {
	PositionID string
	Strategy   models.Strategy
	Fill       *models.Fill
	Err        error
}

// ExitResult is posted back once an exit order fills or retries are abandoned.
type ExitResult struct {
	PositionID string
	Strategy   models.Strategy
	Reason     models.ReasonCode
	Fill       *models.Fill
	Attempts   int
	Err        error
}

// OrderRouter submits orders off the worker goroutine. Entries are bounded by the
// fill timeout; exits retry until filled because a failed exit leaves risk open.
type OrderRouter struct {
	gw        domrepo.ExecutionGateway
	alerts    domrepo.AlertSink
	publisher domrepo.EventPublisher
	metrics   domrepo.Metrics
	limiter   *ratelimit.Limiter
	log       *logger.Logger
	cfg       RouterConfig
	now       func() time.Time
	wg        sync.WaitGroup
}

func NewOrderRouter(gw domrepo.ExecutionGateway, alerts domrepo.AlertSink, publisher domrepo.EventPublisher, metrics domrepo.Metrics, limiter *ratelimit.Limiter, log *logger.Logger, cfg RouterConfig) *OrderRouter {
	if cfg.FillTimeout <= 0 {
		cfg.FillTimeout = 30 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = cfg.RetryBase
	}
	if cfg.AlertAfter <= 0 {
		cfg.AlertAfter = 5
	}
	if cfg.AlertEvery <= 0 {
		cfg.AlertEvery = time.Minute
	}
	if limiter == nil {
		limiter = ratelimit.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OrderRouter{
		gw: gw, alerts: alerts, publisher: publisher, metrics: metrics,
		limiter: limiter, log: log, cfg: cfg, now: time.Now,
	}
}

// ToleranceAt is the accepted slippage for exit attempt i (0-based):
// max(base * decay^i, floor).
func (r *OrderRouter) ToleranceAt(i int) float64 {
	tol := r.cfg.Tolerance
	if r.cfg.ToleranceDecay > 0 {
		tol *= math.Pow(r.cfg.ToleranceDecay, float64(i))
	}
	if tol < r.cfg.ToleranceFloor {
		tol = r.cfg.ToleranceFloor
	}
	return tol
}

// BackoffAt is the wait after failed exit attempt i: min(base * 2^i, max).
func (r *OrderRouter) BackoffAt(i int) time.Duration {
	if i > 30 {
		return r.cfg.RetryMax
	}
	d := r.cfg.RetryBase << uint(i)
	if d <= 0 || d > r.cfg.RetryMax {
		return r.cfg.RetryMax
	}
	return d
}

// SubmitEntry places a buy for a PENDING position. done runs on the router goroutine.
func (r *OrderRouter) SubmitEntry(ctx context.Context, pos models.Position, limit float64, done func(EntryResult)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		req := models.OrderRequest{
			ClientID:   pos.ID,
			Symbol:     pos.Symbol,
			Side:       models.SideBuy,
			Qty:        pos.Size,
			LimitPrice: limit,
			Tolerance:  r.cfg.Tolerance,
		}
		octx, cancel := context.WithTimeout(ctx, r.cfg.FillTimeout)
		start := r.now()
		fill, err := r.gw.SubmitOrder(octx, req)
		cancel()
		r.metrics.RecordLatency("order_entry", r.now().Sub(start))

		if err != nil && models.CodeOf(err) == models.CodeTimeout {
			// the router may still hold the order; cancel by client id
			cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
			if cerr := r.gw.CancelOrder(cctx, pos.ID); cerr != nil {
				r.log.Warn("Cancel after entry timeout failed", logger.String("position_id", pos.ID), logger.Error(cerr))
			}
			ccancel()
		}
		if err != nil {
			r.metrics.RecordError("order_entry")
			// a partial fill still opens the position with the filled quantity
			if fill == nil || fill.Qty <= 0 {
				fill = nil
			} else {
				err = nil
			}
		}
		done(EntryResult{PositionID: pos.ID, Strategy: pos.Strategy, Fill: fill, Err: err})
	}()
}

// SubmitExit sells the filled quantity of pos. Attempts tighten the limit
// tolerance and back off exponentially; after AlertAfter failures operators are
// alerted, and retries continue until the order fills or ctx is done.
func (r *OrderRouter) SubmitExit(ctx context.Context, pos models.Position, price float64, reason models.ReasonCode, done func(ExitResult)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		done(r.exit(ctx, pos, price, reason))
	}()
}

func (r *OrderRouter) exit(ctx context.Context, pos models.Position, price float64, reason models.ReasonCode) ExitResult {
	remaining := pos.FilledQty
	if remaining <= 0 {
		remaining = pos.Size
	}
	res := ExitResult{PositionID: pos.ID, Strategy: pos.Strategy, Reason: reason}
	var notional, filled, fees float64
	var lastErr error

	for attempt := 0; ; attempt++ {
		req := models.OrderRequest{
			ClientID:   fmt.Sprintf("%s-exit-%d", pos.ID, attempt),
			Symbol:     pos.Symbol,
			Side:       models.SideSell,
			Qty:        remaining,
			LimitPrice: price,
			Tolerance:  r.ToleranceAt(attempt),
		}
		octx, cancel := context.WithTimeout(ctx, r.cfg.FillTimeout)
		start := r.now()
		fill, err := r.gw.SubmitOrder(octx, req)
		cancel()
		r.metrics.RecordLatency("order_exit", r.now().Sub(start))
		res.Attempts = attempt + 1

		if fill != nil && fill.Qty > 0 {
			notional += fill.Price * fill.Qty
			filled += fill.Qty
			fees += fill.Fee
			remaining -= fill.Qty
			if err == nil || remaining <= 1e-12 {
				res.Fill = &models.Fill{
					OrderID:  fill.OrderID,
					Symbol:   pos.Symbol,
					Side:     models.SideSell,
					Price:    notional / filled,
					Qty:      filled,
					Fee:      fees,
					FilledAt: fill.FilledAt,
				}
				return res
			}
		}
		lastErr = err
		r.metrics.RecordError("order_exit")
		r.log.Warn("Exit order failed",
			logger.String("symbol", pos.Symbol),
			logger.String("position_id", pos.ID),
			logger.Int("attempt", attempt+1),
			logger.Float64("tolerance_pct", req.Tolerance),
			logger.Error(err),
		)
		if attempt+1 >= r.cfg.AlertAfter {
			r.escalate(ctx, pos, attempt+1, err)
		}

		select {
		case <-time.After(r.BackoffAt(attempt)):
		case <-ctx.Done():
			res.Err = fmt.Errorf("exit %s abandoned after %d attempts: %w", pos.ID, attempt+1, lastErr)
			return res
		}
	}
}

// escalate raises an urgent alert and an EXIT_ESCALATED event, at most once per
// AlertEvery per symbol.
func (r *OrderRouter) escalate(ctx context.Context, pos models.Position, attempts int, err error) {
	if !r.limiter.Allow("exit:"+pos.Symbol, 1, 1/r.cfg.AlertEvery.Seconds()) {
		return
	}
	at := r.now()
	r.log.Error("Exit escalated",
		logger.String("symbol", pos.Symbol),
		logger.String("position_id", pos.ID),
		logger.Int("attempts", attempts),
		logger.Error(err),
	)
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if r.alerts != nil {
		if aerr := r.alerts.Raise(ctx, models.Alert{
			Symbol: pos.Symbol, Strategy: pos.Strategy, PositionID: pos.ID,
			Attempts: attempts, LastError: msg, RaisedAt: at,
		}); aerr != nil {
			r.log.Error("Failed to raise alert", logger.String("symbol", pos.Symbol), logger.Error(aerr))
		}
	}
	if r.publisher != nil {
		ev := models.NewEvent(models.EventExitEscalated, pos.Symbol, pos.Strategy, at).With("attempts", float64(attempts))
		ev.Reason = string(models.CodeOf(err))
		if perr := r.publisher.Publish(ctx, ev); perr != nil {
			r.log.Warn("Failed to publish escalation", logger.Error(perr))
		}
	}
}

// Wait blocks until every in-flight order goroutine has returned.
func (r *OrderRouter) Wait() { r.wg.Wait() }
