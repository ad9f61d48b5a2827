package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
	domsvc "VoltX/internal/domain/service"
	"VoltX/internal/services/indicators"
	"VoltX/internal/services/position"
	"VoltX/internal/services/risk"
	"VoltX/internal/services/scanner"
	"VoltX/internal/services/strategy/dip"
	"VoltX/internal/services/strategy/vbs"
	"VoltX/internal/services/universe"
	"VoltX/pkg/logger"
	"VoltX/pkg/util"
)

var ErrEngineStopped = errors.New("engine not running")

type EngineConfig struct {
	TrendTF models.Timeframe
	EvalTF  models.Timeframe
	// WindowSize bounds the candles kept per timeframe.
	WindowSize    int
	WarmupCandles int
	// MaxStaleness drops candles that closed longer ago than this. Zero disables the check.
	MaxStaleness     time.Duration
	EvaluateIntrabar bool
	Equity           float64
	InboxSize        int
	SweepInterval    time.Duration
	Params           indicators.Params
	VBS              vbs.Config
	Dip              dip.Config
	// Scanner stamps snapshots with a volume status when enabled.
	Scanner    scanner.Config
	TradingDay util.TradingDay
}

// Engine fans candles out to one SymbolWorker per symbol. Workers run
// concurrently; each processes its own queue in order.
type Engine struct {
	cfg       EngineConfig
	universe  *universe.Manager
	regime    domsvc.RegimeReader
	risk      *risk.Manager
	positions *position.Manager
	router    *OrderRouter
	history   domrepo.CandleHistory
	publisher domrepo.EventPublisher
	journal   domrepo.TradeJournal
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	workers map[string]*SymbolWorker
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	errMu  sync.Mutex
	errors map[string]int
}

type EngineDeps struct {
	Universe  *universe.Manager
	Regime    domsvc.RegimeReader
	Risk      *risk.Manager
	Positions *position.Manager
	Router    *OrderRouter
	History   domrepo.CandleHistory
	Publisher domrepo.EventPublisher
	Journal   domrepo.TradeJournal
	Metrics   domrepo.Metrics
	Log       *logger.Logger
	Now       func() time.Time
}

func NewEngine(cfg EngineConfig, deps EngineDeps) *Engine {
	if cfg.TrendTF == "" {
		cfg.TrendTF = models.TF3m
	}
	if cfg.EvalTF == "" {
		cfg.EvalTF = models.TF1m
	}
	if cfg.Params.TrendPeriod == 0 {
		cfg.Params = indicators.DefaultParams()
	}
	if cfg.WindowSize < cfg.Params.TrendPeriod+1 {
		cfg.WindowSize = cfg.Params.TrendPeriod * 2
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Second
	}
	e := &Engine{
		cfg:       cfg,
		universe:  deps.Universe,
		regime:    deps.Regime,
		risk:      deps.Risk,
		positions: deps.Positions,
		router:    deps.Router,
		history:   deps.History,
		publisher: deps.Publisher,
		journal:   deps.Journal,
		metrics:   deps.Metrics,
		log:       deps.Log,
		now:       deps.Now,
		workers:   make(map[string]*SymbolWorker),
		errors:    make(map[string]int),
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Start begins accepting candles and starts workers for the current universe.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.ctx != nil {
		e.mu.Unlock()
		return nil
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	u := e.universe.Current()
	for _, s := range u.Symbols {
		e.Ensure(s)
	}
	e.log.Info("Engine started",
		logger.Strings("symbols", u.Symbols),
		logger.String("trend_tf", string(e.cfg.TrendTF)),
		logger.String("eval_tf", string(e.cfg.EvalTF)),
	)
	return nil
}

// Stop cancels every worker and waits for in-flight orders to return.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		if e.router != nil {
			e.router.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
		e.log.Info("Engine stopped", logger.Int("open_positions", e.positions.Count()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure returns the worker for symbol, starting it if needed.
func (e *Engine) Ensure(symbol string) *SymbolWorker {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil || e.ctx.Err() != nil {
		return nil
	}
	if w, ok := e.workers[symbol]; ok {
		return w
	}
	wctx, cancel := context.WithCancel(e.ctx)
	w := newSymbolWorker(e, symbol, wctx, cancel)
	e.workers[symbol] = w
	e.wg.Add(1)
	go w.run(wctx)
	return w
}

// Process routes a candle to its symbol worker. Candles of symbols outside the
// universe are dropped unless a position is still held there.
func (e *Engine) Process(ctx context.Context, c *models.Candle) error {
	if c == nil {
		return nil
	}
	if !e.universe.Managed(e.universe.Current(), c.Symbol) {
		return nil
	}
	w := e.Ensure(c.Symbol)
	if w == nil {
		return ErrEngineStopped
	}
	return w.post(ctx, message{candle: c})
}

// Snapshots returns the latest indicator snapshot of each given symbol that has one.
func (e *Engine) Snapshots(symbols []string) []models.IndicatorSnapshot {
	e.mu.Lock()
	ws := make([]*SymbolWorker, 0, len(symbols))
	for _, s := range symbols {
		if w, ok := e.workers[s]; ok {
			ws = append(ws, w)
		}
	}
	e.mu.Unlock()

	out := make([]models.IndicatorSnapshot, 0, len(ws))
	for _, w := range ws {
		if s := w.snap.Load(); s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// Snapshot returns the latest snapshot of one symbol.
func (e *Engine) Snapshot(symbol string) (*models.IndicatorSnapshot, bool) {
	e.mu.Lock()
	w, ok := e.workers[symbol]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	s := w.snap.Load()
	return s, s != nil
}

// Symbols lists symbols with a running worker.
func (e *Engine) Symbols() []string {
	e.mu.Lock()
	out := make([]string, 0, len(e.workers))
	for s := range e.workers {
		out = append(out, s)
	}
	e.mu.Unlock()
	sort.Strings(out)
	return out
}

// Retire stops workers of symbols that left the universe and hold nothing.
func (e *Engine) Retire(u *models.Universe) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for s, w := range e.workers {
		if e.universe.Managed(u, s) {
			continue
		}
		w.cancel()
		delete(e.workers, s)
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Errors returns a copy of the error counters by kind.
func (e *Engine) Errors() map[string]int {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	out := make(map[string]int, len(e.errors))
	for k, v := range e.errors {
		out[k] = v
	}
	return out
}

func (e *Engine) countError(kind string) {
	e.errMu.Lock()
	e.errors[kind]++
	e.errMu.Unlock()
	e.metrics.RecordError(kind)
}

func (e *Engine) publish(ev models.Event) {
	if e.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.log.Warn("Failed to publish event", logger.String("type", string(ev.Type)), logger.String("symbol", ev.Symbol), logger.Error(err))
	}
}

// Track starts workers for every symbol of u and stops the ones no longer managed.
func (e *Engine) Track(_ context.Context, u *models.Universe) {
	for _, s := range u.Symbols {
		e.Ensure(s)
	}
	if retired := e.Retire(u); len(retired) > 0 {
		e.log.Info("Workers retired", logger.Strings("symbols", retired))
	}
}
