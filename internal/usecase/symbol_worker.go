package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"VoltX/internal/domain/models"
	"VoltX/internal/services/indicators"
	"VoltX/internal/services/position"
	"VoltX/internal/services/scanner"
	"VoltX/internal/services/strategy/dip"
	"VoltX/internal/services/strategy/vbs"
	"VoltX/internal/services/universe"
	"VoltX/pkg/logger"
)

// message is one unit of work for a symbol worker.
type message struct {
	candle *models.Candle
	entry  *EntryResult
	exit   *ExitResult
}

// SymbolWorker owns the candle windows and strategy engines of one symbol.
// Everything it touches is mutated from its own goroutine only.
type SymbolWorker struct {
	symbol string
	e      *Engine
	inbox  chan message
	cancel context.CancelFunc
	ctx    context.Context
	log    *logger.Logger

	trend *window
	eval  *window
	daily *vbs.DailyRange
	vbs   *vbs.Engine
	dip   *dip.Engine
	scan  *scanner.Scanner
	vol   models.VolumeStatus
	day   time.Time

	snap atomic.Pointer[models.IndicatorSnapshot]
}

func newSymbolWorker(e *Engine, symbol string, ctx context.Context, cancel context.CancelFunc) *SymbolWorker {
	return &SymbolWorker{
		symbol: symbol,
		e:      e,
		inbox:  make(chan message, e.cfg.InboxSize),
		ctx:    ctx,
		cancel: cancel,
		log:    e.log.With(logger.String("symbol", symbol)),
		trend:  newWindow(e.cfg.WindowSize),
		eval:   newWindow(e.cfg.WindowSize),
		daily:  vbs.NewDailyRange(e.cfg.TradingDay),
		vbs:    vbs.New(symbol, e.cfg.VBS),
		dip:    dip.New(symbol, e.cfg.Dip),
		scan:   scanner.New(e.cfg.Scanner),
	}
}

// post enqueues m, blocking while the inbox is full.
func (w *SymbolWorker) post(ctx context.Context, m message) error {
	select {
	case w.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ctx.Done():
		return ErrEngineStopped
	}
}

// reply posts an order result from a router goroutine.
func (w *SymbolWorker) reply(m message) {
	if err := w.post(context.Background(), m); err != nil {
		w.log.Error("Order result dropped, worker stopped", logger.Error(err))
	}
}

func (w *SymbolWorker) run(ctx context.Context) {
	defer w.e.wg.Done()
	w.warmup(ctx)

	ticker := time.NewTicker(w.e.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-w.inbox:
			w.safely(func() { w.handle(ctx, m) })
		case <-ticker.C:
			w.safely(func() { w.sweep(w.e.now()) })
		}
	}
}

// safely isolates a panic to the current message.
func (w *SymbolWorker) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.e.countError("worker_panic")
			w.log.Error("Worker recovered from panic",
				logger.String("panic", fmt.Sprint(r)),
				logger.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn()
}

func (w *SymbolWorker) handle(ctx context.Context, m message) {
	switch {
	case m.candle != nil:
		w.onCandle(ctx, m.candle)
	case m.entry != nil:
		w.onEntryResult(*m.entry)
	case m.exit != nil:
		w.onExitResult(ctx, *m.exit)
	}
}

// warmup seeds the windows from stored history. Daily candles go first so
// intraday candles of the current day extend the right aggregate.
func (w *SymbolWorker) warmup(ctx context.Context) {
	if w.e.history == nil || w.e.cfg.WarmupCandles <= 0 {
		return
	}
	tfs := []models.Timeframe{models.TF1d, w.e.cfg.TrendTF}
	if w.e.cfg.EvalTF != w.e.cfg.TrendTF {
		tfs = append(tfs, w.e.cfg.EvalTF)
	}
	loaded := 0
	for _, tf := range tfs {
		n := w.e.cfg.WarmupCandles
		if tf == models.TF1d {
			n = 2
		}
		cs, err := w.e.history.GetLatestNCandles(ctx, w.symbol, n, tf)
		if err != nil {
			w.e.countError("warmup")
			w.log.Warn("Warm-up failed", logger.String("tf", string(tf)), logger.Error(err))
			continue
		}
		for i := range cs {
			c := cs[i]
			c.Closed = true
			w.ingest(c)
		}
		loaded += len(cs)
	}
	w.syncLevels()
	w.log.Info("Worker warmed up", logger.Int("candles", loaded), logger.Int("eval", w.eval.len()), logger.Int("trend", w.trend.len()))
}

// ingest adds a closed candle to the windows and the daily aggregate.
func (w *SymbolWorker) ingest(c models.Candle) {
	if c.Timeframe == w.e.cfg.TrendTF {
		w.trend.add(c)
	}
	if c.Timeframe == w.e.cfg.EvalTF {
		w.eval.add(c)
	}
	w.daily.Add(c)
}

func (w *SymbolWorker) syncLevels() {
	day, open, prevHigh, prevLow, ok := w.daily.Levels()
	if !ok || !day.After(w.day) {
		return
	}
	w.day = day
	w.vbs.SetLevels(day, open, prevHigh, prevLow)
	w.log.Info("Breakout level set",
		logger.String("day", day.Format("2006-01-02")),
		logger.Float64("level", w.vbs.Level()),
		logger.Float64("open", open),
		logger.Float64("prev_range", prevHigh-prevLow),
	)
}

func (w *SymbolWorker) stale(c *models.Candle, now time.Time) bool {
	if w.e.cfg.MaxStaleness <= 0 {
		return false
	}
	return now.Sub(c.End()) > w.e.cfg.MaxStaleness
}

func (w *SymbolWorker) onCandle(ctx context.Context, c *models.Candle) {
	now := w.e.now()
	if w.stale(c, now) {
		err := models.NewError(models.CodeStaleCandle, c.Symbol, "", "candle %s closed at %s", c.Timeframe, c.End().Format(time.RFC3339))
		w.e.countError(string(models.CodeStaleCandle))
		w.log.Warn("Skipping stale candle", logger.Error(err))
		return
	}
	if c.Closed {
		w.ingest(*c)
		w.syncLevels()
	}
	price := c.Close
	w.e.metrics.RecordLastPrice(c.Symbol, price)

	if c.Closed || w.e.cfg.EvaluateIntrabar {
		w.checkExits(ctx, price, now)
	}
	if !c.Closed || c.Timeframe != w.e.cfg.EvalTF {
		return
	}
	w.evaluate(ctx, price, c.End())
}

// evaluate computes a snapshot and runs both entry engines. Universe and
// regime are read once for the whole cycle.
func (w *SymbolWorker) evaluate(ctx context.Context, price float64, at time.Time) {
	start := w.e.now()
	snap, err := indicators.Compute(w.symbol, w.trend.slice(), w.eval.slice(), price, at, w.e.cfg.Params)
	if err != nil {
		w.e.countError(errKind(err))
		w.log.Debug("Evaluation suspended", logger.Error(err))
		return
	}
	if w.e.cfg.Scanner.Enabled {
		w.scanVolume(snap, at)
	}
	w.snap.Store(snap)
	w.e.metrics.RecordLatency("snapshot", w.e.now().Sub(start))

	u := w.e.universe.Current()
	if !universe.Eligible(u, w.symbol) {
		return
	}
	reg := w.e.regime.Current()
	g := w.e.risk.Guards(reg.State)
	if sig := w.vbs.Evaluate(snap, g, at); sig != nil {
		w.enter(ctx, sig, u, reg)
	}
	if sig := w.dip.Evaluate(snap, g, at); sig != nil {
		w.enter(ctx, sig, u, reg)
	}
}

// scanVolume classifies the last closed eval candle and stamps the snapshot.
func (w *SymbolWorker) scanVolume(snap *models.IndicatorSnapshot, at time.Time) {
	cs := w.eval.slice()
	last := cs[len(cs)-1]
	st := w.scan.Observe(last, snap.RelativeVolume, snap.RSI14, at)
	snap.Volume = st
	if st == w.vol {
		return
	}
	prev := w.vol
	w.vol = st
	switch st {
	case models.VolumeExhausted:
		w.log.Warn("Volume climax, symbol exhausted",
			logger.Float64("rel_volume", snap.RelativeVolume),
			logger.Float64("rsi", snap.RSI14),
			logger.Time("until", w.scan.ExhaustedUntil()))
	case models.VolumeTrendActive:
		w.log.Info("Volume spike", logger.Float64("rel_volume", snap.RelativeVolume), logger.String("from", string(prev)))
	default:
		w.log.Debug("Volume normal", logger.String("from", string(prev)))
	}
}

func (w *SymbolWorker) entryFailed(s models.Strategy) {
	switch s {
	case models.StrategyVBS:
		w.vbs.OnEntryFailed()
	case models.StrategyDip:
		w.dip.OnEntryFailed()
	}
}

func (w *SymbolWorker) enter(ctx context.Context, sig *models.Signal, u *models.Universe, reg *models.Regime) {
	e := w.e
	if err := e.risk.CheckEntry(w.symbol, sig.Strategy); err != nil {
		w.entryFailed(sig.Strategy)
		w.violation(sig, err)
		return
	}
	size, err := e.risk.Size(e.cfg.Equity, sig.TriggerPrice, reg.State, e.risk.TierOf(u, w.symbol))
	if err != nil {
		w.entryFailed(sig.Strategy)
		w.violation(sig, err)
		return
	}
	pos, err := e.positions.Open(models.OpenRequest{
		Symbol:     w.symbol,
		Strategy:   sig.Strategy,
		Size:       size.Qty,
		Weight:     size.Weight,
		LimitPrice: sig.TriggerPrice,
		At:         sig.Timestamp,
	})
	if err != nil {
		w.entryFailed(sig.Strategy)
		e.countError(errKind(err))
		w.log.Error("Entry refused by position manager", logger.String("strategy", string(sig.Strategy)), logger.Error(err))
		return
	}
	e.universe.MarkOpen(w.symbol)
	e.metrics.RecordSignal(sig.Strategy, sig.Kind, sig.Reason)
	e.publish(models.NewEvent(models.EventSignalGenerated, w.symbol, sig.Strategy, sig.Timestamp).
		With("trigger_price", sig.TriggerPrice).
		With("qty", size.Qty).
		With("weight", size.Weight).
		With("regime_score", reg.Score))
	w.log.Info("Entry signal",
		logger.String("strategy", string(sig.Strategy)),
		logger.String("reason", string(sig.Reason)),
		logger.String("position_id", pos.ID),
		logger.Float64("price", sig.TriggerPrice),
		logger.Float64("qty", size.Qty),
		logger.String("regime", string(reg.State)),
	)
	e.router.SubmitEntry(ctx, pos, sig.TriggerPrice, func(r EntryResult) { w.reply(message{entry: &r}) })
}

func (w *SymbolWorker) violation(sig *models.Signal, err error) {
	code := models.CodeOf(err)
	w.e.countError(errKind(err))
	ev := models.NewEvent(models.EventRiskViolation, w.symbol, sig.Strategy, sig.Timestamp).With("trigger_price", sig.TriggerPrice)
	ev.Reason = string(code)
	w.e.publish(ev)
	w.log.Warn("Entry blocked", logger.String("strategy", string(sig.Strategy)), logger.Error(err))
}

func (w *SymbolWorker) onEntryResult(r EntryResult) {
	e := w.e
	now := e.now()
	if _, ok := e.positions.Get(r.PositionID); !ok {
		// already expired by the sweep
		if r.Fill != nil {
			e.countError("late_fill")
			w.log.Error("Fill arrived for a terminated position",
				logger.String("position_id", r.PositionID),
				logger.String("order_id", r.Fill.OrderID),
				logger.Float64("qty", r.Fill.Qty),
			)
			ev := models.NewEvent(models.EventOrderFailed, w.symbol, r.Strategy, now).With("qty", r.Fill.Qty).With("price", r.Fill.Price)
			ev.Reason = "LATE_FILL"
			e.publish(ev)
		}
		return
	}
	if r.Fill == nil {
		p, err := e.positions.Cancel(r.PositionID, string(models.CodeOf(r.Err)), now)
		if err != nil {
			w.log.Error("Cancel failed", logger.String("position_id", r.PositionID), logger.Error(err))
			return
		}
		w.cancelled(p, r.Err)
		return
	}

	lv := position.Levels{HighWaterMark: r.Fill.Price}
	switch r.Strategy {
	case models.StrategyVBS:
		tr := w.vbs.OnFill(r.PositionID, r.Fill.Price)
		lv = position.Levels{HighWaterMark: tr.HighWaterMark, StopPrice: tr.StopPrice, HardStop: tr.HardStop}
	case models.StrategyDip:
		tp, sl := w.dip.OnFill(r.PositionID, r.Fill.Price)
		lv.StopPrice, lv.HardStop, lv.TakeProfit = sl, sl, tp
	}
	p, err := e.positions.ConfirmFill(r.PositionID, *r.Fill, lv)
	if err != nil {
		e.countError(errKind(err))
		w.log.Error("Fill confirmation rejected", logger.String("position_id", r.PositionID), logger.Error(err))
		return
	}
	e.metrics.RecordPositionOpened(p.Strategy)
	e.metrics.RecordOpenPositions(e.positions.Count())
	e.publish(models.NewEvent(models.EventPositionOpened, w.symbol, p.Strategy, p.OpenedAt).
		With("entry_price", p.EntryPrice).
		With("qty", p.FilledQty).
		With("stop_price", p.StopPrice).
		With("hard_stop", p.HardStop).
		With("take_profit", p.TakeProfit))
	w.log.Info("Position opened",
		logger.String("strategy", string(p.Strategy)),
		logger.String("position_id", p.ID),
		logger.Float64("entry_price", p.EntryPrice),
		logger.Float64("qty", p.FilledQty),
		logger.Float64("stop_price", p.StopPrice),
	)
}

func (w *SymbolWorker) cancelled(p models.Position, cause error) {
	e := w.e
	w.entryFailed(p.Strategy)
	e.universe.MarkFlat(w.symbol)
	ev := models.NewEvent(models.EventPositionCancelled, w.symbol, p.Strategy, p.ClosedAt).With("size", p.Size)
	ev.Reason = p.CancelReason
	e.publish(ev)
	w.log.Warn("Position cancelled",
		logger.String("strategy", string(p.Strategy)),
		logger.String("position_id", p.ID),
		logger.String("reason", p.CancelReason),
		logger.Error(cause),
	)
}

// sweep cancels PENDING positions whose fill never arrived.
func (w *SymbolWorker) sweep(now time.Time) {
	for _, p := range w.e.positions.ExpirePending(w.symbol, now) {
		w.e.countError(string(models.CodeTimeout))
		w.cancelled(p, models.ErrTimeout)
	}
}

// checkExits runs before any entry evaluation on the same tick.
func (w *SymbolWorker) checkExits(ctx context.Context, price float64, at time.Time) {
	if id := w.vbs.PositionID(); id != "" {
		tr, sig := w.vbs.OnPrice(price, at)
		if tr.StartTrailing {
			if _, err := w.e.positions.StartTrailing(id); err != nil {
				w.log.Error("Start trailing failed", logger.String("position_id", id), logger.Error(err))
			}
		}
		if tr.Raised {
			if _, err := w.e.positions.UpdateStop(id, tr.HighWaterMark, tr.StopPrice); err != nil {
				w.log.Error("Stop update failed", logger.String("position_id", id), logger.Error(err))
			}
		}
		if sig != nil {
			w.exit(ctx, sig)
		}
	}
	if w.dip.PositionID() != "" {
		if sig := w.dip.OnPrice(price, at); sig != nil {
			w.exit(ctx, sig)
		}
	}
}

// exit is never gated by risk.
func (w *SymbolWorker) exit(ctx context.Context, sig *models.Signal) {
	e := w.e
	pos, ok := e.positions.Get(sig.PositionID)
	if !ok {
		e.countError(string(models.CodeInvalidTransition))
		w.log.Error("Exit signal for unknown position", logger.String("position_id", sig.PositionID))
		return
	}
	e.metrics.RecordSignal(sig.Strategy, sig.Kind, sig.Reason)
	ev := models.NewEvent(models.EventSignalGenerated, w.symbol, sig.Strategy, sig.Timestamp).
		With("trigger_price", sig.TriggerPrice).
		With("entry_price", pos.EntryPrice).
		With("stop_price", pos.StopPrice)
	ev.Reason = string(sig.Reason)
	e.publish(ev)
	w.log.Info("Exit signal",
		logger.String("strategy", string(sig.Strategy)),
		logger.String("reason", string(sig.Reason)),
		logger.String("position_id", pos.ID),
		logger.Float64("price", sig.TriggerPrice),
	)
	e.router.SubmitExit(ctx, pos, sig.TriggerPrice, sig.Reason, func(r ExitResult) { w.reply(message{exit: &r}) })
}

func (w *SymbolWorker) onExitResult(ctx context.Context, r ExitResult) {
	e := w.e
	if r.Fill == nil {
		e.countError("exit_abandoned")
		w.log.Error("Exit not filled, position still open",
			logger.String("position_id", r.PositionID),
			logger.Int("attempts", r.Attempts),
			logger.Error(r.Err),
		)
		return
	}
	at := r.Fill.FilledAt
	if at.IsZero() {
		at = e.now()
	}
	p, err := e.positions.Close(r.PositionID, r.Fill.Price, r.Reason, at)
	if err != nil {
		e.countError(errKind(err))
		w.log.Error("Close rejected", logger.String("position_id", r.PositionID), logger.Error(err))
		return
	}
	switch p.Strategy {
	case models.StrategyVBS:
		w.vbs.OnClosed()
	case models.StrategyDip:
		w.dip.OnClosed(at)
	}
	e.universe.MarkFlat(w.symbol)

	if err := e.risk.Submit(ctx, models.CloseEvent{
		PositionID:     p.ID,
		Symbol:         p.Symbol,
		Strategy:       p.Strategy,
		RealizedPnlPct: p.RealizedPnlPct,
		Weight:         p.Weight,
		ClosedAt:       p.ClosedAt,
	}); err != nil {
		w.log.Error("Close event not delivered to risk manager", logger.String("position_id", p.ID), logger.Error(err))
	}
	if e.journal != nil {
		jctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.journal.Record(jctx, p); err != nil {
			e.countError("journal")
			w.log.Warn("Trade journal write failed", logger.String("position_id", p.ID), logger.Error(err))
		}
		cancel()
	}
	e.metrics.RecordPositionClosed(p.Strategy, p.RealizedPnlPct)
	e.metrics.RecordOpenPositions(e.positions.Count())
	ev := models.NewEvent(models.EventPositionClosed, w.symbol, p.Strategy, p.ClosedAt).
		With("entry_price", p.EntryPrice).
		With("exit_price", p.ExitPrice).
		With("pnl_pct", p.RealizedPnlPct).
		With("attempts", float64(r.Attempts))
	ev.Reason = string(p.ExitReason)
	e.publish(ev)
	w.log.Info("Position closed",
		logger.String("strategy", string(p.Strategy)),
		logger.String("position_id", p.ID),
		logger.String("reason", string(p.ExitReason)),
		logger.Float64("entry_price", p.EntryPrice),
		logger.Float64("exit_price", p.ExitPrice),
		logger.Float64("pnl_pct", p.RealizedPnlPct),
	)
}

// errKind labels err for the error counters.
func errKind(err error) string {
	if code := models.CodeOf(err); code != "" {
		return string(code)
	}
	return "internal"
}
