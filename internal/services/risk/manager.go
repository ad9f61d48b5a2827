package risk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"VoltX/internal/domain/models"
	"VoltX/internal/domain/repository"
	"VoltX/internal/domain/service"
	"VoltX/pkg/logger"
	"VoltX/pkg/util"
)

// Tier ranks a symbol inside the universe. L1 symbols get the full base size.
type Tier int

const (
	TierL1 Tier = iota + 1
	TierL2
)

type Config struct {
	LossStreak        int
	DailyLossLimitPct float64
	BasePct           float64
	L2BasePct         float64
	L1Size            int
	MaxPositionPct    float64
	MinOrderValue     float64
	// WeightDailyPnl scales each close by the share of equity it committed.
	WeightDailyPnl bool
	QueueSize      int
	Profiles       map[models.RegimeState]models.GuardProfile
}

// Manager is the single owner of RiskState. Close events from every symbol
// worker are applied one at a time, in arrival order, by Run.
type Manager struct {
	cfg   Config
	td    util.TradingDay
	state atomic.Pointer[models.RiskState]
	mu    sync.Mutex
	queue chan models.CloseEvent

	publisher repository.EventPublisher
	store     repository.RiskStateStore
	metrics   repository.Metrics
	log       *logger.Logger
	now       func() time.Time
}

var _ service.GuardProvider = (*Manager)(nil)

type Option func(*Manager)

func WithPublisher(p repository.EventPublisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func WithStore(s repository.RiskStateStore) Option {
	return func(m *Manager) { m.store = s }
}

func WithMetrics(r repository.Metrics) Option {
	return func(m *Manager) { m.metrics = r }
}

func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(cfg Config, td util.TradingDay, opts ...Option) *Manager {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	m := &Manager{
		cfg:   cfg,
		td:    td,
		queue: make(chan models.CloseEvent, cfg.QueueSize),
		log:   logger.Nop(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.state.Store(&models.RiskState{TradingDay: td.Start(m.now())})
	return m
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() models.RiskState {
	return *m.state.Load()
}

// Guards returns the entry thresholds for a regime. Unknown regimes use FLAT.
func (m *Manager) Guards(regime models.RegimeState) models.GuardProfile {
	if g, ok := m.cfg.Profiles[regime]; ok {
		return g
	}
	return m.cfg.Profiles[models.RegimeFlat]
}

// lossFactor shrinks size during a losing streak.
func lossFactor(losses int) float64 {
	switch {
	case losses >= 3:
		return 0.5
	case losses == 2:
		return 0.8
	default:
		return 1
	}
}

// Size decides the notional and quantity for an entry at price.
func (m *Manager) Size(equity, price float64, regime models.RegimeState, tier Tier) (models.SizingDecision, error) {
	if equity <= 0 || price <= 0 {
		return models.SizingDecision{}, fmt.Errorf("size: equity %.8g and price %.8g must be positive", equity, price)
	}
	base := m.cfg.BasePct
	if tier == TierL2 {
		base = m.cfg.L2BasePct
	}
	pct := base * m.Guards(regime).SizeMultiplier * lossFactor(m.Snapshot().ConsecutiveLosses)
	if pct > m.cfg.MaxPositionPct {
		pct = m.cfg.MaxPositionPct
	}
	notional := equity * pct / 100
	if notional < m.cfg.MinOrderValue || notional <= 0 {
		return models.SizingDecision{}, models.NewError(models.CodeInsufficientFunds, "", "",
			"notional %.8g below minimum order value %.8g", notional, m.cfg.MinOrderValue)
	}
	return models.SizingDecision{Notional: notional, Qty: notional / price, Weight: pct / 100}, nil
}

// TierOf ranks symbol inside u.
func (m *Manager) TierOf(u *models.Universe, symbol string) Tier {
	if u == nil {
		return TierL2
	}
	for i, s := range u.Symbols {
		if s == symbol {
			if i < m.cfg.L1Size {
				return TierL1
			}
			return TierL2
		}
	}
	return TierL2
}

// CheckEntry rejects new entries while the breaker is tripped. Exits never call it.
func (m *Manager) CheckEntry(symbol string, strategy models.Strategy) error {
	m.RollDay(m.now())
	s := m.Snapshot()
	if !s.CircuitBreakerTripped {
		return nil
	}
	code := s.TripReason
	if code == "" {
		code = models.CodeCircuitBreakerActive
	}
	return models.NewError(code, symbol, strategy, "entries blocked since %s", s.TripTimestamp.Format(time.RFC3339))
}

// Submit enqueues a close event for ordered application.
func (m *Manager) Submit(ctx context.Context, ev models.CloseEvent) error {
	select {
	case m.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run applies queued close events until ctx is done, then drains what is left.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev := <-m.queue:
			m.ApplySync(ev)
		case <-ticker.C:
			m.RollDay(m.now())
		case <-ctx.Done():
			for {
				select {
				case ev := <-m.queue:
					m.ApplySync(ev)
				default:
					return nil
				}
			}
		}
	}
}

// ApplySync applies one close event and returns the resulting state.
func (m *Manager) ApplySync(ev models.CloseEvent) models.RiskState {
	m.mu.Lock()
	at := m.now()
	if ev.ClosedAt.After(at) {
		at = ev.ClosedAt
	}
	reset := m.rollLocked(at)

	prev := m.state.Load()
	next := *prev
	next.Sequence++
	next.ClosedToday++
	if ev.RealizedPnlPct < 0 {
		next.ConsecutiveLosses++
	} else {
		next.ConsecutiveLosses = 0
	}
	pnl := ev.RealizedPnlPct
	if m.cfg.WeightDailyPnl {
		pnl *= ev.Weight
	}
	next.DailyPnlPct += pnl

	tripped := false
	if !next.CircuitBreakerTripped {
		switch {
		case next.ConsecutiveLosses >= m.cfg.LossStreak:
			next.TripReason = models.CodeCircuitBreakerActive
			tripped = true
		case next.DailyPnlPct <= -m.cfg.DailyLossLimitPct+1e-9:
			next.TripReason = models.CodeDailyLossLimit
			tripped = true
		}
		if tripped {
			next.CircuitBreakerTripped = true
			next.TripTimestamp = at
		}
	}
	m.state.Store(&next)
	m.mu.Unlock()

	if reset != nil {
		m.announceReset(*reset, at)
	}
	m.log.Info("Close applied",
		logger.String("symbol", ev.Symbol),
		logger.String("strategy", string(ev.Strategy)),
		logger.Float64("pnl_pct", ev.RealizedPnlPct),
		logger.Int("consecutive_losses", next.ConsecutiveLosses),
		logger.Float64("daily_pnl_pct", next.DailyPnlPct),
		logger.Uint64("sequence", next.Sequence),
	)
	if tripped {
		m.log.Error("Circuit breaker tripped",
			logger.String("reason", string(next.TripReason)),
			logger.Int("consecutive_losses", next.ConsecutiveLosses),
			logger.Float64("daily_pnl_pct", next.DailyPnlPct),
		)
		m.emit(models.NewEvent(models.EventCircuitBreakerTripped, ev.Symbol, ev.Strategy, at).
			With("consecutive_losses", float64(next.ConsecutiveLosses)).
			With("daily_pnl_pct", next.DailyPnlPct), string(next.TripReason))
	}
	m.persist(next)
	return next
}

// RollDay resets counters and the breaker once a trading-day boundary has passed.
func (m *Manager) RollDay(now time.Time) bool {
	m.mu.Lock()
	prev := m.rollLocked(now)
	m.mu.Unlock()
	if prev == nil {
		return false
	}
	m.announceReset(*prev, now)
	m.persist(m.Snapshot())
	return true
}

// rollLocked returns the replaced state when a boundary was crossed.
func (m *Manager) rollLocked(now time.Time) *models.RiskState {
	prev := m.state.Load()
	day := m.td.Start(now)
	if !day.After(prev.TradingDay) {
		return nil
	}
	m.state.Store(&models.RiskState{TradingDay: day, Sequence: prev.Sequence})
	return prev
}

func (m *Manager) announceReset(prev models.RiskState, at time.Time) {
	m.log.Info("Trading day rolled",
		logger.String("previous_day", prev.TradingDay.Format("2006-01-02")),
		logger.Int("closed", prev.ClosedToday),
		logger.Float64("daily_pnl_pct", prev.DailyPnlPct),
	)
	if prev.CircuitBreakerTripped {
		m.emit(models.NewEvent(models.EventCircuitBreakerReset, "", "", at).
			With("daily_pnl_pct", prev.DailyPnlPct), string(prev.TripReason))
	}
}

// Restore loads a persisted state from the same trading day, keeping a tripped breaker across restarts.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	s, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore risk state: %w", err)
	}
	if s == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.td.Start(m.now()).Equal(m.td.Start(s.TradingDay)) {
		m.log.Info("Persisted risk state is from another trading day, ignoring",
			logger.String("day", s.TradingDay.Format("2006-01-02")))
		return nil
	}
	m.state.Store(s)
	m.log.Info("Risk state restored",
		logger.Int("consecutive_losses", s.ConsecutiveLosses),
		logger.Float64("daily_pnl_pct", s.DailyPnlPct),
		logger.Bool("tripped", s.CircuitBreakerTripped),
	)
	return nil
}

func (m *Manager) persist(s models.RiskState) {
	if m.metrics != nil {
		m.metrics.RecordRisk(s)
	}
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.store.Save(ctx, s); err != nil {
		m.log.Warn("Failed to persist risk state", logger.Error(err))
	}
}

func (m *Manager) emit(e models.Event, reason string) {
	if m.publisher == nil {
		return
	}
	e.Reason = reason
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.publisher.Publish(ctx, e); err != nil {
		m.log.Warn("Failed to publish risk event", logger.String("type", string(e.Type)), logger.Error(err))
	}
}
