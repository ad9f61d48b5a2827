package position

import (
	"sort"
	"sync"
	"time"

	"VoltX/internal/domain/models"

	"github.com/google/uuid"
)

// Levels are the exit thresholds seeded when an entry fills.
type Levels struct {
	HighWaterMark float64
	StopPrice     float64
	HardStop      float64
	TakeProfit    float64
}

// Manager owns every position. Mutations come from the symbol worker that owns
// the position's symbol; readers (status API, regime cycle) get copies.
type Manager struct {
	mu      sync.RWMutex
	byID    map[string]*models.Position
	active  map[models.PositionKey]string
	history []models.Position
	next    int
	full    bool

	fillTimeout time.Duration
	newID       func() string
}

// NewManager keeps the last historySize terminal positions for queries.
func NewManager(fillTimeout time.Duration, historySize int) *Manager {
	if historySize <= 0 {
		historySize = 200
	}
	return &Manager{
		byID:        make(map[string]*models.Position),
		active:      make(map[models.PositionKey]string),
		history:     make([]models.Position, historySize),
		fillTimeout: fillTimeout,
		newID:       uuid.NewString,
	}
}

func transitionErr(p *models.Position, to models.PositionState) error {
	return models.NewError(models.CodeInvalidTransition, p.Symbol, p.Strategy, "position %s: %s -> %s", p.ID, p.State, to)
}

func (m *Manager) lookup(id string) (*models.Position, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, models.NewError(models.CodeInvalidTransition, "", "", "position %s not found", id)
	}
	return p, nil
}

// Open creates a PENDING position. Size is assigned here and never changes.
func (m *Manager) Open(req models.OpenRequest) (models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.PositionKey{Symbol: req.Symbol, Strategy: req.Strategy}
	if id, ok := m.active[key]; ok {
		return models.Position{}, models.NewError(models.CodeDuplicateEntry, req.Symbol, req.Strategy, "position %s still %s", id, m.byID[id].State)
	}
	p := &models.Position{
		ID:         m.newID(),
		Symbol:     req.Symbol,
		Strategy:   req.Strategy,
		State:      models.PositionPending,
		Size:       req.Size,
		Weight:     req.Weight,
		EntryPrice: req.LimitPrice,
		CreatedAt:  req.At,
	}
	m.byID[p.ID] = p
	m.active[key] = p.ID
	return *p, nil
}

// ConfirmFill moves PENDING to OPEN at the fill price.
func (m *Manager) ConfirmFill(id string, fill models.Fill, lv Levels) (models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(id)
	if err != nil {
		return models.Position{}, err
	}
	if !CanTransition(p.State, models.PositionOpen) {
		return *p, transitionErr(p, models.PositionOpen)
	}
	p.State = models.PositionOpen
	p.EntryPrice = fill.Price
	p.FilledQty = fill.Qty
	p.OrderID = fill.OrderID
	p.OpenedAt = fill.FilledAt
	p.HighWaterMark = lv.HighWaterMark
	p.StopPrice = lv.StopPrice
	p.HardStop = lv.HardStop
	p.TakeProfit = lv.TakeProfit
	return *p, nil
}

// StartTrailing moves an OPEN VBS position to TRAILING. Dip positions exit on
// fixed targets and never trail.
func (m *Manager) StartTrailing(id string) (models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(id)
	if err != nil {
		return models.Position{}, err
	}
	if p.Strategy != models.StrategyVBS {
		return *p, models.NewError(models.CodeInvalidTransition, p.Symbol, p.Strategy, "position %s: %s positions do not trail", p.ID, p.Strategy)
	}
	if !CanTransition(p.State, models.PositionTrailing) {
		return *p, transitionErr(p, models.PositionTrailing)
	}
	p.State = models.PositionTrailing
	return *p, nil
}

// UpdateStop raises the high water mark and trailing stop. Decreases are rejected.
func (m *Manager) UpdateStop(id string, hwm, stop float64) (models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(id)
	if err != nil {
		return models.Position{}, err
	}
	if p.State != models.PositionOpen && p.State != models.PositionTrailing {
		return *p, transitionErr(p, p.State)
	}
	if hwm < p.HighWaterMark || stop < p.StopPrice {
		return *p, models.NewError(models.CodeInvalidTransition, p.Symbol, p.Strategy,
			"position %s: stop may not decrease (hwm %.8g -> %.8g, stop %.8g -> %.8g)", p.ID, p.HighWaterMark, hwm, p.StopPrice, stop)
	}
	p.HighWaterMark = hwm
	p.StopPrice = stop
	return *p, nil
}

// Close moves OPEN or TRAILING to CLOSED and computes realized pnl in percent.
func (m *Manager) Close(id string, exitPrice float64, reason models.ReasonCode, at time.Time) (models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(id)
	if err != nil {
		return models.Position{}, err
	}
	if !CanTransition(p.State, models.PositionClosed) {
		return *p, transitionErr(p, models.PositionClosed)
	}
	p.State = models.PositionClosed
	p.ExitPrice = exitPrice
	p.ExitReason = reason
	p.ClosedAt = at
	if p.EntryPrice > 0 {
		p.RealizedPnlPct = (exitPrice - p.EntryPrice) / p.EntryPrice * 100
	}
	m.retire(p)
	return *p, nil
}

// Cancel moves PENDING to CANCELLED.
func (m *Manager) Cancel(id, reason string, at time.Time) (models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(id)
	if err != nil {
		return models.Position{}, err
	}
	if !CanTransition(p.State, models.PositionCancelled) {
		return *p, transitionErr(p, models.PositionCancelled)
	}
	p.State = models.PositionCancelled
	p.CancelReason = reason
	p.ClosedAt = at
	m.retire(p)
	return *p, nil
}

// ExpirePending cancels PENDING positions of symbol older than the fill timeout.
// An empty symbol sweeps every symbol.
func (m *Manager) ExpirePending(symbol string, now time.Time) []models.Position {
	if m.fillTimeout <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Position
	for _, id := range m.active {
		p := m.byID[id]
		if p.State != models.PositionPending || (symbol != "" && p.Symbol != symbol) {
			continue
		}
		if now.Sub(p.CreatedAt) < m.fillTimeout {
			continue
		}
		p.State = models.PositionCancelled
		p.CancelReason = string(models.CodeTimeout)
		p.ClosedAt = now
		m.retire(p)
		out = append(out, *p)
	}
	return out
}

// retire frees the (symbol, strategy) slot and records the terminal position.
func (m *Manager) retire(p *models.Position) {
	delete(m.active, p.Key())
	delete(m.byID, p.ID)
	m.history[m.next] = *p
	m.next = (m.next + 1) % len(m.history)
	if m.next == 0 {
		m.full = true
	}
}

// Active returns the non-terminal position for (symbol, strategy).
func (m *Manager) Active(symbol string, strategy models.Strategy) (models.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.active[models.PositionKey{Symbol: symbol, Strategy: strategy}]
	if !ok {
		return models.Position{}, false
	}
	return *m.byID[id], true
}

// Get returns a non-terminal position by id.
func (m *Manager) Get(id string) (models.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byID[id]
	if !ok {
		return models.Position{}, false
	}
	return *p, true
}

// OpenPositions returns copies of every non-terminal position ordered by creation.
func (m *Manager) OpenPositions() []models.Position {
	m.mu.RLock()
	out := make([]models.Position, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *p)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Count is the number of non-terminal positions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// History returns up to limit terminal positions, newest first.
func (m *Manager) History(limit int) []models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.history)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.Position, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.history)) % len(m.history)
		out = append(out, m.history[idx])
	}
	return out
}
