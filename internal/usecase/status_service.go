package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
	domsvc "VoltX/internal/domain/service"
	"VoltX/internal/services/position"
	"VoltX/internal/services/risk"
	"VoltX/internal/services/universe"
)

// StatusService is the read-only view behind the status API.
type StatusService struct {
	engine    *Engine
	regime    domsvc.RegimeReader
	universe  *universe.Manager
	risk      *risk.Manager
	positions *position.Manager
	journal   domrepo.TradeJournal
	history   domrepo.CandleHistory
	timeout   time.Duration
}

func NewStatusService(engine *Engine, regime domsvc.RegimeReader, u *universe.Manager, r *risk.Manager, p *position.Manager, journal domrepo.TradeJournal, history domrepo.CandleHistory) *StatusService {
	return &StatusService{engine: engine, regime: regime, universe: u, risk: r, positions: p, journal: journal, history: history, timeout: 10 * time.Second}
}

func (s *StatusService) Status() models.EngineStatus {
	u := s.universe.Current()
	return models.EngineStatus{
		Timestamp: time.Now(),
		Regime:    s.regime.Current(),
		Universe:  u,
		Legacy:    s.universe.Legacy(u),
		Risk:      s.risk.Snapshot(),
		Open:      s.positions.OpenPositions(),
		Workers:   len(s.engine.Symbols()),
		Errors:    s.engine.Errors(),
	}
}

func (s *StatusService) Regime() *models.Regime { return s.regime.Current() }

func (s *StatusService) Universe() (*models.Universe, []string) {
	u := s.universe.Current()
	return u, s.universe.Legacy(u)
}

// Risk returns the risk state together with the active guard profile.
func (s *StatusService) Risk() (models.RiskState, models.GuardProfile) {
	return s.risk.Snapshot(), s.risk.Guards(s.regime.Current().State)
}

// Positions returns non-terminal positions matching the filter.
func (s *StatusService) Positions(req models.PositionsRequest) []models.Position {
	sym := strings.ToUpper(req.Symbol)
	all := s.positions.OpenPositions()
	out := make([]models.Position, 0, len(all))
	for _, p := range all {
		if sym != "" && p.Symbol != sym {
			continue
		}
		if req.Strategy != "" && string(p.Strategy) != req.Strategy {
			continue
		}
		if req.State != "" && string(p.State) != req.State {
			continue
		}
		out = append(out, p)
	}
	return out
}

// History returns recent terminal positions. With a symbol filter and a journal
// configured, the journal is queried so results survive restarts.
func (s *StatusService) History(ctx context.Context, req models.HistoryRequest) ([]models.Position, error) {
	sym := strings.ToUpper(req.Symbol)
	if sym != "" && s.journal != nil {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		ps, err := s.journal.Recent(ctx, sym, req.Limit)
		if err != nil {
			return nil, fmt.Errorf("journal recent: %w", err)
		}
		return ps, nil
	}
	if sym == "" {
		return s.positions.History(req.Limit), nil
	}
	out := make([]models.Position, 0, req.Limit)
	for _, p := range s.positions.History(0) {
		if p.Symbol == sym {
			out = append(out, p)
			if len(out) == req.Limit {
				break
			}
		}
	}
	return out, nil
}

// Snapshot returns the last indicator snapshot computed for symbol.
func (s *StatusService) Snapshot(symbol string) (*models.IndicatorSnapshot, error) {
	snap, ok := s.engine.Snapshot(strings.ToUpper(symbol))
	if !ok {
		return nil, models.NewError(models.CodeInsufficientData, symbol, "", "no snapshot yet")
	}
	return snap, nil
}

// Candles returns stored candles for symbol, oldest first.
func (s *StatusService) Candles(ctx context.Context, req models.CandlesRequest) ([]models.Candle, error) {
	if s.history == nil {
		return nil, fmt.Errorf("candle history not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	tf := models.NormalizeTimeframe(req.Timeframe, models.TF1m)
	return s.history.GetLatestNCandles(ctx, strings.ToUpper(req.Symbol), req.Limit, tf)
}
