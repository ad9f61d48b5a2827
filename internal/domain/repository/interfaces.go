package repository

import (
	"context"
	"time"

	"VoltX/internal/domain/models"
)

// CandleStream is a live market data feed.
type CandleStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan *models.Candle, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// CandleHistory provides read-only access to stored candles for warm-up.
type CandleHistory interface {
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf models.Timeframe) ([]models.Candle, error)
}

// CandleStore persists closed candles so later warm-ups and the status API can read them.
type CandleStore interface {
	StoreCandles(ctx context.Context, candles []models.Candle) error
	Close() error
}

// UniverseSource exposes the externally ranked hot symbol list.
type UniverseSource interface {
	Latest(ctx context.Context) (*models.RankedSymbols, error)
}

// ExecutionGateway places and cancels orders on the exchange side.
type ExecutionGateway interface {
	SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.Fill, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// EventPublisher emits observability events.
type EventPublisher interface {
	Publish(ctx context.Context, e models.Event) error
	Close() error
}

// TradeJournal records closed positions.
type TradeJournal interface {
	Record(ctx context.Context, p models.Position) error
	Recent(ctx context.Context, symbol string, limit int) ([]models.Position, error)
	Close() error
}

// RiskStateStore persists the risk snapshot so a restart keeps the day's counters.
type RiskStateStore interface {
	Save(ctx context.Context, s models.RiskState) error
	Load(ctx context.Context) (*models.RiskState, error)
}

// AlertSink delivers urgent alerts to operators.
type AlertSink interface {
	Raise(ctx context.Context, a models.Alert) error
}

type Metrics interface {
	RecordSignal(strategy models.Strategy, kind models.SignalKind, reason models.ReasonCode)
	RecordPositionOpened(strategy models.Strategy)
	RecordPositionClosed(strategy models.Strategy, pnlPct float64)
	RecordOpenPositions(n int)
	RecordRisk(s models.RiskState)
	RecordRegime(r models.Regime)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, d time.Duration)
}
