package execution

import (
	"context"
	"sync"
	"time"

	"VoltX/internal/domain/models"
	"VoltX/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaperConfig struct {
	SlippagePct float64
	FeePct      float64
	TickSize    float64
	Latency     time.Duration
}

// PaperGateway simulates fills locally. Slippage is capped by the order's tolerance.
type PaperGateway struct {
	cfg PaperConfig
	now func() time.Time

	mu       sync.Mutex
	failures []error
	orders   map[string]models.Fill
}

var _ repository.ExecutionGateway = (*PaperGateway)(nil)

func NewPaperGateway(cfg PaperConfig) *PaperGateway {
	return &PaperGateway{cfg: cfg, now: time.Now, orders: make(map[string]models.Fill)}
}

// FailNext makes the next n submissions fail with err.
func (g *PaperGateway) FailNext(n int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := 0; i < n; i++ {
		g.failures = append(g.failures, err)
	}
}

func (g *PaperGateway) popFailure() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.failures) == 0 {
		return nil
	}
	err := g.failures[0]
	g.failures = g.failures[1:]
	return err
}

// FillPrice applies slippage against the order side and rounds to the tick size.
func (g *PaperGateway) FillPrice(req models.OrderRequest) decimal.Decimal {
	price := decimal.NewFromFloat(req.LimitPrice)
	slipPct := g.cfg.SlippagePct
	if req.Tolerance > 0 && req.Tolerance < slipPct {
		slipPct = req.Tolerance
	}
	slip := price.Mul(decimal.NewFromFloat(slipPct)).Div(decimal.NewFromInt(100))
	if req.Side == models.SideBuy {
		price = price.Add(slip)
	} else {
		price = price.Sub(slip)
	}
	if g.cfg.TickSize > 0 {
		tick := decimal.NewFromFloat(g.cfg.TickSize)
		price = price.Div(tick).Round(0).Mul(tick)
	}
	return price
}

func (g *PaperGateway) SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.Fill, error) {
	if req.Qty <= 0 || req.LimitPrice <= 0 {
		return nil, models.NewError(models.CodeRejected, req.Symbol, "", "qty %.8g and price %.8g must be positive", req.Qty, req.LimitPrice)
	}
	if g.cfg.Latency > 0 {
		select {
		case <-time.After(g.cfg.Latency):
		case <-ctx.Done():
			return nil, models.NewError(models.CodeTimeout, req.Symbol, "", "paper order %s", req.ClientID).WithError(ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, models.NewError(models.CodeTimeout, req.Symbol, "", "paper order %s", req.ClientID).WithError(err)
	}
	if err := g.popFailure(); err != nil {
		return nil, err
	}

	price := g.FillPrice(req)
	qty := decimal.NewFromFloat(req.Qty)
	fee := price.Mul(qty).Mul(decimal.NewFromFloat(g.cfg.FeePct)).Div(decimal.NewFromInt(100))

	fill := models.Fill{
		OrderID:  uuid.NewString(),
		Symbol:   req.Symbol,
		Side:     req.Side,
		Price:    price.InexactFloat64(),
		Qty:      req.Qty,
		Fee:      fee.InexactFloat64(),
		FilledAt: g.now(),
	}
	g.mu.Lock()
	g.orders[fill.OrderID] = fill
	g.mu.Unlock()
	return &fill, nil
}

// CancelOrder is a no-op for paper orders, which fill immediately.
func (g *PaperGateway) CancelOrder(_ context.Context, orderID string) error {
	g.mu.Lock()
	delete(g.orders, orderID)
	g.mu.Unlock()
	return nil
}
