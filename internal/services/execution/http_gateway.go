package execution

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"VoltX/internal/domain/models"
	"VoltX/internal/domain/repository"
	xhttp "VoltX/pkg/http"
)

// HTTPGateway forwards orders to an external order router.
type HTTPGateway struct {
	client *xhttp.Client
}

var _ repository.ExecutionGateway = (*HTTPGateway)(nil)

type orderResponse struct {
	OrderID  string    `json:"order_id"`
	Status   string    `json:"status"`
	Price    float64   `json:"price"`
	Qty      float64   `json:"qty"`
	Fee      float64   `json:"fee"`
	FilledAt time.Time `json:"filled_at"`
}

// NewHTTPGateway builds a router client. attempts bounds retries of transport
// errors; the router deduplicates on client_id.
func NewHTTPGateway(baseURL string, timeout time.Duration, attempts int) *HTTPGateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPGateway{
		client: xhttp.NewClient(baseURL, xhttp.WithTimeout(timeout), xhttp.WithRetries(attempts, 50*time.Millisecond)),
	}
}

func (g *HTTPGateway) SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.Fill, error) {
	var resp orderResponse
	if err := g.client.Do(ctx, http.MethodPost, "/orders", req, &resp); err != nil {
		return nil, classify(req.Symbol, err)
	}
	fill := &models.Fill{
		OrderID:  resp.OrderID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Price:    resp.Price,
		Qty:      resp.Qty,
		Fee:      resp.Fee,
		FilledAt: resp.FilledAt,
	}
	if fill.FilledAt.IsZero() {
		fill.FilledAt = time.Now()
	}
	switch resp.Status {
	case "FILLED", "":
		return fill, nil
	case "PARTIALLY_FILLED":
		return fill, models.NewError(models.CodePartialFill, req.Symbol, "", "order %s filled %.8g of %.8g", resp.OrderID, resp.Qty, req.Qty)
	default:
		return nil, models.NewError(models.CodeRejected, req.Symbol, "", "order %s status %s", resp.OrderID, resp.Status)
	}
}

func (g *HTTPGateway) CancelOrder(ctx context.Context, orderID string) error {
	if err := g.client.Do(ctx, http.MethodDelete, "/orders/"+orderID, nil, nil); err != nil {
		return classify("", err)
	}
	return nil
}

// classify maps transport and status failures onto execution error codes.
func classify(symbol string, err error) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusPaymentRequired:
			return models.NewError(models.CodeInsufficientFunds, symbol, "", "%s", se.Body).WithError(err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return models.NewError(models.CodeTimeout, symbol, "", "router timeout").WithError(err)
		default:
			return models.NewError(models.CodeRejected, symbol, "", "router status %d", se.Code).WithError(err)
		}
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return models.NewError(models.CodeTimeout, symbol, "", "router call").WithError(err)
	}
	return models.NewError(models.CodeRejected, symbol, "", "router call failed").WithError(err)
}
