package execution

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"VoltX/internal/domain/models"
)

func TestPaperFillPrice(t *testing.T) {
	g := NewPaperGateway(PaperConfig{SlippagePct: 0.1, FeePct: 0.1, TickSize: 0.01})
	buy, err := g.SubmitOrder(context.Background(), models.OrderRequest{ClientID: "c1", Symbol: "BTCUSDT", Side: models.SideBuy, Qty: 2, LimitPrice: 100})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if buy.Price != 100.1 || buy.OrderID == "" {
		t.Fatalf("expected 100.1, got %+v", buy)
	}
	if buy.Fee < 0.2001 || buy.Fee > 0.2003 {
		t.Fatalf("unexpected fee %v", buy.Fee)
	}

	sell, _ := g.SubmitOrder(context.Background(), models.OrderRequest{Symbol: "BTCUSDT", Side: models.SideSell, Qty: 1, LimitPrice: 100, Tolerance: 0.05})
	if sell.Price != 99.95 {
		t.Fatalf("tolerance should cap slippage, got %v", sell.Price)
	}
}

func TestPaperFailureInjection(t *testing.T) {
	g := NewPaperGateway(PaperConfig{})
	g.FailNext(1, models.ErrRejected)
	req := models.OrderRequest{Symbol: "X", Side: models.SideSell, Qty: 1, LimitPrice: 10}
	if _, err := g.SubmitOrder(context.Background(), req); !errors.Is(err, models.ErrRejected) {
		t.Fatalf("expected injected rejection, got %v", err)
	}
	if _, err := g.SubmitOrder(context.Background(), req); err != nil {
		t.Fatalf("second order should fill: %v", err)
	}
}

func TestPaperTimeout(t *testing.T) {
	g := NewPaperGateway(PaperConfig{Latency: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := g.SubmitOrder(ctx, models.OrderRequest{Symbol: "X", Side: models.SideBuy, Qty: 1, LimitPrice: 10})
	if !errors.Is(err, models.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestHTTPGatewayFill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.OrderRequest
		json.NewDecoder(r.Body).Decode(&req)
		if r.Method != http.MethodPost || r.URL.Path != "/orders" || req.ClientID != "c1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(orderResponse{OrderID: "o1", Status: "FILLED", Price: 101, Qty: req.Qty})
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, time.Second, 1)
	fill, err := g.SubmitOrder(context.Background(), models.OrderRequest{ClientID: "c1", Symbol: "BTCUSDT", Side: models.SideBuy, Qty: 0.5, LimitPrice: 100})
	if err != nil || fill.OrderID != "o1" || fill.Price != 101 || fill.Qty != 0.5 {
		t.Fatalf("unexpected fill %+v %v", fill, err)
	}
}

func TestHTTPGatewayErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusPaymentRequired, models.ErrInsufficientFunds},
		{http.StatusUnprocessableEntity, models.ErrRejected},
		{http.StatusGatewayTimeout, models.ErrTimeout},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		g := NewHTTPGateway(srv.URL, time.Second, 3)
		_, err := g.SubmitOrder(context.Background(), models.OrderRequest{Symbol: "X", Side: models.SideBuy, Qty: 1, LimitPrice: 1})
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestHTTPGatewayPartialFill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orderResponse{OrderID: "o2", Status: "PARTIALLY_FILLED", Price: 10, Qty: 0.3})
	}))
	defer srv.Close()
	g := NewHTTPGateway(srv.URL, time.Second, 1)
	fill, err := g.SubmitOrder(context.Background(), models.OrderRequest{Symbol: "X", Side: models.SideBuy, Qty: 1, LimitPrice: 10})
	if !errors.Is(err, models.ErrPartialFill) || fill == nil || fill.Qty != 0.3 {
		t.Fatalf("expected partial fill, got %+v %v", fill, err)
	}
}
