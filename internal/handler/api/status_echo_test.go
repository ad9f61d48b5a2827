package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
	icache "VoltX/internal/service/cache"
	"VoltX/internal/services/position"
	"VoltX/internal/services/regime"
	"VoltX/internal/services/risk"
	"VoltX/internal/services/universe"
	"VoltX/internal/usecase"
	pkgcache "VoltX/pkg/cache"
	pkgmetrics "VoltX/pkg/metrics"
	"VoltX/pkg/util"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type countingHistory struct{ calls int32 }

func (h *countingHistory) GetLatestNCandles(_ context.Context, symbol string, n int, tf models.Timeframe) ([]models.Candle, error) {
	atomic.AddInt32(&h.calls, 1)
	return []models.Candle{{Symbol: symbol, Timeframe: tf, Close: 100, Closed: true}}, nil
}

type feedStub bool

func (f feedStub) IsConnected() bool { return bool(f) }

func newTestServer(t *testing.T, feed Connectivity, hist domrepo.CandleHistory) *echo.Echo {
	t.Helper()
	u := universe.NewManager(time.Hour, nil)
	u.Replace([]string{"BTCUSDT", "ETHUSDT"}, time.Now())
	rp := regime.NewPublisher(regime.NewThresholdClassifier(regime.Thresholds{
		BreadthWeight: 0.6, MomentumWeight: 0.4, MomentumScale: 2, BullScore: 0.3, BearScore: -0.3,
	}), 3, time.Now())
	rm := risk.NewManager(risk.Config{LossStreak: 5, DailyLossLimitPct: 3, BasePct: 3}, util.TradingDay{})
	pm := position.NewManager(time.Minute, 10)
	eng := usecase.NewEngine(usecase.EngineConfig{}, usecase.EngineDeps{
		Universe:  u,
		Regime:    rp,
		Risk:      rm,
		Positions: pm,
		Metrics:   pkgmetrics.NewWithRegisterer(prometheus.NewRegistry()),
	})
	svc := usecase.NewStatusService(eng, rp, u, rm, pm, nil, hist)
	h := NewStatusEchoHandler(nil, svc, feed)
	h.SetCache(icache.New(pkgcache.NewMemoryCache(64), "api:"))
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func get(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestHealthReflectsFeed(t *testing.T) {
	e := newTestServer(t, feedStub(false), nil)
	rec := get(e, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with feed down, got %d", rec.Code)
	}
	e = newTestServer(t, feedStub(true), nil)
	if rec := get(e, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRegimeAndUniverse(t *testing.T) {
	e := newTestServer(t, nil, nil)

	env := decode(t, get(e, "/api/regime"))
	var r models.Regime
	if err := json.Unmarshal(env.Data, &r); err != nil {
		t.Fatalf("regime: %v", err)
	}
	if env.Status != http.StatusOK || r.State != models.RegimeFlat || r.Version != 0 {
		t.Fatalf("unexpected regime %+v", r)
	}

	env = decode(t, get(e, "/api/universe"))
	var u struct {
		Universe models.Universe `json:"universe"`
	}
	if err := json.Unmarshal(env.Data, &u); err != nil {
		t.Fatalf("universe: %v", err)
	}
	if len(u.Universe.Symbols) != 2 || u.Universe.Version != 1 {
		t.Fatalf("unexpected universe %+v", u.Universe)
	}
}

func TestSnapshotErrors(t *testing.T) {
	e := newTestServer(t, nil, nil)
	if env := decode(t, get(e, "/api/snapshot")); env.Status != http.StatusBadRequest {
		t.Fatalf("missing symbol must be rejected, got %d", env.Status)
	}
	if env := decode(t, get(e, "/api/snapshot?symbol=BTCUSDT")); env.Status != http.StatusNotFound {
		t.Fatalf("no snapshot yet must map to 404, got %d", env.Status)
	}
}

func TestPositionsFilterValidation(t *testing.T) {
	e := newTestServer(t, nil, nil)
	if env := decode(t, get(e, "/api/positions?strategy=GRID")); env.Status != http.StatusBadRequest {
		t.Fatalf("unknown strategy must be rejected, got %d", env.Status)
	}
	if env := decode(t, get(e, "/api/positions?strategy=VBS")); env.Status != http.StatusOK {
		t.Fatalf("expected ok, got %d", env.Status)
	}
}

func TestCandlesAreCached(t *testing.T) {
	hist := &countingHistory{}
	e := newTestServer(t, nil, hist)
	for i := 0; i < 2; i++ {
		env := decode(t, get(e, "/api/candles?symbol=BTCUSDT&tf=3m&limit=10"))
		if env.Status != http.StatusOK {
			t.Fatalf("request %d: status %d", i, env.Status)
		}
		var list struct {
			Rows  []models.Candle `json:"rows"`
			Total int64           `json:"total"`
		}
		if err := json.Unmarshal(env.Data, &list); err != nil {
			t.Fatalf("candles: %v", err)
		}
		if list.Total != 1 || list.Rows[0].Timeframe != models.TF3m {
			t.Fatalf("unexpected candles %+v", list)
		}
	}
	if n := atomic.LoadInt32(&hist.calls); n != 1 {
		t.Fatalf("second request should hit the cache, history called %d times", n)
	}
}

func TestCandlesWithoutHistoryFails(t *testing.T) {
	e := newTestServer(t, nil, nil)
	if env := decode(t, get(e, "/api/candles?symbol=BTCUSDT")); env.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 without history, got %d", env.Status)
	}
}
