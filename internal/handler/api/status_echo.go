package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"VoltX/internal/domain/models"
	icache "VoltX/internal/service/cache"
	"VoltX/internal/service/metrics"
	"VoltX/internal/service/ratelimit"
	"VoltX/internal/usecase"
	pkgcache "VoltX/pkg/cache"
	xhttp "VoltX/pkg/http"
	xlogger "VoltX/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Connectivity reports whether the market data feed is up.
type Connectivity interface {
	IsConnected() bool
}

// StatusEchoHandler serves the read-only status API.
type StatusEchoHandler struct {
	logger *xlogger.Logger
	svc    *usecase.StatusService
	feed   Connectivity
	cache  icache.BytesCache
	rl     *ratelimit.Limiter
}

func NewStatusEchoHandler(logger *xlogger.Logger, svc *usecase.StatusService, feed Connectivity) *StatusEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &StatusEchoHandler{logger: logger, svc: svc, feed: feed, rl: ratelimit.New()}
}

// SetCache enables response caching for candle queries.
func (h *StatusEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *StatusEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api")
	g.GET("/status", h.observe("status", h.Status))
	g.GET("/regime", h.observe("regime", h.Regime))
	g.GET("/universe", h.observe("universe", h.Universe))
	g.GET("/risk", h.observe("risk", h.Risk))
	g.GET("/positions", h.observe("positions", h.Positions))
	g.GET("/positions/history", h.observe("history", h.History))
	g.GET("/snapshot", h.observe("snapshot", h.Snapshot))
	g.GET("/candles", h.observe("candles", h.Candles))
}

func (h *StatusEchoHandler) observe(endpoint string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()
		return next(c)
	}
}

func (h *StatusEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.APIErrors.WithLabelValues(endpoint).Inc()
	var ee *models.EngineError
	if errors.As(err, &ee) && ee.Code == models.CodeInsufficientData {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(ee.Error()))
	}
	h.logger.Error("status api error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError("internal error").WithError(err))
}

func (h *StatusEchoHandler) Health(c echo.Context) error {
	connected := h.feed == nil || h.feed.IsConnected()
	status := h.svc.Status()
	body := map[string]interface{}{
		"status":          "ok",
		"feed_connected":  connected,
		"workers":         status.Workers,
		"breaker_tripped": status.Risk.CircuitBreakerTripped,
	}
	if !connected {
		body["status"] = "degraded"
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	return c.JSON(http.StatusOK, body)
}

func (h *StatusEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.svc.Status())
}

func (h *StatusEchoHandler) Regime(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, h.svc.Regime())
}

func (h *StatusEchoHandler) Universe(c echo.Context) error {
	u, legacy := h.svc.Universe()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"universe": u,
		"legacy":   legacy,
	})
}

func (h *StatusEchoHandler) Risk(c echo.Context) error {
	st, guards := h.svc.Risk()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"state":  st,
		"guards": guards,
	})
}

func (h *StatusEchoHandler) Positions(c echo.Context) error {
	req := &models.PositionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.svc.Positions(*req)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *StatusEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.svc.History(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *StatusEchoHandler) Snapshot(c echo.Context) error {
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.svc.Snapshot(req.Symbol)
	if err != nil {
		return h.fail(c, "snapshot", err)
	}
	return xhttp.SuccessResponse(c, snap)
}

// Candles reads from ClickHouse, so it is rate limited per client and cached briefly.
func (h *StatusEchoHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":candles", 5, 2) {
		h.logger.Warn("status.candles rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("RATE_LIMITED", "", "rate limited", http.StatusTooManyRequests))
	}

	key := pkgcache.GenerateKeyWithParams("candles", req.Symbol, req.Timeframe, req.Limit)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(key); err != nil {
			h.logger.Warn("status.candles cache_get_error", xlogger.Error(err))
		} else if ok {
			var rows []models.Candle
			if json.Unmarshal(b, &rows) == nil {
				return xhttp.ListResponse(c, rows, int64(len(rows)))
			}
		}
	}

	rows, err := h.svc.Candles(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "candles", err)
	}
	if h.cache != nil {
		if b, err := json.Marshal(rows); err == nil {
			if err := h.cache.SetBytes(key, b, 10*time.Second); err != nil {
				h.logger.Warn("status.candles cache_set_error", xlogger.Error(err))
			}
		}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

var _ xhttp.Handler = (*StatusEchoHandler)(nil)
