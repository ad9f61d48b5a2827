package metrics

import (
	"time"

	"VoltX/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signals           *prometheus.CounterVec
	positionsOpened   *prometheus.CounterVec
	positionsClosed   *prometheus.CounterVec
	closedPnl         *prometheus.HistogramVec
	openPositions     prometheus.Gauge
	breakerTripped    prometheus.Gauge
	consecutiveLosses prometheus.Gauge
	dailyPnl          prometheus.Gauge
	regime            *prometheus.GaugeVec
	regimeScore       prometheus.Gauge
	errorsTotal       *prometheus.CounterVec
	lastPrice         *prometheus.GaugeVec
	latency           *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on a custom registerer (useful for testing).
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voltx_signals_total",
				Help: "Signals generated by strategy engines",
			},
			[]string{"strategy", "kind", "reason"},
		),
		positionsOpened: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voltx_positions_opened_total",
				Help: "Positions confirmed open",
			},
			[]string{"strategy"},
		),
		positionsClosed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voltx_positions_closed_total",
				Help: "Positions closed by outcome",
			},
			[]string{"strategy", "outcome"},
		),
		closedPnl: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voltx_position_pnl_pct",
				Help:    "Realized pnl of closed positions in percent",
				Buckets: []float64{-5, -3, -2, -1.5, -1, -0.5, 0, 0.5, 1, 2, 3, 5, 10},
			},
			[]string{"strategy"},
		),
		openPositions: f.NewGauge(prometheus.GaugeOpts{
			Name: "voltx_open_positions",
			Help: "Non-terminal positions",
		}),
		breakerTripped: f.NewGauge(prometheus.GaugeOpts{
			Name: "voltx_circuit_breaker_tripped",
			Help: "1 while the circuit breaker blocks entries",
		}),
		consecutiveLosses: f.NewGauge(prometheus.GaugeOpts{
			Name: "voltx_consecutive_losses",
			Help: "Current losing streak",
		}),
		dailyPnl: f.NewGauge(prometheus.GaugeOpts{
			Name: "voltx_daily_pnl_pct",
			Help: "Accumulated pnl of the trading day in percent of equity",
		}),
		regime: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "voltx_regime",
				Help: "1 for the active regime state",
			},
			[]string{"state"},
		),
		regimeScore: f.NewGauge(prometheus.GaugeOpts{
			Name: "voltx_regime_score",
			Help: "Score behind the active regime",
		}),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voltx_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "voltx_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voltx_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordSignal(strategy models.Strategy, kind models.SignalKind, reason models.ReasonCode) {
	r.signals.WithLabelValues(string(strategy), string(kind), string(reason)).Inc()
}

func (r *Recorder) RecordPositionOpened(strategy models.Strategy) {
	r.positionsOpened.WithLabelValues(string(strategy)).Inc()
}

func (r *Recorder) RecordPositionClosed(strategy models.Strategy, pnlPct float64) {
	outcome := "win"
	if pnlPct < 0 {
		outcome = "loss"
	}
	r.positionsClosed.WithLabelValues(string(strategy), outcome).Inc()
	r.closedPnl.WithLabelValues(string(strategy)).Observe(pnlPct)
}

func (r *Recorder) RecordOpenPositions(n int) {
	r.openPositions.Set(float64(n))
}

// RecordRisk mirrors the risk snapshot into gauges.
func (r *Recorder) RecordRisk(s models.RiskState) {
	tripped := 0.0
	if s.CircuitBreakerTripped {
		tripped = 1
	}
	r.breakerTripped.Set(tripped)
	r.consecutiveLosses.Set(float64(s.ConsecutiveLosses))
	r.dailyPnl.Set(s.DailyPnlPct)
}

func (r *Recorder) RecordRegime(reg models.Regime) {
	for _, st := range []models.RegimeState{models.RegimeBull, models.RegimeFlat, models.RegimeBear} {
		v := 0.0
		if st == reg.State {
			v = 1
		}
		r.regime.WithLabelValues(string(st)).Set(v)
	}
	r.regimeScore.Set(reg.Score)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency.
func (r *Recorder) RecordLatency(op string, d time.Duration) {
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}
