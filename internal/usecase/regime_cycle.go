package usecase

import (
	"context"
	"time"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
	"VoltX/internal/services/regime"
	"VoltX/internal/services/universe"
	"VoltX/pkg/logger"
)

// SnapshotSource hands out the latest indicator snapshots per symbol.
type SnapshotSource interface {
	Snapshots(symbols []string) []models.IndicatorSnapshot
}

// RegimeCycle periodically reclassifies the market from the universe's snapshots.
type RegimeCycle struct {
	source    SnapshotSource
	universe  *universe.Manager
	regime    *regime.Publisher
	publisher domrepo.EventPublisher
	metrics   domrepo.Metrics
	log       *logger.Logger
	interval  time.Duration
	now       func() time.Time
}

func NewRegimeCycle(source SnapshotSource, u *universe.Manager, r *regime.Publisher, publisher domrepo.EventPublisher, metrics domrepo.Metrics, log *logger.Logger, interval time.Duration) *RegimeCycle {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RegimeCycle{source: source, universe: u, regime: r, publisher: publisher, metrics: metrics, log: log, interval: interval, now: time.Now}
}

// RunOnce classifies the current snapshots and publishes the result.
func (c *RegimeCycle) RunOnce(ctx context.Context) *models.Regime {
	u := c.universe.Current()
	snaps := c.source.Snapshots(u.Symbols)
	prev := c.regime.Current()
	r, changed := c.regime.Update(models.RegimeInputs{Snapshots: snaps, At: c.now()})
	c.metrics.RecordRegime(*r)
	if r.Version == prev.Version {
		c.log.Debug("Regime kept, not enough samples", logger.Int("samples", len(snaps)))
		return r
	}
	if !changed {
		return r
	}
	c.log.Info("Regime changed",
		logger.String("from", string(prev.State)),
		logger.String("to", string(r.State)),
		logger.Float64("score", r.Score),
		logger.Float64("breadth", r.Breadth),
		logger.Float64("momentum", r.Momentum),
		logger.Int("samples", r.Samples),
	)
	if c.publisher != nil {
		ev := models.NewEvent(models.EventRegimeChanged, "", "", r.UpdatedAt).
			With("score", r.Score).
			With("breadth", r.Breadth).
			With("momentum", r.Momentum).
			With("version", float64(r.Version))
		ev.Reason = string(r.State)
		if err := c.publisher.Publish(ctx, ev); err != nil {
			c.log.Warn("Failed to publish regime change", logger.Error(err))
		}
	}
	return r
}

// Start runs the cycle every interval until ctx is done.
func (c *RegimeCycle) Start(ctx context.Context) error {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunOnce(ctx)
			}
		}
	}()
	return nil
}
