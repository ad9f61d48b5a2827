package usecase

import (
	"context"
	"fmt"
	"time"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
	"VoltX/internal/services/universe"
	"VoltX/pkg/logger"
)

// UniverseListener is told about every newly published universe.
type UniverseListener func(ctx context.Context, u *models.Universe)

// UniverseRefresher pulls the ranked symbol list and publishes a new snapshot.
// A failed pull keeps the last snapshot, even past its validity window.
type UniverseRefresher struct {
	source    domrepo.UniverseSource
	universe  *universe.Manager
	log       *logger.Logger
	interval  time.Duration
	now       func() time.Time
	listeners []UniverseListener
}

func NewUniverseRefresher(source domrepo.UniverseSource, u *universe.Manager, log *logger.Logger, interval time.Duration) *UniverseRefresher {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UniverseRefresher{source: source, universe: u, log: log, interval: interval, now: time.Now}
}

// OnChange registers a listener.
func (r *UniverseRefresher) OnChange(fn UniverseListener) {
	r.listeners = append(r.listeners, fn)
}

// RunOnce pulls the ranking once.
func (r *UniverseRefresher) RunOnce(ctx context.Context) (*models.Universe, error) {
	now := r.now()
	ranked, err := r.source.Latest(ctx)
	if err == nil && (ranked == nil || len(ranked.Symbols) == 0) {
		err = fmt.Errorf("ranking is empty")
	}
	if err != nil {
		cur := r.universe.Current()
		r.log.Warn("Universe refresh failed, keeping last snapshot",
			logger.Uint64("version", cur.Version),
			logger.Bool("expired", cur.Expired(now)),
			logger.Error(err),
		)
		return cur, fmt.Errorf("refresh universe: %w", err)
	}
	if !ranked.GeneratedAt.IsZero() && now.Sub(ranked.GeneratedAt) > r.interval {
		r.log.Warn("Ranking is older than the refresh interval", logger.Duration("age", now.Sub(ranked.GeneratedAt)))
	}
	u := r.universe.Replace(ranked.Symbols, now)
	legacy := r.universe.Legacy(u)
	r.log.Info("Universe refreshed",
		logger.Strings("symbols", u.Symbols),
		logger.Strings("legacy", legacy),
		logger.Uint64("version", u.Version),
	)
	for _, fn := range r.listeners {
		fn(ctx, u)
	}
	return u, nil
}

// Start pulls once immediately, then every interval until ctx is done.
func (r *UniverseRefresher) Start(ctx context.Context) error {
	_, _ = r.RunOnce(ctx)
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = r.RunOnce(ctx)
			}
		}
	}()
	return nil
}
