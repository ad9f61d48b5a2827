package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"VoltX/internal/domain/models"
	"VoltX/internal/domain/repository"
	"VoltX/internal/services/risk"
	"VoltX/internal/usecase"
	pkgcache "VoltX/pkg/cache"
	pkgch "VoltX/pkg/clickhouse"
	"VoltX/pkg/config"
	xhttp "VoltX/pkg/http"
	pkgkafka "VoltX/pkg/kafka"
	applogger "VoltX/pkg/logger"
	"VoltX/pkg/queue"
)

// UniverseSeeder reads and writes the ranked symbol list.
type UniverseSeeder interface {
	Latest(ctx context.Context) (*models.RankedSymbols, error)
	Publish(ctx context.Context, r models.RankedSymbols, ttl time.Duration) error
}

// Deps lists everything the application runs. Optional parts may be nil.
type Deps struct {
	Config        *config.Config
	Logger        *applogger.Logger
	Engine        *usecase.Engine
	Risk          *risk.Manager
	Refresher     *usecase.UniverseRefresher
	Seeder        UniverseSeeder
	RegimeCycle   *usecase.RegimeCycle
	Recorder      *usecase.CandleRecorder
	Collector     *usecase.CandleCollector
	Consumer      *pkgkafka.Consumer
	KafkaHandler  pkgkafka.MessageHandler
	AlertConsumer *queue.RedisConsumer
	Events        repository.EventPublisher
	Handler       xhttp.Handler
	ClickHouse    *pkgch.Client
	Redis         *pkgcache.RedisCache
}

// App encapsulates the entire application lifecycle.
type App struct {
	d          Deps
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(d Deps) *App {
	l := d.Logger
	if l == nil {
		l = applogger.Nop()
	}
	return &App{d: d, cfg: d.Config, l: l}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.start(ctx); err != nil {
		a.shutdown()
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	a.shutdown()
	return nil
}

func (a *App) start(ctx context.Context) error {
	d := a.d

	// Risk state first so entries never see a fresh breaker after a restart.
	rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
	if err := d.Risk.Restore(rctx); err != nil {
		a.l.Warn("risk state not restored, starting clean", applogger.Error(err))
	}
	rcancel()
	go func() {
		if err := d.Risk.Run(ctx); err != nil && ctx.Err() == nil {
			a.l.Error("risk manager stopped", applogger.Error(err))
		}
	}()

	if d.AlertConsumer != nil {
		if err := d.AlertConsumer.Start(ctx); err != nil {
			a.l.Warn("alert consumer start failed", applogger.Error(err))
		} else if _, _, dead, err := d.AlertConsumer.Backlog(ctx); err == nil && dead > 0 {
			a.l.Warn("dead-lettered exit alerts need attention", applogger.Int64("count", dead))
		}
	}

	a.seedUniverse(ctx)

	if err := d.Engine.Start(ctx); err != nil {
		return fmt.Errorf("engine start: %w", err)
	}
	d.Refresher.OnChange(d.Engine.Track)
	d.Recorder.Start(ctx)

	switch a.cfg.Feed.Source {
	case "kafka":
		if d.Consumer == nil || d.KafkaHandler == nil {
			return fmt.Errorf("kafka feed selected but consumer not configured")
		}
		d.Consumer.RegisterHandler(d.KafkaHandler)
		if err := d.Consumer.Start(); err != nil {
			return fmt.Errorf("kafka consumer start: %w", err)
		}
		a.l.Info("kafka candle consumer started", applogger.String("topic", d.KafkaHandler.Topic()))
	default:
		d.Refresher.OnChange(d.Collector.OnUniverse)
		if err := d.Collector.Start(ctx, nil); err != nil {
			return fmt.Errorf("collector start: %w", err)
		}
		a.l.Info("market stream connected", applogger.String("url", a.cfg.Feed.WebSocketURL))
	}

	if err := d.Refresher.Start(ctx); err != nil {
		return fmt.Errorf("universe refresher start: %w", err)
	}
	if err := d.RegimeCycle.Start(ctx); err != nil {
		return fmt.Errorf("regime cycle start: %w", err)
	}

	a.httpServer = xhttp.NewServer(d.Handler,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.l.With(applogger.String("component", "http"))),
	)
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http server start: %w", err)
	}

	a.l.Info("engine running",
		applogger.String("env", a.cfg.Environment),
		applogger.String("feed", a.cfg.Feed.Source),
		applogger.String("execution", a.cfg.Execution.Mode),
		applogger.String("recorder", a.cfg.Recorder.Backend),
	)
	return nil
}

// seedUniverse publishes the configured symbols when no ranking exists yet.
func (a *App) seedUniverse(ctx context.Context) {
	syms := a.cfg.Feed.Symbols
	if a.d.Seeder == nil || len(syms) == 0 {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if r, err := a.d.Seeder.Latest(sctx); err == nil && r != nil && len(r.Symbols) > 0 {
		return
	}
	if err := a.d.Seeder.Publish(sctx, models.RankedSymbols{Symbols: syms, GeneratedAt: time.Now()}, 0); err != nil {
		a.l.Warn("universe seed failed", applogger.Error(err))
		return
	}
	a.l.Info("universe seeded from config", applogger.Strings("symbols", syms))
}

// shutdown stops inputs first, then the engine, then flushes and closes infrastructure.
func (a *App) shutdown() {
	d := a.d
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.l.Info("shutting down...")

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}
	if d.Collector != nil && a.cfg.Feed.Source != "kafka" {
		if err := d.Collector.Shutdown(ctx); err != nil {
			a.l.Warn("collector stop error", applogger.Error(err))
		}
	}
	if d.Consumer != nil {
		if err := d.Consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if err := d.Engine.Stop(ctx); err != nil {
		a.l.Warn("engine stop error", applogger.Error(err))
	}
	d.Recorder.Close()

	if d.AlertConsumer != nil {
		if err := d.AlertConsumer.Stop(ctx); err != nil {
			a.l.Warn("alert consumer stop error", applogger.Error(err))
		}
	}
	// Aggregated logs ship through the producer the event publisher closes.
	a.l.RemoveCollector()
	if d.Events != nil {
		if err := d.Events.Close(); err != nil {
			a.l.Warn("event publisher close error", applogger.Error(err))
		}
	}
	if d.ClickHouse != nil {
		if err := d.ClickHouse.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
}
