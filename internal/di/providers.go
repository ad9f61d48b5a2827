package di

import (
	"context"
	"fmt"
	"time"

	"VoltX/internal/domain/models"
	"VoltX/internal/domain/repository"
	"VoltX/internal/handler/api"
	mid "VoltX/internal/middleware"
	internalrepo "VoltX/internal/repository"
	icache "VoltX/internal/service/cache"
	"VoltX/internal/service/exchange"
	"VoltX/internal/service/ratelimit"
	"VoltX/internal/services/execution"
	"VoltX/internal/services/indicators"
	"VoltX/internal/services/position"
	"VoltX/internal/services/regime"
	"VoltX/internal/services/risk"
	"VoltX/internal/services/scanner"
	"VoltX/internal/services/strategy/dip"
	"VoltX/internal/services/strategy/vbs"
	"VoltX/internal/services/universe"
	"VoltX/internal/usecase"
	pkgcache "VoltX/pkg/cache"
	pkgch "VoltX/pkg/clickhouse"
	"VoltX/pkg/config"
	pkgkafka "VoltX/pkg/kafka"
	"VoltX/pkg/logger"
	"VoltX/pkg/metrics"
	"VoltX/pkg/queue"
	"VoltX/pkg/server"
	"VoltX/pkg/util"

	"github.com/segmentio/kafka-go"
)

// ProvideLogger builds the application logger. With log collection enabled,
// repeated error entries are aggregated and shipped to Kafka.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collect.Enabled && producer != nil {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Log.Collect.Interval,
			CountThreshold: cfg.Log.Collect.Threshold,
			Topic:          cfg.Log.Collect.Topic,
			Source:         "voltx-" + cfg.Environment,
			IncludeWarn:    cfg.Log.Collect.IncludeWarn,
			Publisher:      internalrepo.NewKafkaLogPublisher(producer),
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and the engine's tables.
// Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		internalrepo.CandleSchema(db + "." + cfg.Recorder.CandleTable),
		internalrepo.JournalSchema(db + "." + cfg.Recorder.JournalTable),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil without brokers.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideRedisCache connects to Redis. Returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideStateCache returns the store behind the universe ranking and the risk
// snapshot: Redis when available, process memory otherwise.
func ProvideStateCache(rc *pkgcache.RedisCache) pkgcache.Service {
	if rc != nil {
		return rc
	}
	return pkgcache.NewMemoryCache(1024)
}

// ProvideEventPublisher publishes to Kafka, or to the log without brokers.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *logger.Logger) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NewLogEventPublisher(l.With(logger.String("component", "events")))
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideCandleRepository returns the ClickHouse candle table, or nil.
func ProvideCandleRepository(ch *pkgch.Client, cfg *config.Config, l *logger.Logger) *internalrepo.CandleRepository {
	if ch == nil {
		return nil
	}
	repo := internalrepo.NewCandleRepository(ch.DB(), cfg.ClickHouse.Database+"."+cfg.Recorder.CandleTable)
	repo.SetLogger(l)
	return repo
}

// ProvideCandleHistory exposes stored candles for warm-up and the status API.
func ProvideCandleHistory(repo *internalrepo.CandleRepository) repository.CandleHistory {
	if repo == nil {
		return nil
	}
	return repo
}

// ProvideTradeJournal records closed positions in ClickHouse when enabled.
func ProvideTradeJournal(ch *pkgch.Client, cfg *config.Config) repository.TradeJournal {
	if ch == nil {
		return nil
	}
	return internalrepo.NewTradeJournal(ch.DB(), cfg.ClickHouse.Database+"."+cfg.Recorder.JournalTable)
}

// ProvideCandleStore selects the recorder backend.
func ProvideCandleStore(cfg *config.Config, repo *internalrepo.CandleRepository, producer *pkgkafka.Producer) repository.CandleStore {
	switch cfg.Recorder.Backend {
	case "clickhouse":
		if repo != nil {
			return repo
		}
	case "kafka":
		if producer != nil {
			return internalrepo.NewKafkaCandlePublisher(producer, cfg.Kafka.CandlesTopic)
		}
	}
	return nil
}

// ProvideUniverseSource reads the ranking published by the external ranking job.
func ProvideUniverseSource(c pkgcache.Service, cfg *config.Config) *internalrepo.RedisUniverseSource {
	return internalrepo.NewRedisUniverseSource(c, cfg.Redis.UniverseKey)
}

// ProvideRiskStore persists the risk snapshot across restarts.
func ProvideRiskStore(c pkgcache.Service, cfg *config.Config) repository.RiskStateStore {
	return internalrepo.NewRedisRiskStore(c, cfg.Redis.RiskKey)
}

// AlertQueues holds both sides of the urgent alert queue. Both are nil without Redis.
type AlertQueues struct {
	Publisher *queue.RedisPublisher
	Consumer  *queue.RedisConsumer
}

// ProvideAlertQueues builds the Redis alert queue and registers the forwarding job.
func ProvideAlertQueues(rc *pkgcache.RedisCache, events repository.EventPublisher, cfg *config.Config, l *logger.Logger) AlertQueues {
	if rc == nil {
		return AlertQueues{}
	}
	ql := l.With(logger.String("component", "alerts"))
	return AlertQueues{
		Publisher: queue.NewRedisPublisher(rc.Client(), cfg.Redis.AlertQueue),
		Consumer: queue.NewRedisConsumer(ql, queue.Config{Workers: 1, RetryLimit: 3, RetryDelay: 5 * time.Second, RetryMax: time.Minute},
			rc.Client(), cfg.Redis.AlertQueue, usecase.NewAlertJob(events, ql)),
	}
}

// ProvideAlertSink raises exit alerts through the queue, or not at all without Redis.
func ProvideAlertSink(q AlertQueues) repository.AlertSink {
	if q.Publisher == nil {
		return nil
	}
	return internalrepo.NewQueueAlertSink(q.Publisher, usecase.AlertMessageType)
}

// ProvideExecutionGateway selects the paper simulator or the HTTP order router.
func ProvideExecutionGateway(cfg *config.Config) repository.ExecutionGateway {
	x := cfg.Execution
	if x.Mode == "http" {
		return execution.NewHTTPGateway(x.RouterURL, x.Timeout, 3)
	}
	return execution.NewPaperGateway(execution.PaperConfig{
		SlippagePct: x.SlippagePct,
		FeePct:      x.FeePct,
		TickSize:    x.TickSize,
	})
}

// ProvideTradingDay parses the trading day boundary.
func ProvideTradingDay(cfg *config.Config) (util.TradingDay, error) {
	td, err := util.NewTradingDay(cfg.Strategy.TradingDayReset, cfg.Strategy.TradingDayLocation)
	if err != nil {
		return util.TradingDay{}, fmt.Errorf("trading day: %w", err)
	}
	return td, nil
}

// ProvideRegimePublisher starts from FLAT until enough snapshots are available.
func ProvideRegimePublisher(cfg *config.Config) *regime.Publisher {
	r := cfg.Regime
	cls := regime.NewThresholdClassifier(regime.Thresholds{
		BreadthWeight:  r.BreadthWeight,
		MomentumWeight: r.MomentumWeight,
		MomentumScale:  r.MomentumScale,
		BullScore:      r.BullScore,
		BearScore:      r.BearScore,
	})
	return regime.NewPublisher(cls, r.MinSamples, time.Now())
}

// ProvideUniverseManager keeps a universe valid for one refresh period.
func ProvideUniverseManager(cfg *config.Config) *universe.Manager {
	return universe.NewManager(time.Duration(cfg.Universe.RefreshMinutes)*time.Minute, cfg.Universe.Blacklist)
}

// RiskConfig maps the YAML risk section onto the risk manager's config.
func RiskConfig(cfg *config.Config) risk.Config {
	r := cfg.Risk
	profile := func(state models.RegimeState, p config.Profile) models.GuardProfile {
		return models.GuardProfile{
			Regime:          state,
			DipDropMinPct:   p.DipDropMinPct,
			DipDropMaxPct:   p.DipDropMaxPct,
			DipRSICeiling:   p.DipRSICeiling,
			SizeMultiplier:  p.SizeMultiplier,
			VBSAntiChasePct: p.VBSAntiChasePct,
			VBSRSICeiling:   p.VBSRSICeiling,
		}
	}
	return risk.Config{
		LossStreak:        r.LossStreak,
		DailyLossLimitPct: r.DailyLossLimitPct,
		BasePct:           r.BasePct,
		L2BasePct:         r.L2BasePct,
		L1Size:            r.L1Size,
		MaxPositionPct:    r.MaxPositionPct,
		MinOrderValue:     r.MinOrderValue,
		WeightDailyPnl:    r.WeightDailyPnl,
		QueueSize:         r.QueueSize,
		Profiles: map[models.RegimeState]models.GuardProfile{
			models.RegimeBull: profile(models.RegimeBull, r.Profiles.Bull),
			models.RegimeFlat: profile(models.RegimeFlat, r.Profiles.Flat),
			models.RegimeBear: profile(models.RegimeBear, r.Profiles.Bear),
		},
	}
}

// ProvideRiskManager creates the single owner of the risk state.
func ProvideRiskManager(
	cfg *config.Config,
	td util.TradingDay,
	events repository.EventPublisher,
	store repository.RiskStateStore,
	m repository.Metrics,
	l *logger.Logger,
) *risk.Manager {
	return risk.NewManager(RiskConfig(cfg), td,
		risk.WithPublisher(events),
		risk.WithStore(store),
		risk.WithMetrics(m),
		risk.WithLogger(l.With(logger.String("component", "risk"))),
	)
}

// ProvidePositionManager expires pending orders a little after the router gives up on them.
func ProvidePositionManager(cfg *config.Config) *position.Manager {
	return position.NewManager(cfg.Strategy.FillTimeout()+5*time.Second, cfg.Risk.HistorySize)
}

// ProvideOrderRouter places entries and retries exits against the gateway.
func ProvideOrderRouter(
	gw repository.ExecutionGateway,
	alerts repository.AlertSink,
	events repository.EventPublisher,
	m repository.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) *usecase.OrderRouter {
	x := cfg.Execution
	return usecase.NewOrderRouter(gw, alerts, events, m, ratelimit.New(), l.With(logger.String("component", "router")), usecase.RouterConfig{
		FillTimeout:    cfg.Strategy.FillTimeout(),
		RetryBase:      x.ExitRetryBase,
		RetryMax:       x.ExitRetryMax,
		AlertAfter:     x.ExitAlertAfter,
		Tolerance:      x.ExitTolerance,
		ToleranceDecay: x.ToleranceDecay,
		ToleranceFloor: x.ToleranceFloor,
		AlertEvery:     time.Minute,
	})
}

// EngineConfig maps the strategy section onto the engine's config.
func EngineConfig(cfg *config.Config, td util.TradingDay) usecase.EngineConfig {
	s := cfg.Strategy
	return usecase.EngineConfig{
		TrendTF:          models.Timeframe(s.TrendTimeframe),
		EvalTF:           models.Timeframe(s.EvalTimeframe),
		WarmupCandles:    cfg.Feed.WarmupCandles,
		MaxStaleness:     cfg.Feed.MaxStaleness,
		EvaluateIntrabar: s.EvaluateIntrabar,
		Equity:           cfg.Execution.Equity,
		Params:           indicators.DefaultParams(),
		VBS: vbs.Config{
			BreakoutFactor:   s.BreakoutFactor,
			AntiChasePct:     s.AntiChasePct,
			TrailingStopPct:  s.TrailingStopPct,
			HardStopPct:      s.HardStopPct,
			RSICeiling:       s.VBSRSICeiling,
			RSIInclusive:     s.VBSRSIInclusive,
			RequireBull:      s.VBSRequireBull,
			RequireVolume:    s.VBSRequireVolume,
			RequireBandBreak: s.VBSBandConfirm,
			BandTolerancePct: s.VBSBandTolerance,
		},
		Dip: dip.Config{
			TakeProfitPct:    s.DipTakeProfitPct,
			StopLossPct:      s.DipStopLossPct,
			BandTolerancePct: s.DipBandTolerance,
			TrendFilter:      s.DipTrendFilter,
			Cooldown:         s.DipCooldown,
		},
		Scanner: scanner.Config{
			// gating on TREND_ACTIVE needs the scanner running
			Enabled:         s.VolumeScanner || s.VBSRequireVolume,
			SpikeThreshold:  s.RelVolumeThreshold,
			ClimaxThreshold: s.ClimaxThreshold,
			ClimaxWickRatio: s.ClimaxWickRatio,
			ClimaxDropPct:   s.ClimaxDropPct,
			ExhaustionRSI:   s.ExhaustionRSI,
			Cooldown:        s.ExhaustionCooldown,
			SpikeHold:       s.VolumeSpikeHold,
		},
		TradingDay: td,
	}
}

// ProvideEngine creates the strategy engine.
func ProvideEngine(
	cfg *config.Config,
	td util.TradingDay,
	u *universe.Manager,
	rp *regime.Publisher,
	rm *risk.Manager,
	pm *position.Manager,
	router *usecase.OrderRouter,
	history repository.CandleHistory,
	events repository.EventPublisher,
	journal repository.TradeJournal,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.Engine {
	return usecase.NewEngine(EngineConfig(cfg, td), usecase.EngineDeps{
		Universe:  u,
		Regime:    rp,
		Risk:      rm,
		Positions: pm,
		Router:    router,
		History:   history,
		Publisher: events,
		Journal:   journal,
		Metrics:   m,
		Log:       l.With(logger.String("component", "engine")),
	})
}

// ProvideCandleRecorder tees closed candles into the configured store.
func ProvideCandleRecorder(
	engine *usecase.Engine,
	store repository.CandleStore,
	m repository.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) *usecase.CandleRecorder {
	return usecase.NewCandleRecorder(engine, store, m, l.With(logger.String("component", "recorder")),
		cfg.Recorder.BatchSize, cfg.Recorder.BatchTimeout)
}

// FeedTimeframes lists the timeframes the engine needs from the exchange.
func FeedTimeframes(cfg *config.Config) []models.Timeframe {
	return []models.Timeframe{
		models.Timeframe(cfg.Strategy.EvalTimeframe),
		models.Timeframe(cfg.Strategy.TrendTimeframe),
		models.TF1d,
	}
}

// ProvideCandleStream creates the exchange kline WebSocket stream.
func ProvideCandleStream(cfg *config.Config, l *logger.Logger) repository.CandleStream {
	return exchange.New(
		cfg.Feed.WebSocketURL,
		FeedTimeframes(cfg),
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		l.With(logger.String("component", "stream")),
	)
}

// ProvideCandleCollector wires the stream through the rate-limited pipeline into the recorder.
func ProvideCandleCollector(
	stream repository.CandleStream,
	recorder *usecase.CandleRecorder,
	m repository.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) *usecase.CandleCollector {
	pipe := mid.NewRealtimePipeline(recorder, m,
		mid.WithMaxRPS(500),
		mid.WithBufferSize(cfg.Feed.BufferSize),
	)
	return usecase.NewCandleCollector(stream, recorder, m, pipe, l.With(logger.String("component", "collector")), cfg.Feed.ReconnectDelay)
}

// ProvideKafkaConsumer creates the candle consumer when the feed comes from Kafka.
func ProvideKafkaConsumer(cfg *config.Config, m repository.Metrics, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Feed.Source != "kafka" {
		return nil, nil
	}
	kl := l.With(logger.String("component", "kafka_consumer"))
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(kl),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, km kafka.Message, _ []byte, err error) {
			m.RecordError("consumer_handle")
			kl.Warn("Candle message failed",
				logger.String("topic", topic),
				logger.Int("partition", km.Partition),
				logger.Int64("offset", km.Offset),
				logger.Error(err),
			)
		},
	})
	return consumer, nil
}

// ProvideKafkaCandlesHandler feeds consumed candles through the recorder.
func ProvideKafkaCandlesHandler(recorder *usecase.CandleRecorder, m repository.Metrics, cfg *config.Config) *usecase.KafkaCandlesHandler {
	return usecase.NewKafkaCandlesHandler(cfg.Kafka.CandlesTopic, recorder, m)
}

// ProvideRegimeCycle reclassifies the market on a timer.
func ProvideRegimeCycle(
	engine *usecase.Engine,
	u *universe.Manager,
	rp *regime.Publisher,
	events repository.EventPublisher,
	m repository.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) *usecase.RegimeCycle {
	return usecase.NewRegimeCycle(engine, u, rp, events, m, l.With(logger.String("component", "regime")), cfg.Regime.Interval)
}

// ProvideUniverseRefresher pulls the ranking every refresh period.
func ProvideUniverseRefresher(src *internalrepo.RedisUniverseSource, u *universe.Manager, l *logger.Logger, cfg *config.Config) *usecase.UniverseRefresher {
	return usecase.NewUniverseRefresher(src, u, l.With(logger.String("component", "universe")), time.Duration(cfg.Universe.RefreshMinutes)*time.Minute)
}

// ProvideStatusService builds the read model behind the status API.
func ProvideStatusService(
	engine *usecase.Engine,
	rp *regime.Publisher,
	u *universe.Manager,
	rm *risk.Manager,
	pm *position.Manager,
	journal repository.TradeJournal,
	history repository.CandleHistory,
) *usecase.StatusService {
	return usecase.NewStatusService(engine, rp, u, rm, pm, journal, history)
}

// ProvideStatusHandler registers the status API. Candle responses are cached in
// Redis when it is available, in process otherwise.
func ProvideStatusHandler(
	l *logger.Logger,
	svc *usecase.StatusService,
	collector *usecase.CandleCollector,
	rc *pkgcache.RedisCache,
	cfg *config.Config,
) *api.StatusEchoHandler {
	var feed api.Connectivity
	if cfg.Feed.Source == "websocket" {
		feed = collector
	}
	h := api.NewStatusEchoHandler(l.With(logger.String("component", "api")), svc, feed)
	if rc != nil {
		h.SetCache(icache.New(rc, "api:"))
	} else {
		h.SetCache(icache.New(pkgcache.NewMemoryCache(256), "api:"))
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	engine *usecase.Engine,
	rm *risk.Manager,
	refresher *usecase.UniverseRefresher,
	src *internalrepo.RedisUniverseSource,
	cycle *usecase.RegimeCycle,
	recorder *usecase.CandleRecorder,
	collector *usecase.CandleCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaCandlesHandler,
	alerts AlertQueues,
	events repository.EventPublisher,
	handler *api.StatusEchoHandler,
	ch *pkgch.Client,
	rc *pkgcache.RedisCache,
) *server.App {
	return server.New(server.Deps{
		Config:        cfg,
		Logger:        l,
		Engine:        engine,
		Risk:          rm,
		Refresher:     refresher,
		Seeder:        src,
		RegimeCycle:   cycle,
		Recorder:      recorder,
		Collector:     collector,
		Consumer:      consumer,
		KafkaHandler:  kh,
		AlertConsumer: alerts.Consumer,
		Events:        events,
		Handler:       handler,
		ClickHouse:    ch,
		Redis:         rc,
	})
}
