//go:build wireinject
// +build wireinject

package di

import (
	"VoltX/pkg/config"
	"VoltX/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideStateCache,
		ProvideAlertQueues,

		// Repositories
		ProvideEventPublisher,
		ProvideCandleRepository,
		ProvideCandleHistory,
		ProvideTradeJournal,
		ProvideCandleStore,
		ProvideUniverseSource,
		ProvideRiskStore,
		ProvideAlertSink,
		ProvideExecutionGateway,
		ProvideCandleStream,

		// Domain services
		ProvideTradingDay,
		ProvideRegimePublisher,
		ProvideUniverseManager,
		ProvideRiskManager,
		ProvidePositionManager,

		// Use cases
		ProvideOrderRouter,
		ProvideEngine,
		ProvideCandleRecorder,
		ProvideCandleCollector,
		ProvideKafkaConsumer,
		ProvideKafkaCandlesHandler,
		ProvideRegimeCycle,
		ProvideUniverseRefresher,
		ProvideStatusService,

		// Transport
		ProvideStatusHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
