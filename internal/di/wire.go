//go:build wireinject
// +build wireinject

package di

import (
	"chartfeed/pkg/config"
	"chartfeed/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,

		// Repositories
		ProvideRegistry,
		ProvideBarStore,
		ProvideShapeStore,
		ProvideShapeEvents,

		// Use cases
		ProvideHistoryService,
		ProvideDatafeedService,
		ProvideShapeService,

		// HTTP
		ProvideRateLimiter,
		ProvideDatafeedHandler,
		ProvideShapesHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
