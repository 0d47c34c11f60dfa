package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"

	"chartfeed/internal/domain/repository"
	"chartfeed/internal/handler/api"
	internalrepo "chartfeed/internal/repository"
	"chartfeed/internal/service/ratelimit"
	"chartfeed/internal/usecase"
	"chartfeed/pkg/cache"
	pkgch "chartfeed/pkg/clickhouse"
	"chartfeed/pkg/config"
	xhttp "chartfeed/pkg/http"
	pkgkafka "chartfeed/pkg/kafka"
	applogger "chartfeed/pkg/logger"
	"chartfeed/pkg/metrics"
	"chartfeed/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default
// registry, which /metrics serves.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideRegistry creates the registry.json backed symbol registry.
func ProvideRegistry(cfg *config.Config, l *applogger.Logger) repository.Registry {
	r := internalrepo.NewFileRegistry(cfg.RegistryPath())
	r.SetLogger(l)
	return r
}

// ProvideClickHouseClient creates a ClickHouse client when the clickhouse
// backend is selected; nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Datafeed.Backend != config.BackendClickHouse {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRedisCache connects the shared snapshot cache when enabled; nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	rc := cfg.Datafeed.Cache.Redis
	if !cfg.Datafeed.Cache.Enabled || !rc.Enabled {
		return nil, nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(rc.Host),
		cache.WithRedisPort(rc.Port),
		cache.WithRedisPassword(rc.Password),
		cache.WithRedisDB(rc.DB),
		cache.WithRedisPrefix(rc.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideBarStore selects the bar backend and puts the snapshot cache in front.
func ProvideBarStore(
	cfg *config.Config,
	chClient *pkgch.Client,
	redis *cache.RedisCache,
	m repository.Metrics,
	l *applogger.Logger,
) (repository.BarStore, error) {
	var store repository.BarStore
	switch cfg.Datafeed.Backend {
	case config.BackendClickHouse:
		if chClient == nil {
			return nil, fmt.Errorf("clickhouse backend selected without a client")
		}
		ch, err := internalrepo.NewClickHouseBarStore(chClient.DB(), cfg.ClickHouse.BarTable, cfg.ClickHouse.SeriesTable, m)
		if err != nil {
			return nil, fmt.Errorf("clickhouse bar store: %w", err)
		}
		ch.SetLogger(l)
		if cfg.ClickHouse.CreateSchema {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := ch.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("clickhouse schema: %w", err)
			}
		}
		store = ch
	default:
		fs := internalrepo.NewFileBarStore(cfg.Datafeed.DataDir, m)
		fs.SetLogger(l)
		store = fs
	}

	if !cfg.Datafeed.Cache.Enabled {
		return store, nil
	}
	opts := []internalrepo.CachedOption{
		internalrepo.WithTTL(cfg.Datafeed.Cache.TTL),
		internalrepo.WithCacheMetrics(m),
	}
	if redis != nil {
		opts = append(opts, internalrepo.WithL2(redis, cfg.Datafeed.Cache.Redis.TTL))
	}
	cached := internalrepo.NewCachedBarStore(store, opts...)
	cached.SetLogger(l)
	return cached, nil
}

// ProvideShapeStore opens the SQLite shape database, creating its directory.
func ProvideShapeStore(cfg *config.Config, l *applogger.Logger) (repository.ShapeStore, error) {
	if dir := filepath.Dir(cfg.Shapes.DBPath); dir != "" && cfg.Shapes.DBPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("shapes dir: %w", err)
		}
	}
	s, err := internalrepo.NewSQLiteShapeStore(cfg.Shapes.DBPath)
	if err != nil {
		return nil, fmt.Errorf("shape store: %w", err)
	}
	s.SetLogger(l)
	return s, nil
}

// ProvideKafkaProducer creates the shape event producer when Kafka is enabled; nil otherwise.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithTopic(cfg.Kafka.Topic),
		pkgkafka.WithAutoCreateTopic(cfg.Kafka.AutoCreate),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideShapeEvents publishes to Kafka when a producer exists and drops events otherwise.
func ProvideShapeEvents(producer *pkgkafka.Producer) repository.ShapeEvents {
	if producer == nil {
		return internalrepo.NopShapeEvents{}
	}
	return internalrepo.NewKafkaShapeEvents(producer)
}

// ProvideHistoryService creates the history use case.
func ProvideHistoryService(reg repository.Registry, store repository.BarStore, m repository.Metrics, l *applogger.Logger) *usecase.HistoryService {
	s := usecase.NewHistoryService(reg, store, m)
	s.SetLogger(l)
	return s
}

// ProvideDatafeedService creates the metadata use case.
func ProvideDatafeedService(reg repository.Registry, store repository.BarStore, l *applogger.Logger) *usecase.DatafeedService {
	s := usecase.NewDatafeedService(reg, store)
	s.SetLogger(l)
	return s
}

// ProvideShapeService creates the shapes use case.
func ProvideShapeService(store repository.ShapeStore, events repository.ShapeEvents, m repository.Metrics, l *applogger.Logger) *usecase.ShapeService {
	s := usecase.NewShapeService(store, events, m)
	s.SetLogger(l)
	return s
}

// ProvideRateLimiter creates the per-client limiter when enabled; nil otherwise.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Burst, cfg.RateLimit.PerSec)
}

// ProvideDatafeedHandler creates the datafeed routes, rate limited when configured.
func ProvideDatafeedHandler(l *applogger.Logger, df *usecase.DatafeedService, hs *usecase.HistoryService, lim *ratelimit.Limiter) *api.DatafeedEchoHandler {
	var mw []echo.MiddlewareFunc
	if lim != nil {
		mw = append(mw, lim.Middleware())
	}
	return api.NewDatafeedEchoHandler(l, df, hs, mw...)
}

// ProvideShapesHandler creates the shapes routes.
func ProvideShapesHandler(l *applogger.Logger, ss *usecase.ShapeService) *api.ShapesEchoHandler {
	return api.NewShapesEchoHandler(l, ss)
}

// ProvideHTTPServer creates the Echo server with every handler registered.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, datafeed *api.DatafeedEchoHandler, shapes *api.ShapesEchoHandler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(cfg.Metrics.Enabled, cfg.Server.SlowRequest),
		xhttp.WithLogger(l),
	}
	if cfg.Server.CORS != nil {
		opts = append(opts, xhttp.WithCORS(cfg.Server.CORS))
	}
	for prefix, dir := range cfg.Server.Static {
		opts = append(opts, xhttp.WithStatic(prefix, dir))
	}
	return xhttp.NewServer([]xhttp.Handler{datafeed, shapes}, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	shapes repository.ShapeStore,
	events repository.ShapeEvents,
	chClient *pkgch.Client,
	redis *cache.RedisCache,
) *server.App {
	app := server.New(cfg, l, httpServer)
	// Closed in reverse order: events flush before the stores go away.
	if chClient != nil {
		app.AddCloser("clickhouse", chClient.Close)
	}
	if redis != nil {
		app.AddCloser("redis", redis.Close)
	}
	app.AddCloser("shape store", shapes.Close)
	app.AddCloser("shape events", events.Close)
	return app
}
