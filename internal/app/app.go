package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/servicehub/internal/auth"
	"github.com/utafrali/servicehub/internal/config"
	"github.com/utafrali/servicehub/internal/event"
	handler "github.com/utafrali/servicehub/internal/handler/http"
	"github.com/utafrali/servicehub/internal/repository"
	"github.com/utafrali/servicehub/internal/repository/postgres"
	rediscache "github.com/utafrali/servicehub/internal/repository/redis"
	esindex "github.com/utafrali/servicehub/internal/search/elasticsearch"
	"github.com/utafrali/servicehub/internal/service"
	"github.com/utafrali/servicehub/migrations"
	"github.com/utafrali/servicehub/pkg/database"
	"github.com/utafrali/servicehub/pkg/health"
	pkgkafka "github.com/utafrali/servicehub/pkg/kafka"
	"github.com/utafrali/servicehub/pkg/middleware"
	"github.com/utafrali/servicehub/pkg/tracing"
)

const serviceName = "servicehub"

// App wires together all dependencies and runs the servicehub API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Redis and Kafka are optional; PostgreSQL is not.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(serviceName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := prometheus.Register(database.NewPoolStatsCollector(pool, serviceName)); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if cfg.RunMigrations {
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
	}

	// Configure slow query logging.
	if cfg.SlowQuery > 0 {
		database.SetSlowQueryLogging(cfg.SlowQuery, logger)
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	// Redis backs the category cache. Without it every read goes to PostgreSQL.
	var (
		redisClient   *goredis.Client
		categoryCache repository.CategoryCache
	)
	if cfg.RedisEnabled {
		redisClient, err = database.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			logger.Warn("redis unavailable, category cache disabled",
				slog.String("addr", cfg.Redis().Addr()),
				slog.String("error", err.Error()),
			)
		} else {
			categoryCache = rediscache.NewBreakerCache(
				rediscache.NewCategoryCache(redisClient, cfg.CatalogTTL),
				rediscache.DefaultBreakerConfig("redis-category-cache"),
				logger,
			)
			healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			})
			logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
		}
	}

	// Kafka carries domain events. When disabled they are dropped.
	var (
		producer *pkgkafka.Producer
		events   interface {
			service.AddressEventPublisher
			service.AccountEventPublisher
		} = event.Nop{}
	)
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(producer, logger)
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry)
	addressBook := service.NewAddressBook(
		postgres.NewAddressRepository(pool),
		events,
		logger,
		cfg.AllowDefaultlessAddresses,
	)
	accountService := service.NewAccountService(
		postgres.NewAccountRepository(pool),
		jwtManager,
		events,
		logger,
	)
	catalogService := service.NewCatalogService(
		postgres.NewCatalogRepository(pool),
		categoryCache,
		logger,
	)

	// Elasticsearch serves catalog search when configured. Any failure
	// leaves search on PostgreSQL.
	if cfg.ElasticsearchURL != "" {
		if err := buildSearchIndex(ctx, cfg, catalogService, healthHandler, logger); err != nil {
			logger.Warn("search index unavailable, searching PostgreSQL",
				slog.String("url", cfg.ElasticsearchURL),
				slog.String("error", err.Error()),
			)
		}
	}

	// HTTP router.
	router := handler.NewRouter(
		handler.Services{
			Addresses: addressBook,
			Accounts:  accountService,
			Catalog:   catalogService,
		},
		jwtManager.Identify,
		healthHandler,
		logger,
		handler.RouterConfig{
			CORS:          middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
			PprofCIDRs:    cfg.PprofAllowedCIDRs,
			CatalogMaxAge: cfg.CatalogMaxAge,
			AuthRPS:       cfg.AuthRateLimitRPS,
			AuthBurst:     cfg.AuthRateLimitBurst,
		},
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

func buildSearchIndex(
	ctx context.Context,
	cfg *config.Config,
	catalog *service.CatalogService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) error {
	engine, err := esindex.New(ctx, cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
	if err != nil {
		return err
	}
	n, err := catalog.BuildIndex(ctx, engine)
	if err != nil {
		return err
	}
	healthHandler.RegisterNonCritical("elasticsearch", engine.Ping)
	logger.Info("search index built",
		slog.String("index", cfg.ElasticsearchIndex),
		slog.Int("services", n),
	)
	return nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// Kafka producer, Redis client, PostgreSQL pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Flush spans after the drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
