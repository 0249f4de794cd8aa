package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/3Health-View/backend/internal/auth"
	"github.com/3Health-View/backend/internal/config"
	"github.com/3Health-View/backend/internal/event"
	handler "github.com/3Health-View/backend/internal/handler/http"
	"github.com/3Health-View/backend/internal/oura"
	"github.com/3Health-View/backend/internal/recommend"
	"github.com/3Health-View/backend/internal/repository"
	"github.com/3Health-View/backend/internal/repository/memory"
	"github.com/3Health-View/backend/internal/repository/postgres"
	"github.com/3Health-View/backend/internal/repository/redis"
	"github.com/3Health-View/backend/internal/service"
	"github.com/3Health-View/backend/migrations"
	"github.com/3Health-View/backend/pkg/database"
	"github.com/3Health-View/backend/pkg/health"
	"github.com/3Health-View/backend/pkg/httpclient"
	pkgkafka "github.com/3Health-View/backend/pkg/kafka"
	"github.com/3Health-View/backend/pkg/middleware"
	"github.com/3Health-View/backend/pkg/tracing"
)

// App wires together all dependencies and runs the backend.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// stores groups the persistence backends selected by configuration.
type stores struct {
	users repository.UserRepository
	docs  repository.DocumentRepository
	cache repository.DisplayCache
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    handler.ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		tracerShutdown: tracerShutdown,
	}
	healthHandler := health.NewHandler()

	st, err := a.initStores(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// Kafka is optional; without it domain events are dropped.
	var publisher event.Publisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return a.producer.Ping(ctx)
		})
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(publisher, cfg.KafkaTopic, logger)

	recommender, err := loadRecommender(ctx, cfg, logger)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("load recommendation model: %w", err)
	}

	// Provider access. Retries stay off so a failed sync surfaces at once.
	ouraHTTP := httpclient.DefaultConfig()
	ouraHTTP.Timeout = cfg.OuraTimeout
	ouraClient := httpclient.NewCircuitBreakerClient(
		httpclient.New(ouraHTTP),
		httpclient.DefaultCircuitBreakerConfig("oura"),
		logger,
	)
	healthHandler.RegisterNonCritical("oura", ouraClient.Check)
	fetcher := oura.NewFetcher(oura.NewDataClient(cfg.OuraAPIBaseURI, ouraClient), cfg.FetchConcurrency, logger)
	tokenProxy := oura.NewTokenProxy(cfg.OuraOAuthURI, cfg.OuraClientID, cfg.OuraClientSecret, cfg.OuraTimeout)

	// Build the dependency graph.
	sessions := auth.NewSessionManager(cfg.SecretKey, cfg.SessionTTL)
	userService := service.NewUserService(st.users, sessions, tokenProxy, eventProducer, logger)
	dataService := service.NewDataService(st.docs, st.cache, fetcher, recommender, eventProducer, logger)

	router := handler.NewRouter(userService, dataService, sessions.Validate, healthHandler, logger, handler.RouterConfig{
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,

		CredentialRateLimit: middleware.RateLimitConfig{
			RPS:   cfg.CredentialRateLimitRPS,
			Burst: cfg.CredentialRateLimitBurst,
		},
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStores connects the configured storage backends and registers their
// health checks.
func (a *App) initStores(ctx context.Context, healthHandler *health.Handler) (*stores, error) {
	cfg, logger := a.cfg, a.logger

	if cfg.StoreBackend == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return &stores{
			users: memory.NewUserRepository(),
			docs:  memory.NewDocumentRepository(),
			cache: memory.NewDisplayCache(cfg.CacheTTL),
		}, nil
	}

	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, handler.ServiceName)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = redisClient
	logger.Info("connected to Redis", slog.String("addr", fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)))

	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	return &stores{
		users: postgres.NewUserRepository(pool),
		docs:  postgres.NewDocumentRepository(pool, cfg.MaxBatchOps),
		cache: redis.NewDisplayCache(redisClient, cfg.CacheTTL),
	}, nil
}

// loadRecommender fetches the production model from MLflow when a tracking
// server is configured, and reads the local artifacts otherwise.
func loadRecommender(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*recommend.Recommender, error) {
	if cfg.MLflowTrackingURI != "" {
		client := recommend.NewMLflowClient(recommend.MLflowConfig{
			TrackingURI: cfg.MLflowTrackingURI,
			Experiment:  cfg.MLflowExperiment,
			RunName:     cfg.MLflowRunName,
		}, logger)
		return client.LoadProduction(ctx)
	}

	rec, err := recommend.LoadFiles(cfg.ModelPath, cfg.LabelEncoderPath)
	if err != nil {
		return nil, err
	}
	logger.Info("recommendation model loaded",
		slog.String("model", cfg.ModelPath),
		slog.Any("classes", rec.Classes()),
	)
	return rec, nil
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

// Shutdown drains in-flight requests, flushes spans, then closes the
// producer, Redis and the PostgreSQL pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Spans from drained requests are flushed after the HTTP server stops.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.closeResources())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases the connections opened by NewApp. It is safe to
// call on a partially initialized App.
func (a *App) closeResources() error {
	var errs []error

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
	if a.pool != nil {
		a.pool.Close()
	}

	return errors.Join(errs...)
}
