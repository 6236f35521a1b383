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
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/stylinx/internal/checkout"
	"github.com/utafrali/stylinx/internal/config"
	"github.com/utafrali/stylinx/internal/event"
	handler "github.com/utafrali/stylinx/internal/handler/http"
	redisrepo "github.com/utafrali/stylinx/internal/repository/redis"
	"github.com/utafrali/stylinx/internal/service"
	"github.com/utafrali/stylinx/internal/submission"
	"github.com/utafrali/stylinx/migrations"
	"github.com/utafrali/stylinx/pkg/database"
	"github.com/utafrali/stylinx/pkg/health"
	"github.com/utafrali/stylinx/pkg/httpclient"
	pkgkafka "github.com/utafrali/stylinx/pkg/kafka"
	"github.com/utafrali/stylinx/pkg/tracing"
)

// evictInterval is how often idle engines are dropped from memory.
const evictInterval = time.Minute

// App wires together all dependencies and runs the checkout service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	sessions       *service.SessionService
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Anything opened before a failure is closed again.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeResources(context.Background())
		}
	}()

	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    handler.ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Insecure:       cfg.OTELInsecure,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	healthHandler := health.NewHandler()

	redisCfg := cfg.RedisConfig()
	a.rdb, err = database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", redisCfg.Addr()),
		slog.Int("db", redisCfg.DB),
	)
	healthHandler.Register("redis", func(ctx context.Context) error {
		return a.rdb.Ping(ctx).Err()
	})

	var listener checkout.Listener
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		listener = event.NewProducer(a.producer, logger)
		// Events are best effort, so a broker outage degrades rather than
		// fails readiness.
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("kafka disabled, checkout events will not be published")
	}

	submitter, err := a.newSubmitter(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	repo := redisrepo.NewSessionRepository(a.rdb, cfg.SessionTTL)
	history := redisrepo.NewOrderHistoryRepository(a.rdb, cfg.SessionTTL, cfg.OrderHistoryLimit)
	a.sessions = service.NewSessionService(repo, history, submitter, listener, logger, cfg.SubmitTimeout)

	router := handler.NewRouter(a.sessions, healthHandler, logger, handler.RouterConfig{
		Environment:    cfg.Environment,
		CORSOrigins:    cfg.CORSOrigins,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RequestTimeout: cfg.RequestTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	writeTimeout := 15 * time.Second
	if cfg.RequestTimeout > 0 {
		writeTimeout = cfg.RequestTimeout + 5*time.Second
	}
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

// newSubmitter builds the order submitter chosen by ORDER_SUBMITTER and
// registers its health check when it has a dependency worth probing.
func (a *App) newSubmitter(ctx context.Context, hh *health.Handler) (checkout.OrderSubmitter, error) {
	cfg := a.cfg
	switch cfg.OrderSubmitter {
	case config.SubmitterHTTP:
		clientCfg := httpclient.DefaultConfig()
		clientCfg.Timeout = cfg.SubmitTimeout
		clientCfg.MaxRetries = cfg.OrderHTTPRetries

		breaker := httpclient.NewCircuitBreakerClient(httpclient.New(clientCfg), httpclient.CircuitBreakerConfig{
			Name:         "order-endpoint",
			MaxRequests:  cfg.CBMaxRequests,
			Interval:     cfg.CBInterval,
			Timeout:      cfg.CBTimeout,
			FailureRatio: cfg.CBFailureRatio,
			MinRequests:  cfg.CBMinRequests,
		}, a.logger).WithFallback(submission.CircuitOpenFallback)

		hh.RegisterOptional("order-endpoint", func(context.Context) error {
			if breaker.State() == gobreaker.StateOpen {
				return errors.New("circuit breaker open")
			}
			return nil
		})
		a.logger.Info("order submitter: http", slog.String("url", cfg.OrderSubmitURL))
		return submission.NewHTTPSubmitter(breaker, cfg.OrderSubmitURL, a.logger), nil

	case config.SubmitterPostgres:
		pgCfg := cfg.PostgresConfig()
		pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		a.logger.Info("connected to PostgreSQL",
			slog.String("host", pgCfg.Host),
			slog.String("database", pgCfg.DBName),
		)

		if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, handler.ServiceName); err != nil {
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, a.logger)

		hh.Register("postgres", pool.Ping)
		a.logger.Info("order submitter: postgres")
		return submission.NewPostgresSubmitter(pool, a.logger), nil

	default:
		a.logger.Info("order submitter: simulated", slog.Duration("delay", cfg.SimulatedDelay))
		return submission.NewSimulatedSubmitter(cfg.SimulatedDelay, a.logger), nil
	}
}

// Run serves HTTP and evicts idle sessions until ctx is cancelled, then
// shuts down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.evictLoop(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown signal received")
		return a.Shutdown()
	})

	return g.Wait()
}

func (a *App) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := a.sessions.EvictIdle(now.Add(-a.cfg.SessionIdleTimeout)); n > 0 {
				a.logger.Debug("evicted idle checkout sessions", slog.Int("count", n))
			}
		}
	}
}

// Shutdown stops the HTTP server and closes every client. In-flight requests,
// including order submissions, get ShutdownTimeout to finish.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.closeResources(ctx)

	a.logger.Info("application shutdown complete")
	return nil
}

// closeResources releases clients in reverse order of creation. Clients that
// were never opened are skipped.
func (a *App) closeResources(ctx context.Context) {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}
