package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tieenbuii/WEB-API/internal/auth"
	"github.com/tieenbuii/WEB-API/internal/config"
	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/event"
	handler "github.com/tieenbuii/WEB-API/internal/handler/http"
	"github.com/tieenbuii/WEB-API/internal/query"
	"github.com/tieenbuii/WEB-API/internal/ratings"
	"github.com/tieenbuii/WEB-API/internal/resource"
	"github.com/tieenbuii/WEB-API/pkg/database"
	"github.com/tieenbuii/WEB-API/pkg/health"
	pkgkafka "github.com/tieenbuii/WEB-API/pkg/kafka"
	"github.com/tieenbuii/WEB-API/pkg/tracing"
)

const (
	serviceName    = "web-api"
	serviceVersion = "0.1.0"
	idempotencyTTL = 24 * time.Hour
)

// App wires together all dependencies and runs the API server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          *Store
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumer       *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc

	// bgCancel stops the rate limiter janitor and the ratings consumer.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}
	a.bgCtx, a.bgCancel = context.WithCancel(context.Background())

	if err := a.init(ctx); err != nil {
		_ = a.Shutdown()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	a.store = st

	healthHandler := health.NewHandler()
	healthHandler.Register("store", st.Ping)

	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(ctx, database.RedisConfig{URL: cfg.RedisURL})
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		healthHandler.RegisterOptional("redis", database.RedisChecker(client))
		logger.Info("connected to Redis")
	}

	var events resource.Publisher = event.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(a.producer, logger)
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("KAFKA_BROKERS not set; entity events are not published")
	}

	policy, err := resource.ParseStockPolicy(cfg.StockPolicy)
	if err != nil {
		return err
	}
	recomputer := NewRecomputer(st, logger)
	dispatcher := a.ratingsDispatcher(recomputer)

	registry := resource.NewDefaultRegistry(st, resource.Options{
		StockPolicy: policy,
		Ratings:     dispatcher,
		BcryptCost:  cfg.BcryptCost,
		Logger:      logger,
	})
	svc := resource.NewService(registry, events, query.Options{
		RangeFields:  cfg.RangeFields,
		DefaultLimit: cfg.DefaultPageLimit,
	}, logger)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiryDuration())
	router := handler.NewRouter(a.bgCtx, handler.NewFactory(svc, logger), healthHandler, handler.RouterConfig{
		Service:        serviceName,
		ValidateToken:  jwtManager.Validator(),
		CORS:           cfg.CORS(),
		RateLimit:      cfg.RateLimit(),
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RequestTimeout: 30 * time.Second,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("application initialized",
		slog.String("store", cfg.StoreDriver),
		slog.String("stock_policy", string(policy)),
		slog.String("ratings_mode", cfg.RatingsMode),
	)
	return nil
}

// ratingsDispatcher picks in-request recomputation or the Kafka hand-off and,
// for the latter, builds the consumer that performs it.
func (a *App) ratingsDispatcher(rec *ratings.Recomputer) resource.RatingsDispatcher {
	if a.cfg.RatingsMode != config.RatingsKafka || a.producer == nil {
		return ratings.SyncDispatcher{Recomputer: rec}
	}

	var idem pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	if a.redis != nil {
		idem = pkgkafka.NewRedisIdempotencyStore(a.redis, serviceName+":ratings:", idempotencyTTL)
	}
	a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)
	a.consumer = ratings.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:    a.cfg.KafkaBrokers,
		GroupID:    a.cfg.KafkaGroupID,
		MaxRetries: 3,
		RetryDelay: 200 * time.Millisecond,
	}, rec, idem, a.dlq, a.logger)

	return ratings.NewKafkaDispatcher(a.producer, event.Source, a.logger)
}

// NewRecomputer builds the ratings recomputer over st.
func NewRecomputer(st *Store, logger *slog.Logger) *ratings.Recomputer {
	return ratings.NewRecomputer(
		st.Collection(domain.Review.Collection()),
		st.Collection(domain.Product.Collection()),
		logger,
	)
}

// Handler returns the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and the ratings consumer, and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	if a.consumer != nil {
		a.bgWG.Add(1)
		go func() {
			defer a.bgWG.Done()
			if err := a.consumer.Start(a.bgCtx); err != nil {
				a.logger.Error("ratings consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

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
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Ratings consumer and background janitors
// 3. Tracer (flush pending spans from drained requests)
// 4. Kafka producers
// 5. Redis client and document store
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests.
	if a.httpServer != nil {
		timeout := time.Duration(a.cfg.ShutdownTimeoutSecs) * time.Second
		httpCtx, httpCancel := context.WithTimeout(context.Background(), timeout)
		defer httpCancel()
		if err := a.httpServer.Shutdown(httpCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 2. Stop the consumer; Start closes its reader on return.
	a.bgCancel()
	a.bgWG.Wait()
	if a.consumer != nil {
		_ = a.consumer.Close()
	}

	// 3. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close Kafka producers.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 5. Close Redis and the store.
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(context.Background()); err != nil {
			a.logger.Error("store close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
