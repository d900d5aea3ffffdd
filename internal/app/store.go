package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tieenbuii/WEB-API/internal/config"
	"github.com/tieenbuii/WEB-API/internal/store"
	"github.com/tieenbuii/WEB-API/internal/store/memory"
	mongostore "github.com/tieenbuii/WEB-API/internal/store/mongo"
	"github.com/tieenbuii/WEB-API/internal/store/postgres"
	"github.com/tieenbuii/WEB-API/internal/store/postgres/migrations"
	"github.com/tieenbuii/WEB-API/pkg/database"
)

// Store is an opened document backend plus the resources behind it.
type Store struct {
	store.Backend
	pool *pgxpool.Pool
}

// OpenStore connects the backend selected by cfg.StoreDriver. The postgres
// driver applies pending migrations before returning.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)

		if err := prometheus.Register(database.NewPoolStatsCollector(pool, serviceName)); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				pool.Close()
				return nil, fmt.Errorf("register pool metrics: %w", err)
			}
		}

		n, err := database.RunMigrations(ctx, pool, migrations.FS, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed", slog.Int("applied", n))

		if cfg.SlowQueryThresholdMs > 0 {
			database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
		}
		return &Store{Backend: postgres.NewBackend(pool), pool: pool}, nil

	case config.DriverMongo:
		b, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
		if err != nil {
			return nil, err
		}
		logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDatabase))
		return &Store{Backend: b}, nil

	default:
		logger.Warn("using in-memory document store; data is lost on restart")
		return &Store{Backend: memory.NewBackend()}, nil
	}
}

// Close releases the backend and its connection pool.
func (s *Store) Close(ctx context.Context) error {
	err := s.Backend.Close(ctx)
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// Migrate applies pending postgres migrations and reports how many ran.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) (int, error) {
	if cfg.StoreDriver != config.DriverPostgres {
		return 0, fmt.Errorf("migrations apply to the postgres driver only, STORE_DRIVER is %q", cfg.StoreDriver)
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return 0, err
	}
	defer pool.Close()
	return database.RunMigrations(ctx, pool, migrations.FS, logger)
}
