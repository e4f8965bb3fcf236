package bootstrap

import (
	"context"
	"log/slog"

	"github.com/Domenick1991/parking/api"
	"github.com/Domenick1991/parking/config"
	"github.com/Domenick1991/parking/internal/cache"
	"github.com/Domenick1991/parking/internal/clock"
	"github.com/Domenick1991/parking/internal/kafka"
	"github.com/Domenick1991/parking/internal/lock"
	"github.com/Domenick1991/parking/internal/metrics"
	"github.com/Domenick1991/parking/internal/repository"
	"github.com/Domenick1991/parking/internal/service/availability"
	"github.com/Domenick1991/parking/internal/service/reservation"
	"github.com/Domenick1991/parking/internal/service/sweeper"
	"github.com/Domenick1991/parking/migrations"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// App holds the wired services shared by the API and worker binaries.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Clock        clock.Clock
	Store        repository.Store
	Metrics      *metrics.Metrics
	Reservations *reservation.Service
	Availability *availability.Service
	Sweeper      *sweeper.Sweeper
	Producer     *kafka.Producer
	Checks       map[string]api.HealthCheck

	closers []func()
}

// NewApp connects to the configured backends and builds the services.
// Close releases everything it opened, also after a failed start.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Clock:   clock.NewRealClock(),
		Metrics: metrics.New(),
		Checks:  make(map[string]api.HealthCheck),
	}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if err := app.openStore(ctx); err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Cache.Backend == config.CacheBackendRedis || cfg.Lock.Distributed {
		redisClient = cache.NewRedisClient(cfg.Redis)
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
		app.Checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var backend cache.Backend = cache.NewMemoryCache(app.Clock)
	if cfg.Cache.Backend == config.CacheBackendRedis {
		backend = cache.NewRedisCache(redisClient)
	}

	var locker lock.Locker = lock.NewTable()
	if cfg.Lock.Distributed {
		locker = lock.Chain{locker, lock.NewRedisLocker(redisClient, cfg.Lock.Prefix, cfg.Lock.TTL)}
	}

	app.Availability = availability.NewService(app.Store, backend,
		availability.WithTTL(cfg.Cache.TTL),
		availability.WithPrefix(cfg.Cache.Prefix),
		availability.WithClock(app.Clock),
		availability.WithMetrics(app.Metrics),
		availability.WithLogger(logger),
	)

	opts := []reservation.Option{
		reservation.WithHoldTTL(cfg.Reservation.HoldTTL),
		reservation.WithMaxDurationMinutes(cfg.Reservation.MaxDurationMinutes),
		reservation.WithSweepBatchSize(cfg.Worker.SweepBatchSize),
		reservation.WithClock(app.Clock),
		reservation.WithInvalidator(app.Availability),
		reservation.WithMetrics(app.Metrics),
		reservation.WithLogger(logger),
	}
	if cfg.Kafka.Enabled {
		app.Producer = kafka.NewProducer(cfg.Kafka.Brokers)
		app.closers = append(app.closers, func() { _ = app.Producer.Close() })
		app.Checks["kafka"] = app.Producer.CheckConnection
		opts = append(opts,
			reservation.WithProducer(app.Producer, cfg.Kafka.ReservationTopic),
			reservation.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
	}
	app.Reservations = reservation.NewService(app.Store, locker, opts...)

	app.Sweeper = sweeper.New(app.Reservations, cfg.Worker.SweepInterval,
		sweeper.WithClock(app.Clock),
		sweeper.WithLogger(logger),
	)
	return app, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config.Database

	var seeder repository.Seeder
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return errors.Wrap(err, "connect postgres")
		}
		a.closers = append(a.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping postgres")
		}
		if cfg.Migrate {
			if err := migrations.Apply(ctx, pool); err != nil {
				return errors.Wrap(err, "apply migrations")
			}
		}
		store := repository.NewPGStore(pool)
		a.Store, seeder = store, store
		a.Checks["postgres"] = store.Ping
	default:
		store := repository.NewMemoryStore()
		a.Store, seeder = store, store
	}

	if cfg.SeedFile == "" {
		return nil
	}
	seed, err := repository.LoadSeed(cfg.SeedFile)
	if err != nil {
		return err
	}
	if err := repository.ApplySeed(ctx, seeder, seed); err != nil {
		return errors.Wrap(err, "apply seed")
	}
	a.Logger.InfoContext(ctx, "seed applied", "file", cfg.SeedFile, "facilities", len(seed.Facilities))
	return nil
}

// WarmCache preloads availability for every facility in the store.
func (a *App) WarmCache(ctx context.Context) error {
	_, err := a.Availability.WarmCache(ctx, nil)
	return err
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
