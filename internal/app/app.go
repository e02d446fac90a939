package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agenda-backend/internal/appointments"
	"agenda-backend/internal/availability"
	"agenda-backend/internal/cache"
	"agenda-backend/internal/config"
	"agenda-backend/internal/db"
	"agenda-backend/internal/events"
	"agenda-backend/internal/health"
	"agenda-backend/internal/notifications"
	"agenda-backend/internal/validation"

	"github.com/redis/go-redis/v9"
)

// App holds the wired scheduling core shared by the API server and the
// one-shot commands.
type App struct {
	Validator    *validation.Validator
	Resolver     *availability.Resolver
	Availability *availability.Service
	Appointments *appointments.Service
	Redis        *redis.Client
	Checks       []health.Check

	closers []func(context.Context) error
}

// Build connects storage, cache and notification sinks according to cfg.
// On error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *App, err error) {
	a = &App{Validator: validation.New()}
	defer func() {
		if err != nil {
			a.Close(context.Background())
			a = nil
		}
	}()

	var (
		availRepo availability.Repository
		apptRepo  appointments.Repository
	)
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return a, err
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		if err := db.Migrate(ctx, pool); err != nil {
			return a, err
		}
		logger.Info("postgres connected")
		availRepo = availability.NewPostgresRepository(pool)
		apptRepo = appointments.NewPostgresRepository(pool)
		a.Checks = append(a.Checks, health.Check{Name: "postgres", Check: db.PostgresReadyCheck(pool)})
	default:
		client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return a, err
		}
		a.closers = append(a.closers, client.Disconnect)
		if err := db.EnsureIndexes(ctx, cols); err != nil {
			return a, err
		}
		logger.Info("mongo connected", slog.String("db", cfg.MongoDB))
		availRepo = availability.NewRepository(cols.TimeSlotRules, cols.BlockedDates)
		apptRepo = appointments.NewRepository(cols.Appointments)
		a.Checks = append(a.Checks, health.Check{Name: "mongo", Check: db.MongoReadyCheck(client)})
	}

	var cacheStore cache.Cache = cache.NewNoop()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
			if err != nil {
				return a, err
			}
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		a.closers = append(a.closers, func(context.Context) error { return redisCache.Close() })
		if err := redisCache.Ping(ctx); err != nil {
			return a, err
		}
		logger.Info("redis connected")
		cacheStore = redisCache
		a.Redis = redisCache.Client()
		a.Checks = append(a.Checks, health.Check{Name: "redis", Check: redisCache.Ping})
	}

	a.Resolver = availability.NewResolver(availRepo, apptRepo, cacheStore, time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.Timezone)
	a.Availability = availability.NewService(availRepo, a.Resolver, cfg.Timezone)

	sinks := make([]appointments.Notifier, 0, 2)
	mailer := notifications.NewBrevoClient(notifications.BrevoConfig{
		APIKey:      cfg.BrevoAPIKey,
		SenderEmail: cfg.BrevoSenderEmail,
		SenderName:  cfg.BrevoSenderName,
		Sandbox:     cfg.BrevoSandbox,
	})
	if mailer != nil {
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
		sinks = append(sinks, notifications.NewEmailNotifier(mailer, cfg.AdminNotifyEmail, logger))
	} else {
		logger.Info("brevo mailer disabled")
	}

	if brokers := events.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(brokers, cfg.KafkaTopicPrefix)
		if err != nil {
			return a, err
		}
		a.closers = append(a.closers, func(context.Context) error { return publisher.Close() })
		logger.Info("kafka publisher enabled", slog.Int("brokers", len(brokers)))
		sinks = append(sinks, publisher)
		a.Checks = append(a.Checks, health.Check{Name: "kafka", Check: events.ReadyCheck(brokers)})
	}

	var notifier appointments.Notifier
	if fanout := notifications.NewFanout(sinks...); fanout != nil {
		notifier = fanout
	}

	a.Appointments = appointments.NewService(apptRepo, a.Resolver, notifier, a.Validator, logger, cfg.Timezone,
		appointments.WithServiceDurations(cfg.ServiceDurations, cfg.DefaultDurationMinutes),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
