package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agenda-backend/internal/app"
	"agenda-backend/internal/appointments"
	"agenda-backend/internal/auth"
	"agenda-backend/internal/availability"
	"agenda-backend/internal/config"
	"agenda-backend/internal/health"
	"agenda-backend/internal/middleware"
	"agenda-backend/internal/telemetry"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  "agenda-api",
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		logger.Error("otel setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	bootCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	core, err := app.Build(bootCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	window := time.Duration(cfg.RateLimitWindowSec) * time.Second
	var limiter middleware.Limiter = middleware.NewMemoryLimiter(cfg.RateLimitAppointments, window)
	if core.Redis != nil {
		limiter = middleware.NewRedisLimiter(core.Redis, cfg.RateLimitAppointments, window, "ratelimit:appointments")
	}

	jwtManager := auth.NewManager(cfg.JWTSecret, time.Duration(cfg.AccessTTLMinutes)*time.Minute, "agenda-backend")
	adminAuth := middleware.AdminAuth(cfg.AdminAPIKey, jwtManager)

	availabilityHandler := availability.NewHandler(core.Availability, core.Resolver, core.Validator, logger, cfg.DefaultDurationMinutes)
	appointmentsHandler := appointments.NewHandler(core.Appointments, core.Validator, logger)
	authHandler := auth.NewHandler(jwtManager, cfg.AdminUser, cfg.AdminPasswordHash, cfg.CookieSecure, core.Validator, logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigins))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	health.Mount(r, core.Checks...)

	registerRoutes := func(api chi.Router) {
		api.Get("/availability", availabilityHandler.GetAvailability)
		api.Get("/availability/next", availabilityHandler.GetNextAvailability)
		api.With(middleware.RateLimit(limiter, logger, cfg.RateLimitFailOpen)).Post("/appointments", appointmentsHandler.Create)
		api.With(middleware.RateLimit(limiter, logger, cfg.RateLimitFailOpen)).Post("/appointments/cancel", appointmentsHandler.Cancel)

		api.Route("/admin", func(admin chi.Router) {
			admin.With(middleware.RateLimit(limiter, logger, cfg.RateLimitFailOpen)).Post("/login", authHandler.Login)
			admin.Post("/logout", authHandler.Logout)

			admin.Group(func(protected chi.Router) {
				protected.Use(adminAuth)
				protected.Get("/rules", availabilityHandler.AdminListRules)
				protected.Post("/rules", availabilityHandler.AdminCreateRule)
				protected.Patch("/rules/{id}", availabilityHandler.AdminUpdateRule)
				protected.Delete("/rules/{id}", availabilityHandler.AdminDeleteRule)
				protected.Get("/blocked-dates", availabilityHandler.AdminListBlockedDates)
				protected.Post("/blocked-dates", availabilityHandler.AdminCreateBlockedDate)
				protected.Delete("/blocked-dates/{id}", availabilityHandler.AdminDeleteBlockedDate)
				protected.Get("/appointments", appointmentsHandler.AdminList)
				protected.Get("/appointments/upcoming", appointmentsHandler.AdminUpcoming)
				protected.Get("/appointments/counts", appointmentsHandler.AdminCounts)
				protected.Get("/appointments/{id}", appointmentsHandler.AdminGet)
				protected.Patch("/appointments/{id}/status", appointmentsHandler.AdminUpdateStatus)
				protected.Delete("/appointments/{id}", appointmentsHandler.AdminDelete)
				protected.Post("/reminders/run", appointmentsHandler.AdminRunReminders)
			})
		})
	}

	// /api is kept as an alias of /api/v1 for existing frontends.
	r.Route("/api/v1", registerRoutes)
	r.Route("/api", registerRoutes)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           otelhttp.NewHandler(r, "agenda-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.ReminderIntervalMinutes > 0 {
		worker := appointments.NewReminderWorker(core.Appointments, logger, time.Duration(cfg.ReminderIntervalMinutes)*time.Minute)
		go worker.Run(ctx)
		logger.Info("reminder worker started", slog.Int("interval_minutes", cfg.ReminderIntervalMinutes))
	}

	go func() {
		logger.Info("server started",
			slog.String("addr", cfg.ServerAddr),
			slog.String("storage", cfg.StorageDriver),
			slog.String("ready_checks", health.Names(core.Checks)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if err := core.Close(shutdownCtx); err != nil {
		logger.Error("resource close error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("otel shutdown error", slog.String("error", err.Error()))
	}
}
