package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"agenda-backend/internal/app"
	"agenda-backend/internal/appointments"
	"agenda-backend/internal/config"
)

// reminders runs a single reminder sweep and exits, for cron schedulers.
func main() {
	asOf := flag.String("as-of", "", "reference date YYYY-MM-DD; reminders go to appointments on the following day (default today)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	os.Exit(run(ctx, cfg, logger, *asOf))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, asOf string) int {
	core, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		return 1
	}
	defer core.Close(context.Background())

	outcomes, err := core.Appointments.RunReminderSweep(ctx, asOf)
	if err != nil {
		logger.Error("reminders run: sweep failed", slog.String("error", err.Error()))
		return 1
	}

	sent, failed, skipped := appointments.Tally(outcomes)
	for _, o := range outcomes {
		if o.Outcome == appointments.ReminderFailed {
			logger.Warn("reminders run: delivery failed", slog.String("appointment_id", o.AppointmentID), slog.String("error", o.Error))
		}
	}
	logger.Info("reminders run: completed",
		slog.Int("sent", sent),
		slog.Int("failed", failed),
		slog.Int("skipped", skipped),
	)
	if failed > 0 {
		return 2
	}
	return 0
}
