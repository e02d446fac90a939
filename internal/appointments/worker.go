package appointments

import (
	"context"
	"log/slog"
	"time"
)

// ReminderWorker runs the reminder sweep on a fixed interval.
type ReminderWorker struct {
	service  *Service
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

func NewReminderWorker(service *Service, logger *slog.Logger, interval time.Duration) *ReminderWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReminderWorker{
		service:  service,
		logger:   logger,
		interval: interval,
		timeout:  2 * time.Minute,
	}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (w *ReminderWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ReminderWorker) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	outcomes, err := w.service.RunReminderSweep(sweepCtx, "")
	if err != nil {
		w.logger.Error("reminders worker: sweep failed", slog.String("error", err.Error()))
		return
	}
	sent, failed, skipped := Tally(outcomes)
	if failed > 0 {
		w.logger.Warn("reminders worker: partial failure",
			slog.Int("sent", sent),
			slog.Int("failed", failed),
			slog.Int("skipped", skipped),
		)
		return
	}
	w.logger.Info("reminders worker: ok", slog.Int("sent", sent), slog.Int("skipped", skipped))
}

// Tally counts reminder outcomes by kind.
func Tally(outcomes []ReminderOutcome) (sent, failed, skipped int) {
	for _, o := range outcomes {
		switch o.Outcome {
		case ReminderSent:
			sent++
		case ReminderFailed:
			failed++
		case ReminderSkipped:
			skipped++
		}
	}
	return sent, failed, skipped
}
