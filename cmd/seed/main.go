package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"agenda-backend/internal/app"
	"agenda-backend/internal/auth"
	"agenda-backend/internal/availability"
	"agenda-backend/internal/config"
)

type seedRange struct {
	Days  []time.Weekday
	Start string
	End   string
}

const defaultSlotMinutes = 45

var defaultRanges = []seedRange{
	{Days: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, Start: "09:00", End: "12:00"},
	{Days: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, Start: "14:00", End: "17:00"},
	{Days: []time.Weekday{time.Saturday}, Start: "09:00", End: "13:00"},
}

func main() {
	hashOnly := flag.Bool("hash", false, "print a bcrypt hash of $ADMIN_PASSWORD for ADMIN_PASSWORD_HASH and exit")
	force := flag.Bool("force", false, "insert the default rules even when rules already exist")
	flag.Parse()

	if *hashOnly {
		password := os.Getenv("ADMIN_PASSWORD")
		if password == "" {
			log.Fatal("ADMIN_PASSWORD is empty")
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	core, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer core.Close(context.Background())

	existing, err := core.Availability.ListRules(ctx)
	if err != nil {
		log.Fatal(err)
	}
	if len(existing) > 0 && !*force {
		logger.Info("seed: rules already present, skipping", slog.Int("rules", len(existing)))
		return
	}

	created := 0
	active := true
	for _, rng := range defaultRanges {
		for _, day := range rng.Days {
			dow := int(day)
			_, err := core.Availability.CreateRule(ctx, availability.CreateRuleRequest{
				DayOfWeek:           &dow,
				StartTime:           rng.Start,
				EndTime:             rng.End,
				SlotDurationMinutes: defaultSlotMinutes,
				IsActive:            &active,
			})
			if err != nil {
				log.Fatalf("seed error for %s %s-%s: %v", day, rng.Start, rng.End, err)
			}
			created++
		}
	}

	logger.Info("seed: completed", slog.Int("rules", created))
}
