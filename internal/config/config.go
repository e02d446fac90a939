package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
)

type Config struct {
	Env                     string
	StorageDriver           string
	MongoURI                string
	MongoDB                 string
	DatabaseURL             string
	ServerAddr              string
	FrontendOrigins         []string
	RateLimitAppointments   int
	RateLimitWindowSec      int
	RateLimitFailOpen       bool
	RedisURL                string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	CacheTTLSeconds         int
	AdminAPIKey             string
	AdminUser               string
	AdminPasswordHash       string
	JWTSecret               string
	AccessTTLMinutes        int
	CookieSecure            bool
	BrevoAPIKey             string
	BrevoSenderEmail        string
	BrevoSenderName         string
	BrevoSandbox            bool
	AdminNotifyEmail        string
	KafkaBrokers            string
	KafkaTopicPrefix        string
	OTelEnabled             bool
	OTelEndpoint            string
	OTelSampleRatio         float64
	DefaultDurationMinutes  int
	ServiceDurations        map[string]int
	ReminderIntervalMinutes int
	Timezone                *time.Location
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func Load() (*Config, error) {
	loadDotEnv(".env")
	loc, err := time.LoadLocation(getEnv("TZ", "Africa/Kinshasa"))
	if err != nil {
		return nil, err
	}

	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017/agenda")
	mongoDB := getEnv("MONGO_DB", "")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "agenda"
	}

	durations, err := parseServiceDurations(getEnv("SERVICE_DURATIONS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		StorageDriver:           strings.ToLower(getEnv("STORAGE_DRIVER", StorageMongo)),
		MongoURI:                mongoURI,
		MongoDB:                 mongoDB,
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		ServerAddr:              getEnv("SERVER_ADDR", ":8080"),
		FrontendOrigins:         splitList(getEnv("FRONTEND_ORIGINS", getEnv("FRONTEND_ORIGIN", "http://localhost:3000"))),
		RateLimitAppointments:   getEnvInt("RATE_LIMIT_APPOINTMENTS", 10),
		RateLimitWindowSec:      getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		RateLimitFailOpen:       getEnvBool("RATE_LIMIT_FAIL_OPEN", true),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		RedisDB:                 getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds:         getEnvInt("CACHE_TTL_SECONDS", 60),
		AdminAPIKey:             getEnv("ADMIN_API_KEY", ""),
		AdminUser:               getEnv("ADMIN_USER", "admin"),
		AdminPasswordHash:       getEnv("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		AccessTTLMinutes:        getEnvInt("ACCESS_TTL_MINUTES", 60),
		CookieSecure:            getEnvBool("COOKIE_SECURE", false),
		BrevoAPIKey:             getEnv("BREVO_API_KEY", ""),
		BrevoSenderEmail:        getEnv("BREVO_SENDER_EMAIL", ""),
		BrevoSenderName:         getEnv("BREVO_SENDER_NAME", ""),
		BrevoSandbox:            getEnvBool("BREVO_SANDBOX", false),
		AdminNotifyEmail:        getEnv("ADMIN_NOTIFY_EMAIL", ""),
		KafkaBrokers:            getEnv("KAFKA_BROKERS", ""),
		KafkaTopicPrefix:        getEnv("KAFKA_TOPIC_PREFIX", ""),
		OTelEnabled:             getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:            getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio:         getEnvFloat("OTEL_SAMPLING_RATIO", 1),
		DefaultDurationMinutes:  getEnvInt("DEFAULT_DURATION_MINUTES", 0),
		ServiceDurations:        durations,
		ReminderIntervalMinutes: getEnvInt("REMINDER_INTERVAL_MINUTES", 0),
		Timezone:                loc,
	}

	switch cfg.StorageDriver {
	case StorageMongo:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=%s", StoragePostgres)
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	return cfg, nil
}

// parseServiceDurations reads "consultation:30,audit:60".
func parseServiceDurations(raw string) (map[string]int, error) {
	out := make(map[string]int)
	for _, item := range splitList(raw) {
		name, minutes, ok := strings.Cut(item, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("SERVICE_DURATIONS: invalid entry %q", item)
		}
		n, err := strconv.Atoi(strings.TrimSpace(minutes))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("SERVICE_DURATIONS: invalid minutes for %q", name)
		}
		out[name] = n
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	// mongodb URIs sometimes include extra path segments; we only support the first one as db name.
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}

func loadDotEnv(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
}
