package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	JWTSecret             string
	LogLevel              string
	StoreTZOffsetMinutes  int
	SnapshotCacheTTL      time.Duration
	RabbitMQURL           string
	RabbitMQWorkerMode    string
	CorsAllowedOrigins    []string
	WSHeartbeatInterval   time.Duration
	WSBoardPollInterval   time.Duration
	UsageConsumerRetries  int
	UsageConsumerRetryGap time.Duration
}

func Load() Config {
	cfg := Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8087"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		LogLevel:              getEnv("LOG_LEVEL", ""),
		StoreTZOffsetMinutes:  int(getEnvInt64("STORE_TZ_OFFSET_MINUTES", 390)),
		SnapshotCacheTTL:      getEnvDuration("SNAPSHOT_CACHE_TTL", 15*time.Second),
		RabbitMQURL:           getEnv("RABBITMQ_URL", ""),
		RabbitMQWorkerMode:    getEnv("RABBITMQ_WORKER_MODE", "daemon"),
		CorsAllowedOrigins:    splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		WSHeartbeatInterval:   getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),
		WSBoardPollInterval:   getEnvDuration("WS_BOARD_POLL_INTERVAL", 30*time.Second),
		UsageConsumerRetries:  int(getEnvInt64("USAGE_CONSUMER_RETRIES", 5)),
		UsageConsumerRetryGap: getEnvDuration("USAGE_CONSUMER_RETRY_DELAY", 5*time.Second),
	}

	// Offsets beyond +/-14h are not real zones.
	if cfg.StoreTZOffsetMinutes < -14*60 || cfg.StoreTZOffsetMinutes > 14*60 {
		cfg.StoreTZOffsetMinutes = 390
	}
	if cfg.SnapshotCacheTTL < 0 {
		cfg.SnapshotCacheTTL = 0
	}
	if cfg.WSBoardPollInterval <= 0 {
		cfg.WSBoardPollInterval = 30 * time.Second
	}

	return cfg
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
