package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dlanger/studyden/internal/backup"
)

// Config holds application configuration, read from the environment with a
// .env file as optional local override.
type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	JWTSecret string
	TokenTTL  time.Duration

	LoginRateLimit  int
	LoginRatePeriod time.Duration

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string
	ReminderHour    int

	Backup backup.Config
}

// Load reads configuration from environment variables. Only the JWT secret is
// mandatory; everything else has a sensible default or disables its feature.
func Load() (*Config, error) {
	// Missing .env is fine, the environment may already be populated.
	godotenv.Load()

	cfg := &Config{
		Port:      getEnv("STUDYDEN_PORT", "8080"),
		DBPath:    getEnv("STUDYDEN_DB_PATH", "studyden.db"),
		LogLevel:  getEnv("STUDYDEN_LOG_LEVEL", "info"),
		LogFormat: getEnv("STUDYDEN_LOG_FORMAT", "text"),

		JWTSecret: os.Getenv("STUDYDEN_JWT_SECRET"),
		TokenTTL:  getEnvDuration("STUDYDEN_TOKEN_TTL", 168*time.Hour),

		LoginRateLimit:  getEnvInt("STUDYDEN_LOGIN_RATE_LIMIT", 10),
		LoginRatePeriod: getEnvDuration("STUDYDEN_LOGIN_RATE_PERIOD", time.Minute),

		VAPIDPublicKey:  os.Getenv("STUDYDEN_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("STUDYDEN_VAPID_PRIVATE_KEY"),
		PushSubscriber:  getEnv("STUDYDEN_PUSH_SUBSCRIBER", "mailto:admin@localhost"),
		ReminderHour:    getEnvInt("STUDYDEN_REMINDER_HOUR", 16),

		Backup: backup.Config{
			Endpoint:      os.Getenv("STUDYDEN_S3_ENDPOINT"),
			Bucket:        os.Getenv("STUDYDEN_S3_BUCKET"),
			Region:        getEnv("STUDYDEN_S3_REGION", "auto"),
			AccessKey:     os.Getenv("STUDYDEN_S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("STUDYDEN_S3_SECRET_KEY"),
			Prefix:        getEnv("STUDYDEN_BACKUP_PREFIX", "studyden"),
			Passphrase:    os.Getenv("STUDYDEN_BACKUP_PASSPHRASE"),
			Hour:          getEnvInt("STUDYDEN_BACKUP_HOUR", 3),
			RetentionDays: getEnvInt("STUDYDEN_BACKUP_RETENTION_DAYS", 30),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("STUDYDEN_JWT_SECRET is required")
	}
	if cfg.ReminderHour < 0 || cfg.ReminderHour > 23 {
		return nil, fmt.Errorf("STUDYDEN_REMINDER_HOUR must be between 0 and 23")
	}
	if cfg.Backup.Hour < 0 || cfg.Backup.Hour > 23 {
		return nil, fmt.Errorf("STUDYDEN_BACKUP_HOUR must be between 0 and 23")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
