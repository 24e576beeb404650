package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	// Database
	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration

	// Outbound automation webhook (n8n and friends). Empty disables notifications.
	WebhookURL    string
	NotifyTimeout time.Duration
	PublicBaseURL string

	// Attachments
	UploadDir         string
	UploadRetention   time.Duration
	UploadMaxBytes    int64
	UploadRequireAuth bool

	CORSOrigin string
}

const devSessionSecret = "dev-session-secret-change-me"

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:        getEnv("DB_PATH", "./crm.db"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", ""),
		DBName:        getEnv("DB_NAME", "crm"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		CORSOrigin:    getEnv("CORS_ORIGIN", "*"),
	}

	var err error
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", "168h"); err != nil {
		return nil, err
	}
	if cfg.NotifyTimeout, err = getDuration("NOTIFY_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.UploadRetention, err = getDuration("UPLOAD_RETENTION", "24h"); err != nil {
		return nil, err
	}

	maxBytes, err := strconv.ParseInt(getEnv("UPLOAD_MAX_BYTES", "16777216"), 10, 64)
	if err != nil || maxBytes <= 0 {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_BYTES: %q", os.Getenv("UPLOAD_MAX_BYTES"))
	}
	cfg.UploadMaxBytes = maxBytes

	requireAuth, err := strconv.ParseBool(getEnv("UPLOAD_REQUIRE_AUTH", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_REQUIRE_AUTH: %w", err)
	}
	cfg.UploadRequireAuth = requireAuth

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (expected sqlite or postgres)", cfg.DBDriver)
	}

	if cfg.SessionSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("SESSION_SECRET environment variable is required in production")
		}
		cfg.SessionSecret = devSessionSecret
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// PostgresDSN builds the key/value DSN understood by the pgx driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
