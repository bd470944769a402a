package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Email    EmailConfig
	AWS      AWSConfig
	Event    EventConfig
	Admin    AdminConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/emberfest?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings (job queue for ticket email retries).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StripeConfig holds the hosted-checkout gateway secret.
type StripeConfig struct {
	SecretKey string
}

// EmailConfig holds the transactional email provider settings.
// FromAddress must be a sender verified with the provider.
type EmailConfig struct {
	APIKey      string
	FromAddress string
	FromName    string
}

// AWSConfig holds credentials and the S3 bucket for archived ticket images.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	TicketsBucket        string
	PresignExpireMinutes int
}

// EventConfig holds event identity and pricing.
// Tiers maps tier keys to prices in minor currency units; when empty,
// BasePriceMinorUnits is charged for every registration. SurchargePercent is
// a fixed percentage added on top of the table price.
type EventConfig struct {
	Name                string
	PublicBaseURL       string
	Currency            string
	Tiers               map[string]int64
	BasePriceMinorUnits int64
	SurchargePercent    float64
}

// AdminConfig holds the shared door/admin credential. If PasswordHash
// (bcrypt) is set it takes precedence over the plain Password.
type AdminConfig struct {
	Password     string
	PasswordHash string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	tiers, err := parseTiers(getEnv("EVENT_TIERS", ""))
	if err != nil {
		return nil, fmt.Errorf("parse EVENT_TIERS: %w", err)
	}
	basePrice, _ := strconv.ParseInt(getEnv("EVENT_PRICE_MINOR_UNITS", "0"), 10, 64)
	surcharge, _ := strconv.ParseFloat(getEnv("EVENT_SURCHARGE_PERCENT", "0"), 64)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/emberfest?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "emberfest"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Stripe: StripeConfig{
			SecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		},
		Email: EmailConfig{
			APIKey:      getEnv("EMAIL_API_KEY", ""),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "tickets@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Emberfest"),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			TicketsBucket:        getEnv("AWS_S3_TICKETS_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Event: EventConfig{
			Name:                getEnv("EVENT_NAME", "Emberfest"),
			PublicBaseURL:       strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
			Currency:            strings.ToLower(getEnv("EVENT_CURRENCY", "usd")),
			Tiers:               tiers,
			BasePriceMinorUnits: basePrice,
			SurchargePercent:    surcharge,
		},
		Admin: AdminConfig{
			Password:     getEnv("ADMIN_PASSWORD", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
	}
	return cfg, nil
}

// parseTiers parses "general:95000,vip:250000" into a tier price table.
func parseTiers(s string) (map[string]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	tiers := make(map[string]int64)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, val, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid tier entry %q", pair)
		}
		price, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil || price < 0 {
			return nil, fmt.Errorf("invalid price for tier %q", key)
		}
		tiers[strings.TrimSpace(key)] = price
	}
	return tiers, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
