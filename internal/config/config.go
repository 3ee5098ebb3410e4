package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// AppURL is the public frontend URL used for checkout redirects.
	AppURL string
	// APIURL is this service's own public URL, pinged by the keep-alive job.
	APIURL string

	BillingProvider string

	Stripe       StripeConfig
	LemonSqueezy LemonSqueezyConfig

	DriftCheckInterval time.Duration
	KeepAliveInterval  time.Duration

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
}

type StripeConfig struct {
	SecretKey      string
	WebhookSecret  string
	PremiumPriceID string
	GoldPriceID    string
}

type LemonSqueezyConfig struct {
	APIKey           string
	WebhookSecret    string
	StoreID          string
	PremiumVariantID string
	GoldVariantID    string
}

const (
	ProviderStripe       = "stripe"
	ProviderLemonSqueezy = "lemonsqueezy"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	appURL := strings.TrimRight(getenv("APP_URL", "http://localhost:3000"), "/")

	return Config{
		AppName:     getenv("APP_SERVICE", "myfreelance"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		AppURL: appURL,
		APIURL: strings.TrimRight(getenv("API_URL", ""), "/"),

		BillingProvider: normalizeProvider(getenv("BILLING_PROVIDER", ProviderStripe)),

		Stripe: StripeConfig{
			SecretKey:      strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret:  strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			PremiumPriceID: strings.TrimSpace(getenv("STRIPE_PREMIUM_PRICE_ID", "")),
			GoldPriceID:    strings.TrimSpace(getenv("STRIPE_GOLD_PRICE_ID", "")),
		},
		LemonSqueezy: LemonSqueezyConfig{
			APIKey:           strings.TrimSpace(getenv("LEMONSQUEEZY_API_KEY", "")),
			WebhookSecret:    strings.TrimSpace(getenv("LEMONSQUEEZY_WEBHOOK_SECRET", "")),
			StoreID:          strings.TrimSpace(getenv("LEMONSQUEEZY_STORE_ID", "")),
			PremiumVariantID: strings.TrimSpace(getenv("LEMONSQUEEZY_PREMIUM_VARIANT_ID", "")),
			GoldVariantID:    strings.TrimSpace(getenv("LEMONSQUEEZY_GOLD_VARIANT_ID", "")),
		},

		DriftCheckInterval: getenvDuration("DRIFT_CHECK_INTERVAL", time.Hour),
		KeepAliveInterval:  getenvDuration("KEEP_ALIVE_INTERVAL", 14*time.Minute),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func (c Config) CheckoutSuccessURL() string {
	return c.AppURL + "/panel/profile/subscription?status=success"
}

func (c Config) CheckoutCancelURL() string {
	return c.AppURL + "/panel/premium"
}

func normalizeProvider(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case ProviderLemonSqueezy, "lemon_squeezy", "lemon":
		return ProviderLemonSqueezy
	default:
		return ProviderStripe
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
