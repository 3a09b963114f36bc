package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port string
	Mode string

	// Run history database configuration
	DatabaseURL string

	// Redis configuration
	RedisURL string

	// Admin API key for pipeline and exchange endpoints
	APIKey string

	// BigQuery configuration
	MerchantProjectID string
	ProviderProjectID string
	SourceProjectID   string
	SourceDataset     string
	MerchantDataset   string
	ProviderDataset   string
	Location          string

	// Generation configuration
	SampleRate float64

	// Shared secret salt for deterministic email hashing.
	// In production this would be securely managed and shared between parties.
	SecretSalt string

	// Brevo email configuration (subscriber notifications)
	BrevoAPIKey    string
	BrevoFromEmail string
	BrevoFromName  string

	// Webhook configuration (pipeline run notifications)
	WebhookCallbackURL string
	WebhookSecret      string
}

var AppConfig *Config

func InitConfig() error {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// Ignore error if .env file doesn't exist
	}

	AppConfig = &Config{
		Port:               getEnv("PORT", "8080"),
		Mode:               getEnv("GIN_MODE", "debug"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		APIKey:             getEnv("API_KEY", ""),
		MerchantProjectID:  getEnv("MERCHANT_PROJECT_ID", ""),
		ProviderProjectID:  getEnv("PROVIDER_PROJECT_ID", ""),
		SourceProjectID:    getEnv("SOURCE_PROJECT_ID", "bigquery-public-data"),
		SourceDataset:      getEnv("SOURCE_DATASET", "thelook_ecommerce"),
		MerchantDataset:    getEnv("MERCHANT_DATASET", "merchant_provider"),
		ProviderDataset:    getEnv("PROVIDER_DATASET", "ewallet_provider"),
		Location:           getEnv("BIGQUERY_LOCATION", "US"),
		SampleRate:         getEnvFloat("PROVIDER_SAMPLE_RATE", 0.5),
		SecretSalt:         getEnv("HASH_SECRET_SALT", "DCR_DEMO_SHARED_SECRET_2024_SECURE_HASH_SALT"),
		BrevoAPIKey:        getEnv("BREVO_API_KEY", ""),
		BrevoFromEmail:     getEnv("BREVO_FROM_EMAIL", ""),
		BrevoFromName:      getEnv("BREVO_FROM_NAME", "Data Clean Room Demo"),
		WebhookCallbackURL: getEnv("WEBHOOK_CALLBACK_URL", ""),
		WebhookSecret:      getEnv("WEBHOOK_SECRET", ""),
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
