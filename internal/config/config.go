package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env
	AppEnv  string

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT (issued by the external identity provider)
	JwtSecret string

	// Server
	ApiPort         string
	ServiceApiPort  string
	MetricsPath     string
	CorsAllowOrigin string

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string

	// Wallet
	CurrencyCode        string
	MinCashInAmount     float64
	MaxCashInAmount     float64
	MinWithdrawalAmount float64

	// Recommendations
	RecommendationLimit    int
	RecommendationCacheTTL time.Duration
	RecommendationCacheMax int64

	// Chat
	TypingIdleTimeout time.Duration // writer clears the flag after this much inactivity
	TypingStaleAfter  time.Duration // reader ignores flags older than this
	MessagePageLimit  int

	// Background sweeps
	BookingSweepInterval    time.Duration
	WithdrawalSweepInterval time.Duration
	WithdrawalReminderAge   time.Duration

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	UploadURLTTL       time.Duration

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	MockEmail       bool // store outgoing mail in Redis instead of sending

	// App Defaults
	AppName string

	// Rate Limiting Defaults
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		seconds, err := strconv.ParseFloat(getEnv(key, defaultValue), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "voyago")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.AppEnv = getEnv("APP_ENV", "development")
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "8081")
	cfg.MetricsPath = getEnv("METRICS_PATH", "/metrics")
	cfg.CorsAllowOrigin = getEnv("CORS_ALLOW_ORIGIN", "*")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")
	cfg.LogOutput = getEnv("LOG_OUTPUT", "stdout")
	cfg.CurrencyCode = getEnv("CURRENCY_CODE", "PHP")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AppName = getEnv("APP_NAME", "Voyago")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "no-reply@voyago.app")
	cfg.MockEmail = getEnv("MOCK_EMAIL", "false") == "true"

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg.MinCashInAmount, err = strconv.ParseFloat(getEnv("MIN_CASH_IN_AMOUNT", "1.00"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_CASH_IN_AMOUNT: %w", err)
	}
	cfg.MaxCashInAmount, err = strconv.ParseFloat(getEnv("MAX_CASH_IN_AMOUNT", "100000.00"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_CASH_IN_AMOUNT: %w", err)
	}
	cfg.MinWithdrawalAmount, err = strconv.ParseFloat(getEnv("MIN_WITHDRAWAL_AMOUNT", "1.00"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_WITHDRAWAL_AMOUNT: %w", err)
	}

	cfg.RecommendationLimit, err = strconv.Atoi(getEnv("RECOMMENDATION_LIMIT", "12"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECOMMENDATION_LIMIT: %w", err)
	}
	cfg.RecommendationCacheTTL, err = getSeconds("RECOMMENDATION_CACHE_TTL_SECONDS", "300")
	if err != nil {
		return nil, err
	}
	cfg.RecommendationCacheMax, err = strconv.ParseInt(getEnv("RECOMMENDATION_CACHE_MAX", "5000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RECOMMENDATION_CACHE_MAX: %w", err)
	}

	cfg.TypingIdleTimeout, err = getSeconds("TYPING_IDLE_TIMEOUT_SECONDS", "3")
	if err != nil {
		return nil, err
	}
	cfg.TypingStaleAfter, err = getSeconds("TYPING_STALE_AFTER_SECONDS", "4")
	if err != nil {
		return nil, err
	}
	cfg.MessagePageLimit, err = strconv.Atoi(getEnv("MESSAGE_PAGE_LIMIT", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid MESSAGE_PAGE_LIMIT: %w", err)
	}

	cfg.BookingSweepInterval, err = getSeconds("BOOKING_SWEEP_INTERVAL_SECONDS", "900")
	if err != nil {
		return nil, err
	}
	cfg.WithdrawalSweepInterval, err = getSeconds("WITHDRAWAL_SWEEP_INTERVAL_SECONDS", "3600")
	if err != nil {
		return nil, err
	}
	cfg.WithdrawalReminderAge, err = getSeconds("WITHDRAWAL_REMINDER_AGE_SECONDS", "259200")
	if err != nil {
		return nil, err
	}

	cfg.UploadURLTTL, err = getSeconds("UPLOAD_URL_TTL_SECONDS", "900")
	if err != nil {
		return nil, err
	}

	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
