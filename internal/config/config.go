package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	DBHost         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBPort         string
	DBSSLMode      string
	DBMaxOpenConns int
	DBMaxIdleConns int

	OrderTxAcquireWait time.Duration
	OrderTxTimeout     time.Duration

	JWTSecret      string
	AdminJWTSecret string
	ClientTokenTTL time.Duration
	CookieSecure   bool

	PaymentKeyID    string
	PaymentSecret   string
	PaymentBaseURL  string
	PaymentCurrency string
	// PaymentWebhookSecret enables the provider webhook when set.
	PaymentWebhookSecret string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	FrontendURL  string

	KafkaBrokers []string
	KafkaTopic   string

	BlobRoot    string
	BlobBaseURL string

	OTLPEndpoint string

	RateLimitEnabled   bool
	InternalServiceKey string
	CORSOrigins        []string
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("ORDER_TX_ACQUIRE_WAIT", 5*time.Second)
	v.SetDefault("ORDER_TX_TIMEOUT", 10*time.Second)
	v.SetDefault("CLIENT_TOKEN_TTL", 2*time.Hour)
	v.SetDefault("PAYMENT_BASE_URL", "https://api.razorpay.com")
	v.SetDefault("PAYMENT_CURRENCY", "INR")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("KAFKA_TOPIC", "orders")
	v.SetDefault("BLOB_ROOT", "./data/blobs")
	v.SetDefault("BLOB_BASE_URL", "http://localhost:8080/media")
	v.SetDefault("RATE_LIMIT_ENABLED", true)
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{
		AppPort:  v.GetString("APP_PORT"),
		AppEnv:   v.GetString("APP_ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),

		DBHost:         v.GetString("DB_HOST"),
		DBUser:         v.GetString("DB_USER"),
		DBPassword:     v.GetString("DB_PASSWORD"),
		DBName:         v.GetString("DB_NAME"),
		DBPort:         v.GetString("DB_PORT"),
		DBSSLMode:      v.GetString("DB_SSLMODE"),
		DBMaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		OrderTxAcquireWait: v.GetDuration("ORDER_TX_ACQUIRE_WAIT"),
		OrderTxTimeout:     v.GetDuration("ORDER_TX_TIMEOUT"),

		JWTSecret:      v.GetString("JWT_SECRET"),
		AdminJWTSecret: v.GetString("ADMIN_JWT_SECRET"),
		ClientTokenTTL: v.GetDuration("CLIENT_TOKEN_TTL"),
		CookieSecure:   v.GetString("APP_ENV") == "production",

		PaymentKeyID:    v.GetString("RAZORPAY_KEY_ID"),
		PaymentSecret:   v.GetString("RAZORPAY_KEY_SECRET"),
		PaymentBaseURL:  v.GetString("PAYMENT_BASE_URL"),
		PaymentCurrency: v.GetString("PAYMENT_CURRENCY"),

		PaymentWebhookSecret: v.GetString("RAZORPAY_WEBHOOK_SECRET"),

		SMTPHost:     v.GetString("SMTP_HOST"),
		SMTPPort:     v.GetInt("SMTP_PORT"),
		SMTPUser:     v.GetString("SMTP_USER"),
		SMTPPassword: v.GetString("SMTP_PASSWORD"),
		SMTPFrom:     v.GetString("SMTP_FROM"),
		FrontendURL:  v.GetString("FRONTEND_URL"),

		KafkaBrokers: splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("KAFKA_TOPIC"),

		BlobRoot:    v.GetString("BLOB_ROOT"),
		BlobBaseURL: v.GetString("BLOB_BASE_URL"),

		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),

		RateLimitEnabled:   v.GetBool("RATE_LIMIT_ENABLED"),
		InternalServiceKey: v.GetString("INTERNAL_SERVICE_KEY"),
		CORSOrigins:        splitList(v.GetString("CORS_ORIGINS")),
	}

	if cfg.AdminJWTSecret == "" {
		cfg.AdminJWTSecret = cfg.JWTSecret
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUser
	}

	return cfg
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DBHost == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.PaymentSecret == "" {
		errs = append(errs, errors.New("RAZORPAY_KEY_SECRET is required"))
	}
	if c.OrderTxTimeout <= 0 || c.OrderTxAcquireWait <= 0 {
		errs = append(errs, errors.New("order transaction timeouts must be positive"))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
