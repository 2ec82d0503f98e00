package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	MemoryDatabaseURL     = "memory://"
	defaultMaxUploadBytes = 5 << 20
)

type Config struct {
	Port           string
	Environment    string
	AppName        string
	AppURL         string
	AllowedOrigins []string

	DatabaseURL string
	RedisURL    string

	JWTSecret        string
	FirebaseCredPath string

	SendGridAPIKey string
	SendGridFrom   string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicBaseURL   string
	MaxUploadBytes    int64

	MercadoPagoToken   string
	MercadoPagoBaseURL string
	PaymentCurrency    string

	RequireExpenseReceipt bool
}

var AppConfig *Config

func Load() *Config {
	_ = godotenv.Load() // Load .env file if present

	AppConfig = &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AppName:        getEnv("APP_NAME", "Rata"),
		AppURL:         strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
		AllowedOrigins: getList("ALLOWED_ORIGINS"),

		DatabaseURL: getEnv("DATABASE_URL", MemoryDatabaseURL),
		RedisURL:    getEnv("REDIS_URL", ""),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		FirebaseCredPath: getEnv("FIREBASE_CREDENTIALS", ""),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		SendGridFrom:   getEnv("SENDGRID_FROM_EMAIL", "noreply@rata.app"),

		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3PublicBaseURL:   getEnv("S3_PUBLIC_BASE_URL", ""),
		MaxUploadBytes:    getInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),

		MercadoPagoToken:   getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
		MercadoPagoBaseURL: getEnv("MERCADOPAGO_BASE_URL", ""),
		PaymentCurrency:    getEnv("PAYMENT_CURRENCY", "ARS"),

		RequireExpenseReceipt: getBool("REQUIRE_EXPENSE_RECEIPT", false),
	}
	return AppConfig
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == "" || c.DatabaseURL == MemoryDatabaseURL
}

func (c *Config) UploadsEnabled() bool {
	return c.S3Bucket != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getInt64(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// getList splits a comma separated value, dropping blanks.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
