package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Port        string
	DatabaseURL string

	SessionSecret  string
	SessionTTL     time.Duration
	ClerkSecretKey string
	// AdminUserIDs reach the campaign admin routes. They may also redeem
	// any coupon by fetch code at the counter.
	AdminUserIDs []int

	FCMServiceAccountJSON string
	FCMCredentialsFile    string

	QRBaseURL string

	LogLevel  string
	LogFormat string

	MetricsUser string
	MetricsPass string

	RateLimitRPS   float64
	RateLimitBurst int
	// TrustProxy honours X-Forwarded-For. Only enable it behind a proxy that
	// overwrites the header.
	TrustProxy bool

	CORSAllowedOrigins []string
	SeedData           bool
}

// Load reads .env if present and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	return &Config{
		Port:                  getEnv("PORT", "3333"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		SessionSecret:         getEnv("SESSION_SECRET", ""),
		SessionTTL:            getEnvAsDuration("SESSION_TTL", 30*24*time.Hour),
		ClerkSecretKey:        getEnv("CLERK_SECRET_KEY", ""),
		AdminUserIDs:          getEnvAsIntSlice("ADMIN_USER_IDS"),
		FCMServiceAccountJSON: getEnv("FCM_SERVICE_ACCOUNT_JSON", ""),
		FCMCredentialsFile:    getEnv("FCM_CREDENTIALS_FILE", "./serviceAccountKey.json"),
		QRBaseURL:             strings.TrimRight(getEnv("QR_BASE_URL", "https://earlyshh.com"), "/"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "text"),
		MetricsUser:           getEnv("METRICS_USER", ""),
		MetricsPass:           getEnv("METRICS_PASS", ""),
		RateLimitRPS:          getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:        getEnvAsInt("RATE_LIMIT_BURST", 30),
		TrustProxy:            getEnvAsBool("TRUST_PROXY", false),
		CORSAllowedOrigins:    getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		SeedData:              getEnvAsBool("SEED_DATA", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

func getEnvAsIntSlice(key string) []int {
	var values []int
	for _, v := range getEnvAsSlice(key, nil) {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			log.Warnf("Ignoring invalid id %q in %s", v, key)
			continue
		}
		values = append(values, id)
	}
	return values
}
