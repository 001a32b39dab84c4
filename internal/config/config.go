package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Admin API authentication
	AdminJWTSecret string

	// Payer credential encryption key (hex-encoded, 32 bytes decoded)
	CredentialKey string

	// Eligibility response cache
	EligibilityCacheTTL time.Duration

	// Medicare FHIR payer configuration
	MedicareBaseURL        string
	MedicareSandboxBaseURL string
	MedicareSandbox        bool
	MedicareTimeout        time.Duration

	// Clearinghouse payer configuration
	ClearinghouseEligibilityURL string
	ClearinghouseHealthURL      string
	ClearinghouseTimeout        time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		CredentialKey: getEnv("PAYER_CREDENTIAL_KEY", ""),

		EligibilityCacheTTL: getEnvAsDuration("ELIGIBILITY_CACHE_TTL", 15*time.Minute),

		MedicareBaseURL:        getEnv("MEDICARE_BASE_URL", ""),
		MedicareSandboxBaseURL: getEnv("MEDICARE_SANDBOX_BASE_URL", "https://sandbox.bluebutton.cms.gov"),
		MedicareSandbox:        getEnvAsBool("MEDICARE_SANDBOX", true),
		MedicareTimeout:        getEnvAsDuration("MEDICARE_TIMEOUT", 30*time.Second),

		ClearinghouseEligibilityURL: getEnv("CLEARINGHOUSE_ELIGIBILITY_URL", ""),
		ClearinghouseHealthURL:      getEnv("CLEARINGHOUSE_HEALTH_URL", ""),
		ClearinghouseTimeout:        getEnvAsDuration("CLEARINGHOUSE_TIMEOUT", 30*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
