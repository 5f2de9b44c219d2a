package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis (optional; empty disables the match event publisher)
	RedisURL string

	// Arbiter
	GamePort           string
	TurnTimeoutSeconds int
	TickMillis         int

	// Status API
	APIPort string

	// Security
	JWTSecret          string
	AdminSessionTTLMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/kalaharena?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// Arbiter
		GamePort:           getEnv("GAME_PORT", "31337"),
		TurnTimeoutSeconds: getEnvInt("TURN_TIMEOUT_SECONDS", 10),
		TickMillis:         getEnvInt("TICK_MILLIS", 200),

		// Status API
		APIPort: getEnv("API_PORT", "8080"),

		// Security
		JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production"),
		AdminSessionTTLMin: getEnvInt("ADMIN_SESSION_TTL_MINUTES", 240),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
