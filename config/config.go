package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime parameter the service needs.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	RabbitMQURL string
	RedisAddr   string

	// Cloudflare R2 (S3-compatible) credentials for bracket archives.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2Bucket          string
	R2PublicBaseURL   string

	// ResultGraceMinutes is how long a sole self-reported result waits
	// before it is confirmed automatically.
	ResultGraceMinutes int

	// Scheduling window defaults, overridable per tournament.
	DayStartHour int
	DayEndHour   int
}

// Load reads configuration from environment variables. A .env file is
// loaded first when present; its absence is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	grace, err := intEnv("RESULT_GRACE_MINUTES", 120)
	if err != nil {
		return nil, err
	}
	if grace < 0 {
		return nil, fmt.Errorf("RESULT_GRACE_MINUTES must not be negative, got %d", grace)
	}

	dayStart, err := intEnv("DAY_START_HOUR", 9)
	if err != nil {
		return nil, err
	}
	dayEnd, err := intEnv("DAY_END_HOUR", 22)
	if err != nil {
		return nil, err
	}
	if dayStart < 0 || dayEnd > 24 || dayEnd <= dayStart {
		return nil, fmt.Errorf("invalid scheduling window %d..%d", dayStart, dayEnd)
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2Bucket:          os.Getenv("R2_BUCKET"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),

		ResultGraceMinutes: grace,
		DayStartHour:       dayStart,
		DayEndHour:         dayEnd,
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}
