// Package config reads server configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything the server process needs to start.
type Config struct {
	Port         string
	DatabaseURL  string
	RedisURL     string
	NATSUrl      string
	JWTSecret    string
	SMSEndpoint  string
	SMSApiKey    string
	SMSSender    string
	MaxImageMB   int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Load reads the configuration. Empty DatabaseURL, RedisURL, NATSUrl or
// SMSEndpoint mean the corresponding subsystem stays disabled.
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		NATSUrl:      os.Getenv("NATS_URL"),
		JWTSecret:    getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		SMSEndpoint:  os.Getenv("SMS_ENDPOINT"),
		SMSApiKey:    os.Getenv("SMS_API_KEY"),
		SMSSender:    os.Getenv("SMS_SENDER"),
		MaxImageMB:   getEnvInt64("MAX_IMAGE_MB", 5),
		ReadTimeout:  getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvDuration("WRITE_TIMEOUT", 15*time.Second),
		Debug:        getEnvBool("DEBUG", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
