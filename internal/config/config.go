// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Mode string

	Workers     int
	GradeFanOut int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EdgeURL     string
	DatabaseURL string

	Retention      time.Duration
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
}

// Load reads the environment. A missing .env file is not an error; in
// containers everything arrives through real environment variables.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: skipping .env: %v", err)
	}

	return Config{
		Port:        getEnv("PORT", "8080"),
		Mode:        getEnv("MODE", "both"),
		Workers:     getEnvInt("WORKERS", 5),
		GradeFanOut: getEnvInt("GRADE_FAN_OUT", 4),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		EdgeURL:     getEnv("EDGE_URL", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		Retention:      time.Duration(getEnvInt("RETENTION_MINUTES", 60)) * time.Minute,
		DefaultTimeout: time.Duration(getEnvInt("DEFAULT_TIMEOUT_MS", 10000)) * time.Millisecond,
		MaxTimeout:     time.Duration(getEnvInt("MAX_TIMEOUT_MS", 30000)) * time.Millisecond,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return n
}
