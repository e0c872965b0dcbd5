package config

import (
	"os"
	"strings"
)

// Config holds all runtime settings. Values come from the environment; main
// loads a .env file first so local development works without exported vars.
type Config struct {
	DatabaseURL    string
	ServerPort     string
	AllowedOrigins []string
	JWTSecret      string
	KafkaBrokers   []string
	KafkaTopic     string
	RedisAddr      string
}

func Load() Config {
	return Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ServerPort:     getenv("SERVER_PORT", "8080"),
		AllowedOrigins: splitCSV(os.Getenv("ALLOWED_ORIGINS")),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		KafkaBrokers:   splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getenv("KAFKA_TOPIC", "stockroom.events"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
