package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL   string
	MigrationsDir string

	// Local model runtime (llama.cpp-compatible HTTP server)
	LocalRuntimeURL string

	// Remote provider stream read buffer (bytes)
	StreamBufferSize int

	// Frontend (CORS origin)
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:             getEnvOrDefault("PORT", "8080"),
		Env:              getEnvOrDefault("ENV", "development"),
		DatabaseURL:      mustGetEnv("DATABASE_URL"),
		MigrationsDir:    getEnvOrDefault("MIGRATIONS_DIR", "./migrations"),
		LocalRuntimeURL:  getEnvOrDefault("LOCAL_RUNTIME_URL", "http://localhost:11434"),
		StreamBufferSize: getEnvAsIntOrDefault("STREAM_BUFFER_SIZE", 64*1024),
		FrontendURL:      getEnvOrDefault("FRONTEND_URL", "http://localhost:4200"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
