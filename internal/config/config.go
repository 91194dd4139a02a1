// Package config loads application configuration from the environment.
package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Server
	Port string
	Env  string

	// Local cache
	CachePath string

	// Remote store
	RemoteBaseURL    string
	RemoteAPIKey     string
	RemoteDocumentID string
	RemoteTimeout    time.Duration

	// Background sync; 0 disables the periodic refresh.
	SyncInterval time.Duration
}

// Load reads configuration from the environment, falling back to a .env file
// and then to defaults. An empty REMOTE_BASE_URL leaves the application in
// offline mode: every sync cycle fails transiently and the local cache keeps
// serving reads and writes.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		CachePath:        getEnv("CACHE_PATH", "moneta.db"),
		RemoteBaseURL:    getEnv("REMOTE_BASE_URL", ""),
		RemoteAPIKey:     getEnv("REMOTE_API_KEY", ""),
		RemoteDocumentID: getEnv("REMOTE_DOCUMENT_ID", "default"),
	}

	cfg.RemoteTimeout = getDuration("REMOTE_TIMEOUT", 30*time.Second)
	cfg.SyncInterval = getDuration("SYNC_INTERVAL", 5*time.Minute)

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration parses a duration environment variable, falling back to the
// default on absence or parse failure.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}
