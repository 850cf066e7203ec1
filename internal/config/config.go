package config

import (
	"os"
	"time"
)

// Config holds the environment-driven settings for a single matchmaker node.
type Config struct {
	Environment string `env:"ENVIRONMENT"`
	Port        string `env:"PORT"`
	LogLevel    string `env:"LOG_LEVEL"`

	// ProcessID is the stable identifier this node advertises on the
	// nodes-set. Empty means "generate one at startup".
	ProcessID string `env:"PROCESS_ID"`

	// PresenceBackend selects the Presence implementation: "local" or "redis".
	PresenceBackend string `env:"PRESENCE_BACKEND"`
	RedisURL        string `env:"REDIS_URL"`

	// DriverBackend selects the RoomListing store: "local" or "postgres".
	DriverBackend string `env:"DRIVER_BACKEND"`
	DatabaseURL   string `env:"DATABASE_URL,secret"`

	// RemoteRoomShortTimeout bounds every IPC request/reply round trip.
	RemoteRoomShortTimeout time.Duration `env:"REMOTE_ROOM_SHORT_TIMEOUT"`
}

// Load loads configuration from environment variables, falling back to
// defaults suitable for a single-node development run.
func Load() *Config {
	return &Config{
		Environment:            getEnv("ENVIRONMENT", "development"),
		Port:                   getEnv("PORT", "8080"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		ProcessID:              getEnv("PROCESS_ID", ""),
		PresenceBackend:        getEnv("PRESENCE_BACKEND", "local"),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DriverBackend:          getEnv("DRIVER_BACKEND", "local"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		RemoteRoomShortTimeout: getEnvAsDuration("REMOTE_ROOM_SHORT_TIMEOUT", 3*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
