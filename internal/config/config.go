package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Addr    string
	DBPath  string
	Debug   bool
	Tracing bool

	// InMemory switches persistence to the in-memory store; useful for
	// demos and throwaway analysis sessions.
	InMemory bool

	// CorrelationThreshold is the minimum combined confidence for a
	// heuristic entity match. 0 keeps the engine default.
	CorrelationThreshold float64

	// MinCoverage is the finding count below which a hazard, loss or
	// critical control action is reported as a gap.
	MinCoverage int

	// OrdinalAnchorsPath points to an optional YAML file with extra
	// ordinal severity anchors (e.g. "severe: 90").
	OrdinalAnchorsPath string

	// Bootstrap admin credentials; both empty disables bootstrapping.
	AdminUser     string
	AdminPassword string
}

// Load reads configuration from a .env file (when present) and the
// environment. Command line flags on the serve command override the result.
func Load() *Config {
	// Missing .env is fine; the environment wins over the file.
	_ = godotenv.Load()

	return &Config{
		Addr:                 getEnv("RISKMAP_ADDR", ":8080"),
		DBPath:               getEnv("RISKMAP_DB", getDefaultDBPath()),
		Debug:                getEnvBool("RISKMAP_DEBUG", false),
		Tracing:              getEnvBool("RISKMAP_TRACING", false),
		InMemory:             getEnvBool("RISKMAP_MEMORY", false),
		CorrelationThreshold: getEnvFloat("RISKMAP_CORRELATION_THRESHOLD", 0),
		MinCoverage:          getEnvInt("RISKMAP_MIN_COVERAGE", 1),
		OrdinalAnchorsPath:   getEnv("RISKMAP_ORDINAL_ANCHORS", ""),
		AdminUser:            getEnv("RISKMAP_ADMIN_USER", ""),
		AdminPassword:        getEnv("RISKMAP_ADMIN_PASSWORD", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getDefaultDBPath returns the default database path in the user's home
// directory, creating ~/.riskmap if needed.
func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return "riskmap.db"
	}

	dir := filepath.Join(home, ".riskmap")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: Could not create .riskmap directory, using current dir: %v", err)
		return "riskmap.db"
	}

	return filepath.Join(dir, "riskmap.db")
}
