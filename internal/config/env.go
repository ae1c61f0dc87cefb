// Package config provides centralized configuration management.
// All environment lookups live here instead of being scattered
// through the codebase.
package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PlanEnv holds all action-plan engine environment variables.
type PlanEnv struct {
	// HTTPAddr is the API listen address (ACTIONPLAN_HTTP_ADDR)
	HTTPAddr string

	// MetricsAddr is the metrics listen address (ACTIONPLAN_METRICS_ADDR)
	MetricsAddr string

	// DBPath overrides the sqlite database path (ACTIONPLAN_DB)
	DBPath string

	// ActorID identifies the CLI user for history entries (ACTIONPLAN_ACTOR)
	ActorID string

	// ValidationTimeout bounds per-mutation validation (ACTIONPLAN_VALIDATION_TIMEOUT)
	ValidationTimeout time.Duration

	// Neo4jURI is the graph database URI for projections (NEO4J_URI)
	Neo4jURI string

	// Neo4jUser is the graph database user (NEO4J_USER)
	Neo4jUser string

	// Neo4jPassword is the graph database password (NEO4J_PASSWORD)
	Neo4jPassword string
}

var (
	env     *PlanEnv
	envOnce sync.Once
)

// Env returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Env() *PlanEnv {
	envOnce.Do(func() {
		env = &PlanEnv{
			HTTPAddr:          getEnvDefault("ACTIONPLAN_HTTP_ADDR", ":8460"),
			MetricsAddr:       getEnvDefault("ACTIONPLAN_METRICS_ADDR", ":9460"),
			DBPath:            os.Getenv("ACTIONPLAN_DB"),
			ActorID:           getEnvDefault("ACTIONPLAN_ACTOR", defaultActor()),
			ValidationTimeout: getEnvDuration("ACTIONPLAN_VALIDATION_TIMEOUT", 2*time.Second),
			Neo4jURI:          getEnvDefault("NEO4J_URI", "bolt://localhost:7687"),
			Neo4jUser:         os.Getenv("NEO4J_USER"),
			Neo4jPassword:     os.Getenv("NEO4J_PASSWORD"),
		}
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// Paths holds standard directory paths for the engine.
type Paths struct {
	// Home is the engine home directory (~/.actionplan)
	Home string

	// Data is the data directory (~/.actionplan/data)
	Data string

	// Exports is the default export output directory (~/.actionplan/exports)
	Exports string
}

var (
	paths     *Paths
	pathsOnce sync.Once
)

// GetPaths returns the singleton paths configuration.
func GetPaths() *Paths {
	pathsOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		root := filepath.Join(home, ".actionplan")

		paths = &Paths{
			Home:    root,
			Data:    filepath.Join(root, "data"),
			Exports: filepath.Join(root, "exports"),
		}
	})
	return paths
}

// DBPath resolves the sqlite database path, honoring ACTIONPLAN_DB.
func DBPath() string {
	if p := Env().DBPath; p != "" {
		return p
	}
	return filepath.Join(GetPaths().Data, "actionplan.db")
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
