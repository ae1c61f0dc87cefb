// Package graph mirrors plan dependency structure into a graph
// database for Cypher-level analysis. The projection is derived state:
// the sqlite store stays the source of truth and the mirror can be
// rebuilt from it at any time.
package graph

import (
	"context"

	"github.com/joss/actionplan/internal/config"
)

// Record represents a single result row from a query.
type Record map[string]any

// Reader provides read-only graph database operations.
type Reader interface {
	// Execute runs a Cypher query and returns results.
	Execute(ctx context.Context, query string, params map[string]any) ([]Record, error)
}

// Writer provides write graph database operations.
type Writer interface {
	// ExecuteWrite runs a write query (CREATE, MERGE, SET, DELETE).
	ExecuteWrite(ctx context.Context, query string, params map[string]any) error
}

// Driver is the full interface for graph database operations. Any
// Bolt-speaking database (Memgraph, Neo4j) satisfies it.
type Driver interface {
	Reader
	Writer

	// Close releases database resources.
	Close() error

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error
}

// Config holds database connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
}

// DefaultConfig returns the connection configuration from the process
// environment.
func DefaultConfig() Config {
	env := config.Env()
	return Config{
		URI:      env.Neo4jURI,
		Username: env.Neo4jUser,
		Password: env.Neo4jPassword,
	}
}
