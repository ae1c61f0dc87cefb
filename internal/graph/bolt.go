package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/joss/actionplan/internal/logging"
)

// Bolt implements Driver over the Bolt protocol.
type Bolt struct {
	driver neo4j.DriverWithContext
	config Config
}

// NewBolt creates a driver for the given configuration.
func NewBolt(cfg Config) (*Bolt, error) {
	var auth neo4j.AuthToken
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	} else {
		auth = neo4j.NoAuth()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("create bolt driver: %w", err)
	}

	return &Bolt{driver: driver, config: cfg}, nil
}

// Connect creates a driver with the environment configuration.
func Connect() (*Bolt, error) {
	return NewBolt(DefaultConfig())
}

// ConnectWithRetry tries to connect with exponential backoff. Returns
// nil when all retries fail: projection is optional and callers run
// without it.
func ConnectWithRetry(maxRetries int) *Bolt {
	log := logging.New("graph")
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		b, err := Connect()
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			pingErr := b.Ping(ctx)
			cancel()
			if pingErr == nil {
				return b
			}
			b.Close()
			lastErr = pingErr
		} else {
			lastErr = err
		}
		time.Sleep(time.Duration(100<<i) * time.Millisecond)
	}
	log.Warn("graph database unavailable, continuing without projection", nil, lastErr)
	return nil
}

// Execute runs a read query and returns results.
func (b *Bolt) Execute(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode: neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var records []Record
	for result.Next(ctx) {
		rec := result.Record()
		record := make(Record)
		for _, key := range rec.Keys {
			val, _ := rec.Get(key)
			record[key] = val
		}
		records = append(records, record)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("result iteration failed: %w", err)
	}

	return records, nil
}

// ExecuteWrite runs a write query.
func (b *Bolt) ExecuteWrite(ctx context.Context, query string, params map[string]any) error {
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode: neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	if _, err := session.Run(ctx, query, params); err != nil {
		return fmt.Errorf("write query failed: %w", err)
	}
	return nil
}

// Close releases the database driver.
func (b *Bolt) Close() error {
	return b.driver.Close(context.Background())
}

// Ping checks database connectivity.
func (b *Bolt) Ping(ctx context.Context) error {
	return b.driver.VerifyConnectivity(ctx)
}
