package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/ChuLiYu/fleetstore/internal/errs"
)

// ConnectConfig holds the connection bootstrap parameters.
type ConnectConfig struct {
	URI         string
	Database    string
	Timeout     time.Duration // per-attempt connect + ping budget
	MaxPoolSize uint64
	Attempts    int
	RetryDelay  time.Duration
}

func (c ConnectConfig) withDefaults() ConnectConfig {
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 100
	}
	if c.Attempts <= 0 {
		c.Attempts = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	return c
}

// Connect dials MongoDB and verifies the connection with a ping, retrying a
// fixed number of times with a fixed delay. The returned Store owns the
// client and disconnects it on Close.
func Connect(ctx context.Context, cfg ConnectConfig, opts ...Option) (*Store, error) {
	cfg = cfg.withDefaults()
	logger := slog.Default()

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		client, err := dial(ctx, cfg)
		if err == nil {
			s := New(client.Database(cfg.Database), opts...)
			s.owned = true
			s.logger.Info("connected to mongodb", "database", cfg.Database, "attempt", attempt)
			return s, nil
		}
		lastErr = err
		logger.Warn("mongodb connect failed", "attempt", attempt, "of", cfg.Attempts, "error", err)

		if attempt == cfg.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryDelay):
		}
	}
	return nil, fmt.Errorf("mongo: connect after %d attempts: %w", cfg.Attempts, errs.Wrap(errs.ErrStoreUnavailable, lastErr))
}

func dial(ctx context.Context, cfg ConnectConfig) (*mongod.Client, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)

	client, err := mongod.Connect(clientOpts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}
