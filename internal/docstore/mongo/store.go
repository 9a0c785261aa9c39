// Package mongo implements docstore.Store on the official MongoDB driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/ChuLiYu/fleetstore/internal/docstore"
	"github.com/ChuLiYu/fleetstore/internal/errs"
	"github.com/ChuLiYu/fleetstore/internal/query"
)

var (
	_ docstore.Store    = (*Store)(nil)
	_ docstore.Migrator = (*Store)(nil)
)

// incrementAttempts bounds the retry when two first-time upserts race on
// the same scope and one of them hits the unique index.
const incrementAttempts = 3

// Store is a docstore.Store over one MongoDB database.
type Store struct {
	client *mongod.Client
	db     *mongod.Database
	owned  bool
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New wraps an existing database handle. The caller owns the client
// lifecycle; Close will not disconnect it.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		client: db.Client(),
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database handle.
func (s *Store) DB() *mongod.Database {
	return s.db
}

// Ping checks connectivity against the primary.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return classify(err)
	}
	return nil
}

// Close disconnects the client when the Store created it in Connect.
func (s *Store) Close(ctx context.Context) error {
	if !s.owned {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

func (s *Store) Find(ctx context.Context, coll string, spec query.Spec) (docstore.Cursor, error) {
	start := time.Now()
	opts := options.Find()
	if len(spec.Sort) > 0 {
		opts.SetSort(toSort(spec.Sort))
	}
	if spec.Limit > 0 {
		opts.SetLimit(spec.Limit)
	}
	if spec.Skip > 0 {
		opts.SetSkip(spec.Skip)
	}

	cur, err := s.db.Collection(coll).Find(ctx, toFilter(spec.Filter), opts)
	if err != nil {
		s.logger.Error("mongo find failed", "collection", coll, "error", err)
		return nil, fmt.Errorf("mongo: find %s: %w", coll, classify(err))
	}
	s.logger.Debug("mongo find", "collection", coll, "duration", time.Since(start))
	return cur, nil
}

// ──────────────────────────────────────────────────
// Writes
// ──────────────────────────────────────────────────

func (s *Store) Insert(ctx context.Context, coll string, doc any) error {
	if _, err := s.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		s.logger.Error("mongo insert failed", "collection", coll, "error", err)
		return fmt.Errorf("mongo: insert %s: %w", coll, classify(err))
	}
	return nil
}

func (s *Store) Replace(ctx context.Context, coll string, key query.Cond, doc any) error {
	res, err := s.db.Collection(coll).ReplaceOne(ctx, toFilter(key), doc)
	if err != nil {
		s.logger.Error("mongo replace failed", "collection", coll, "error", err)
		return fmt.Errorf("mongo: replace %s: %w", coll, classify(err))
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, coll string, key query.Cond) error {
	res, err := s.db.Collection(coll).DeleteOne(ctx, toFilter(key))
	if err != nil {
		s.logger.Error("mongo delete failed", "collection", coll, "error", err)
		return fmt.Errorf("mongo: delete %s: %w", coll, classify(err))
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Increment is a single find-and-modify with upsert that returns the
// post-increment document, so the value handed out is exactly the value
// this call produced.
func (s *Store) Increment(ctx context.Context, coll string, key query.Cond, field string) (int64, error) {
	filter := toFilter(key)
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: field, Value: int64(1)}}}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: field, Value: 1}})

	var lastErr error
	for attempt := 1; attempt <= incrementAttempts; attempt++ {
		var out bson.Raw
		err := s.db.Collection(coll).FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
		if err == nil {
			v, ok := intValue(out.Lookup(field))
			if !ok {
				return 0, fmt.Errorf("mongo: increment %s: field %s is not an integer", coll, field)
			}
			return v, nil
		}
		lastErr = err
		if !isDuplicateKey(err) {
			break
		}
		s.logger.Debug("mongo increment upsert raced, retrying", "collection", coll, "attempt", attempt)
	}
	return 0, fmt.Errorf("mongo: increment %s: %w", coll, classify(lastErr))
}

// ──────────────────────────────────────────────────
// helpers
// ──────────────────────────────────────────────────

// classify maps connectivity failures to errs.ErrStoreUnavailable and leaves
// everything else untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if mongod.IsNetworkError(err) || mongod.IsTimeout(err) || isSelectionError(err) ||
		errors.Is(err, mongod.ErrClientDisconnected) {
		return errs.Wrap(errs.ErrStoreUnavailable, err)
	}
	return err
}

// isSelectionError matches the driver's server selection failure, which is
// not exported from the mongo package.
func isSelectionError(err error) bool {
	return strings.Contains(err.Error(), "server selection")
}

func intValue(rv bson.RawValue) (int64, bool) {
	switch rv.Type {
	case bson.TypeInt64:
		return rv.Int64(), true
	case bson.TypeInt32:
		return int64(rv.Int32()), true
	case bson.TypeDouble:
		return int64(rv.Double()), true
	}
	return 0, false
}

// isDuplicateKey checks if a MongoDB error is a duplicate key violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if mongod.IsDuplicateKeyError(err) {
		return true
	}
	return strings.Contains(err.Error(), "E11000")
}
