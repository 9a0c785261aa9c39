// Package memory is an in-process docstore.Store. Documents are kept as raw
// BSON so that decoding behaves exactly like the Mongo backend, and the whole
// state can optionally be written through to a snapshot file.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ChuLiYu/fleetstore/internal/docstore"
	"github.com/ChuLiYu/fleetstore/internal/errs"
	"github.com/ChuLiYu/fleetstore/internal/query"
	"github.com/ChuLiYu/fleetstore/internal/snapshot"
)

var (
	_ docstore.Store    = (*Store)(nil)
	_ docstore.Migrator = (*Store)(nil)
)

// Store is safe for concurrent use. Every mutation happens under one lock,
// which is what makes Increment atomic.
type Store struct {
	mu     sync.RWMutex
	colls  map[string][]bson.Raw
	closed bool

	snap   *snapshot.Manager
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithSnapshot persists every mutation to the snapshot file at path and
// restores from it in New.
func WithSnapshot(path string) Option {
	return func(s *Store) { s.snap = snapshot.NewManager(path) }
}

// New returns an empty store, or one restored from its snapshot file.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		colls:  make(map[string][]bson.Raw),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.snap != nil {
		data, err := s.snap.Load()
		if err != nil {
			return nil, fmt.Errorf("memory: restore: %w", err)
		}
		s.colls = data.Collections
		s.logger.Info("memory store restored", "path", s.snap.Path(), "collections", len(s.colls))
	}
	return s, nil
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errs.ErrStoreUnavailable
	}
	return nil
}

// Close flushes the snapshot, if any, and rejects further calls.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.persistLocked()
}

// Len returns the number of documents in coll.
func (s *Store) Len(coll string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.colls[coll])
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

func (s *Store) Find(ctx context.Context, coll string, spec query.Spec) (docstore.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errs.ErrStoreUnavailable
	}

	var out []bson.Raw
	for _, doc := range s.colls[coll] {
		if match(doc, spec.Filter) {
			out = append(out, doc)
		}
	}
	if len(spec.Sort) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			return less(out[i], out[j], spec.Sort)
		})
	}
	if spec.Skip > 0 {
		if spec.Skip >= int64(len(out)) {
			out = nil
		} else {
			out = out[spec.Skip:]
		}
	}
	if spec.Limit > 0 && spec.Limit < int64(len(out)) {
		out = out[:spec.Limit]
	}

	s.logger.Debug("memory find", "collection", coll, "filter", spec.Filter.String(), "matched", len(out))
	return &cursor{docs: out}, nil
}

// ──────────────────────────────────────────────────
// Writes
// ──────────────────────────────────────────────────

func (s *Store) Insert(ctx context.Context, coll string, doc any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("memory: insert %s: %w", coll, err)
	}
	return s.mutate(ctx, func() error {
		s.colls[coll] = append(s.colls[coll], raw)
		return nil
	})
}

func (s *Store) Replace(ctx context.Context, coll string, key query.Cond, doc any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("memory: replace %s: %w", coll, err)
	}
	return s.mutate(ctx, func() error {
		i := s.indexLocked(coll, key)
		if i < 0 {
			return errs.ErrNotFound
		}
		s.colls[coll][i] = raw
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, coll string, key query.Cond) error {
	return s.mutate(ctx, func() error {
		i := s.indexLocked(coll, key)
		if i < 0 {
			return errs.ErrNotFound
		}
		docs := s.colls[coll]
		s.colls[coll] = append(docs[:i:i], docs[i+1:]...)
		return nil
	})
}

func (s *Store) Increment(ctx context.Context, coll string, key query.Cond, field string) (int64, error) {
	var next int64
	err := s.mutate(ctx, func() error {
		i := s.indexLocked(coll, key)
		if i < 0 {
			doc := seed(key)
			next = 1
			doc = append(doc, bson.E{Key: field, Value: next})
			raw, err := bson.Marshal(doc)
			if err != nil {
				return err
			}
			s.colls[coll] = append(s.colls[coll], raw)
			return nil
		}

		var doc bson.D
		if err := bson.Unmarshal(s.colls[coll][i], &doc); err != nil {
			return err
		}
		set := false
		for k := range doc {
			if doc[k].Key != field {
				continue
			}
			cur, ok := toInt64(doc[k].Value)
			if !ok {
				return fmt.Errorf("memory: field %s of %s is not numeric", field, coll)
			}
			next = cur + 1
			doc[k].Value = next
			set = true
			break
		}
		if !set {
			next = 1
			doc = append(doc, bson.E{Key: field, Value: next})
		}
		raw, err := bson.Marshal(doc)
		if err != nil {
			return err
		}
		s.colls[coll][i] = raw
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// mutate runs fn under the write lock and writes the snapshot through when
// fn succeeds.
func (s *Store) mutate(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errs.ErrStoreUnavailable
	}
	if err := fn(); err != nil {
		return err
	}
	if err := s.persistLocked(); err != nil {
		s.logger.Error("memory snapshot failed", "error", err)
		return errs.Wrap(errs.ErrStoreUnavailable, err)
	}
	s.logger.Debug("memory mutate", "duration", time.Since(start))
	return nil
}

func (s *Store) persistLocked() error {
	if s.snap == nil {
		return nil
	}
	return s.snap.Write(snapshot.Data{Collections: s.colls})
}

func (s *Store) indexLocked(coll string, key query.Cond) int {
	for i, doc := range s.colls[coll] {
		if match(doc, key) {
			return i
		}
	}
	return -1
}

// seed builds the initial upsert document from key's equality fields, in a
// stable field order.
func seed(key query.Cond) bson.D {
	eq := key.Equalities()
	names := make([]string, 0, len(eq))
	for k := range eq {
		names = append(names, k)
	}
	sort.Strings(names)
	doc := make(bson.D, 0, len(names)+1)
	for _, k := range names {
		doc = append(doc, bson.E{Key: k, Value: eq[k]})
	}
	return doc
}

// ──────────────────────────────────────────────────
// Cursor
// ──────────────────────────────────────────────────

// cursor streams a materialised result. A context cancelled mid-stream
// stops iteration and is reported by Err, as *mongo.Cursor does.
type cursor struct {
	docs []bson.Raw
	pos  int
	cur  bson.Raw
	err  error
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		c.cur = nil
		return false
	}
	if c.pos >= len(c.docs) {
		c.cur = nil
		return false
	}
	c.cur = c.docs[c.pos]
	c.pos++
	return true
}

func (c *cursor) Decode(v any) error {
	if c.cur == nil {
		return fmt.Errorf("memory: decode called without a current document")
	}
	return bson.Unmarshal(c.cur, v)
}

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close(_ context.Context) error {
	c.docs = nil
	c.cur = nil
	return nil
}
