// Package docstore declares the document-store client the data-access tier
// consumes. Two backends implement it: docstore/mongo for production and
// docstore/memory for tests, local runs and the snapshot-backed CLI mode.
package docstore

import (
	"context"

	"github.com/ChuLiYu/fleetstore/internal/query"
)

// Store is a generic document-store client.
//
// Replace and Delete report errs.ErrNotFound when key matches nothing.
// Increment is the single atomic primitive: it adds one to field of the
// document matching key, creating the document (seeded with key's equality
// fields) when none exists, and returns the post-increment value.
type Store interface {
	Find(ctx context.Context, coll string, spec query.Spec) (Cursor, error)
	Insert(ctx context.Context, coll string, doc any) error
	Replace(ctx context.Context, coll string, key query.Cond, doc any) error
	Delete(ctx context.Context, coll string, key query.Cond) error
	Increment(ctx context.Context, coll string, key query.Cond, field string) (int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Cursor streams the result of Find. *mongo.Cursor satisfies it.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// Migrator is implemented by backends that need indexes or schema set up
// before first use.
type Migrator interface {
	Migrate(ctx context.Context) error
}
