package docstore

import (
	"context"
	"time"

	"github.com/ChuLiYu/fleetstore/internal/query"
)

// OpRecorder observes every store call. *metrics.Collector satisfies it.
type OpRecorder interface {
	RecordStoreOp(op, collection string, err error, d time.Duration)
}

// Instrumented decorates a Store, reporting each call to an OpRecorder.
type Instrumented struct {
	Store
	rec OpRecorder
	now func() time.Time
}

// Instrument wraps s. A nil recorder returns s unchanged.
func Instrument(s Store, rec OpRecorder) Store {
	if rec == nil {
		return s
	}
	return &Instrumented{Store: s, rec: rec, now: time.Now}
}

func (i *Instrumented) observe(op, coll string, start time.Time, err error) {
	i.rec.RecordStoreOp(op, coll, err, i.now().Sub(start))
}

func (i *Instrumented) Find(ctx context.Context, coll string, spec query.Spec) (Cursor, error) {
	start := i.now()
	cur, err := i.Store.Find(ctx, coll, spec)
	i.observe("find", coll, start, err)
	return cur, err
}

func (i *Instrumented) Insert(ctx context.Context, coll string, doc any) error {
	start := i.now()
	err := i.Store.Insert(ctx, coll, doc)
	i.observe("insert", coll, start, err)
	return err
}

func (i *Instrumented) Replace(ctx context.Context, coll string, key query.Cond, doc any) error {
	start := i.now()
	err := i.Store.Replace(ctx, coll, key, doc)
	i.observe("replace", coll, start, err)
	return err
}

func (i *Instrumented) Delete(ctx context.Context, coll string, key query.Cond) error {
	start := i.now()
	err := i.Store.Delete(ctx, coll, key)
	i.observe("delete", coll, start, err)
	return err
}

func (i *Instrumented) Increment(ctx context.Context, coll string, key query.Cond, field string) (int64, error) {
	start := i.now()
	n, err := i.Store.Increment(ctx, coll, key, field)
	i.observe("increment", coll, start, err)
	return n, err
}

// Migrate forwards to the wrapped store when it is a Migrator.
func (i *Instrumented) Migrate(ctx context.Context) error {
	if m, ok := i.Store.(Migrator); ok {
		return m.Migrate(ctx)
	}
	return nil
}
