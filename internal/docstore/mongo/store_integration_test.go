//go:build integration

package mongo_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	mongomodule "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/errgroup"

	"github.com/ChuLiYu/fleetstore/internal/docstore/mongo"
	"github.com/ChuLiYu/fleetstore/internal/errs"
	"github.com/ChuLiYu/fleetstore/internal/jobstore"
	"github.com/ChuLiYu/fleetstore/internal/query"
	"github.com/ChuLiYu/fleetstore/internal/sequence"
	"github.com/ChuLiYu/fleetstore/pkg/types"
)

// setupTestStore starts a MongoDB container and returns a migrated Store.
func setupTestStore(t *testing.T) *mongo.Store {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := mongomodule.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("start mongodb container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	store, err := mongo.Connect(ctx, mongo.ConnectConfig{
		URI:      uri,
		Database: "fleetstore_test",
		Timeout:  30 * time.Second,
		Attempts: 1,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(ctx) })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

// burst draws n values from scope concurrently and returns them sorted.
func burst(t *testing.T, a *sequence.Allocator, scope sequence.Scope, n int) []int64 {
	t.Helper()
	out := make([]int64, n)
	var g errgroup.Group
	g.SetLimit(64)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := a.Allocate(context.Background(), scope)
			out[i] = v
			return err
		})
	}
	require.NoError(t, g.Wait())
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func assertDense(t *testing.T, got []int64) {
	t.Helper()
	for i, v := range got {
		if !assert.Equal(t, int64(i+1), v, "value at position %d", i) {
			return
		}
	}
}

func TestIncrementConcurrentBurst(t *testing.T) {
	store := setupTestStore(t)
	a := sequence.NewAllocator(sequence.NewStoreCounter(store))

	t.Run("scoped", func(t *testing.T) {
		assertDense(t, burst(t, a, sequence.MapScope(3, 7), 1000))
		// A sibling scope starts from 1 regardless.
		v, err := a.Allocate(context.Background(), sequence.MapScope(3, 8))
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})

	t.Run("global", func(t *testing.T) {
		assertDense(t, burst(t, a, sequence.JobScope(), 1000))
	})
}

func TestIncrementSeedsOneGlobalDocument(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	a := sequence.NewAllocator(sequence.NewStoreCounter(store))

	burst(t, a, sequence.JobScope(), 50)

	coll := store.DB().Collection(sequence.ScopeJob)
	n, err := coll.CountDocuments(ctx, bson.D{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var doc bson.Raw
	require.NoError(t, coll.FindOne(ctx, bson.D{}).Decode(&doc))
	assert.Equal(t, bson.TypeInt32, doc.Lookup("SeqID").Type, "SeqID keeps the 32-bit key of existing deployments")
	assert.Equal(t, int64(50), doc.Lookup("SeqNo").AsInt64())
}

func TestIncrementExistingCounterTypes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	a := sequence.NewAllocator(sequence.NewStoreCounter(store))

	tests := []struct {
		name  string
		scope sequence.Scope
		value any
	}{
		{"int32", sequence.LocationScope(), int32(41)},
		{"int64", sequence.NotificationScope(), int64(41)},
		{"double", sequence.CustomLogScope(), float64(41)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.DB().Collection(tt.scope.Collection()).InsertOne(ctx,
				bson.D{{Key: "SeqID", Value: int32(1)}, {Key: "SeqNo", Value: tt.value}})
			require.NoError(t, err)

			v, err := a.Allocate(ctx, tt.scope)
			require.NoError(t, err)
			assert.Equal(t, int64(42), v)
		})
	}
}

func TestReplaceAndDeleteNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	coll := query.KindJob.Collection()
	missing := query.Eq("job_id", int64(999))

	err := store.Replace(ctx, coll, missing, &types.Job{JobID: 999})
	assert.True(t, errors.Is(err, errs.ErrNotFound), "replace: %v", err)

	err = store.Delete(ctx, coll, missing)
	assert.True(t, errors.Is(err, errs.ErrNotFound), "delete: %v", err)
}

func TestJobLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	js := jobstore.New(store, sequence.NewAllocator(sequence.NewStoreCounter(store)))

	job := &types.Job{JobName: "patrol", LocationID: 3, SectorID: 7, RobotID: 1}
	id, err := js.Create(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	job.JobName = "patrol-2"
	require.NoError(t, js.Update(ctx, job))

	got, err := js.Fetch(ctx, jobstore.Filter{JobID: id, FilterType: query.JobFilterByID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "patrol-2", got[0].JobName)
	assert.Equal(t, 1, got[0].UpdateCount)

	require.NoError(t, js.Delete(ctx, id))
	assert.ErrorIs(t, js.Delete(ctx, id), errs.ErrNotFound)
	assert.ErrorIs(t, js.Update(ctx, job), errs.ErrNotFound)
}
