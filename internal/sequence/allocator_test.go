package sequence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/errgroup"

	"github.com/ChuLiYu/fleetstore/internal/docstore/memory"
	"github.com/ChuLiYu/fleetstore/internal/errs"
)

func newMemoryAllocator(t *testing.T, opts ...Option) (*Allocator, *memory.Store) {
	t.Helper()
	store, err := memory.New()
	require.NoError(t, err)
	return NewAllocator(NewStoreCounter(store), opts...), store
}

// allocateN runs n allocations concurrently and returns the values sorted.
func allocateN(t *testing.T, a *Allocator, scope Scope, n int) []int64 {
	t.Helper()
	var (
		mu  sync.Mutex
		out = make([]int64, 0, n)
	)
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(64)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := a.Allocate(ctx, scope)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, v)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func seq(from, to int64) []int64 {
	out := make([]int64, 0, to-from+1)
	for v := from; v <= to; v++ {
		out = append(out, v)
	}
	return out
}

func TestAllocateConcurrentIsGapFreeAndUnique(t *testing.T) {
	a, store := newMemoryAllocator(t)

	// Pre-existing counter at k = 41, stored the way legacy documents are.
	require.NoError(t, store.Insert(context.Background(), ScopeJob,
		bson.D{{Key: "SeqID", Value: int32(1)}, {Key: "SeqNo", Value: int64(41)}}))

	got := allocateN(t, a, JobScope(), 1000)
	assert.Equal(t, seq(42, 1041), got)
	assert.Equal(t, 1, store.Len(ScopeJob), "one counter document per scope")
}

func TestAllocateScopesAreIndependent(t *testing.T) {
	a, _ := newMemoryAllocator(t)
	ctx := context.Background()

	scopes := []Scope{MapScope(3, 7), MapScope(3, 8), MJobScope(3, 7), SectorScope(3), SectorScope(4), LocationScope()}
	for round := int64(1); round <= 3; round++ {
		for _, s := range scopes {
			v, err := a.Allocate(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, round, v, "scope %s", s)
		}
	}
}

func TestAllocateUserOffset(t *testing.T) {
	a, store := newMemoryAllocator(t)
	ctx := context.Background()

	first, err := a.Allocate(ctx, UserScope())
	require.NoError(t, err)
	assert.Equal(t, int64(10001), first)

	second, err := a.Allocate(ctx, UserScope())
	require.NoError(t, err)
	assert.Equal(t, int64(10002), second)

	// The stored counter itself is not shifted.
	raw, err := NewStoreCounter(store).IncrementAndGet(ctx, UserScope())
	require.NoError(t, err)
	assert.Equal(t, int64(3), raw)

	// Only the user scope is shifted.
	job, err := a.Allocate(ctx, JobScope())
	require.NoError(t, err)
	assert.Equal(t, int64(1), job)
}

type failingCounter struct{ err error }

func (f failingCounter) IncrementAndGet(context.Context, Scope) (int64, error) { return 0, f.err }

type recorded struct {
	scope string
	err   error
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *fakeRecorder) RecordAllocation(scope string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recorded{scope, err})
}

func TestAllocateFailure(t *testing.T) {
	cause := errors.New("connection reset")
	rec := &fakeRecorder{}
	a := NewAllocator(failingCounter{err: cause}, WithRecorder(rec))

	v, err := a.Allocate(context.Background(), JobScope())
	assert.Zero(t, v)
	assert.ErrorIs(t, err, errs.ErrAllocationFailed)
	assert.ErrorIs(t, err, cause)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, ScopeJob, rec.calls[0].scope)
	assert.ErrorIs(t, rec.calls[0].err, cause)
}

func TestAllocateClosedStore(t *testing.T) {
	a, store := newMemoryAllocator(t)
	require.NoError(t, store.Close(context.Background()))

	_, err := a.Allocate(context.Background(), JobScope())
	assert.ErrorIs(t, err, errs.ErrAllocationFailed)
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
}

func TestRedisCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	a := NewAllocator(NewRedisCounter(client, ""))

	got := allocateN(t, a, MapScope(3, 7), 500)
	assert.Equal(t, seq(1, 500), got)

	v, err := a.Allocate(context.Background(), UserScope())
	require.NoError(t, err)
	assert.Equal(t, int64(10001), v)

	stored, err := mr.Get("fleetstore:seq_map_id:{3,7}")
	require.NoError(t, err)
	assert.Equal(t, "500", stored)
	assert.True(t, mr.Exists("fleetstore:seq_user_id"))
}

func TestRedisCounterUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	_, err := NewAllocator(NewRedisCounter(client, "test:")).Allocate(context.Background(), JobScope())
	assert.ErrorIs(t, err, errs.ErrAllocationFailed)
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
}
