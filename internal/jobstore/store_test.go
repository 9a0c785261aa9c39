package jobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/fleetstore/internal/docstore"
	"github.com/ChuLiYu/fleetstore/internal/docstore/memory"
	"github.com/ChuLiYu/fleetstore/internal/errs"
	"github.com/ChuLiYu/fleetstore/internal/query"
	"github.com/ChuLiYu/fleetstore/internal/sequence"
	"github.com/ChuLiYu/fleetstore/pkg/types"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	db, err := memory.New()
	require.NoError(t, err)
	alloc := sequence.NewAllocator(sequence.NewStoreCounter(db))
	return New(db, alloc, WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC)), db
}

func ptr[T any](v T) *T { return &v }

// treeJob has a three-level task tree: task -> option job -> task ->
// switch -> sub-task, plus denormalised goal, tag and grab snapshots.
func treeJob(loc, sec, robot int64, status int) *types.Job {
	goal := &types.Goal{GoalID: 5, GoalName: "dock", Pose: &types.Pose{Orientation: types.Quaternion{W: 1}}}
	return &types.Job{
		JobName: "pick", JobStatus: status, LocationID: loc, SectorID: sec, RobotID: robot,
		CreateUser: "ops", JobLock: true,
		JobTasks: []types.JobTask{{
			ID: 1, Name: "move", GoalID: ptr(int64(5)), Goal: goal,
			TagID: ptr(int64(2)), Tag: &types.Tag{TagID: 2, TagName: "A-2", Radius: 0.4},
			SubTasks: []types.SubTask{{SubID: 1, Name: "align", Number: 1.25}},
			Options: []types.Job{{
				JobName: "detour",
				JobTasks: []types.JobTask{{
					ID: 2, Name: "reverse",
					Switch: []types.SwitchTask{{
						Name: "left", Selected: true,
						Tasks: []types.SubTask{{SubID: 9, Name: "turn", Array: []float64{1, 2}}},
					}},
				}},
			}},
			Grab: &types.Grab{Goals: []types.GrabGoal{{Tag: 2, GoalID: 5, Goal: goal}}},
		}},
	}
}

func TestCreateAndFetchTree(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	in := treeJob(3, 7, 1, 0)
	id, err := s.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, id, in.JobID)
	assert.Equal(t, fixedNow.Unix(), in.CreateDate)
	assert.Equal(t, fixedNow.Unix(), in.UpdateDate)

	got, err := s.Fetch(ctx, Filter{JobID: id, FilterType: query.JobFilterByID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, *in, got[0])
	assert.Equal(t, in.NodeCount(), got[0].NodeCount())
	assert.Equal(t, "turn", got[0].JobTasks[0].Options[0].JobTasks[0].Switch[0].Tasks[0].Name)
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		id, err := s.Create(ctx, treeJob(1, 1, 1, 0))
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
}

type brokenCounter struct{}

func (brokenCounter) IncrementAndGet(context.Context, sequence.Scope) (int64, error) {
	return 0, errors.New("counter down")
}

func TestCreateAllocationFailureWritesNothing(t *testing.T) {
	db, err := memory.New()
	require.NoError(t, err)
	s := New(db, sequence.NewAllocator(brokenCounter{}))

	_, err = s.Create(context.Background(), treeJob(1, 1, 1, 0))
	assert.ErrorIs(t, err, errs.ErrAllocationFailed)
	assert.Zero(t, db.Len(query.KindJob.Collection()))
}

func TestUpdateReplacesWholeTree(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	job := treeJob(3, 7, 1, 0)
	id, err := s.Create(ctx, job)
	require.NoError(t, err)

	job.JobTasks = []types.JobTask{{ID: 10, Name: "only", ExecState: types.ExecState{Status: 2, Break: true}}}
	job.JobStatus = 1
	require.NoError(t, s.Update(ctx, job))
	assert.Equal(t, 1, job.UpdateCount)

	require.NoError(t, s.Update(ctx, job))
	assert.Equal(t, 2, job.UpdateCount)

	got, err := s.Fetch(ctx, Filter{JobID: id, FilterType: query.JobFilterByID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].UpdateCount)
	require.Len(t, got[0].JobTasks, 1, "no merge with the previous tree")
	assert.True(t, got[0].JobTasks[0].Break)
	assert.Equal(t, 1, got[0].JobStatus)
}

func TestUpdateAndDeleteNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	missing := &types.Job{JobID: 404}
	err := s.Update(ctx, missing)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Zero(t, missing.UpdateCount, "counter is not advanced on failure")

	assert.ErrorIs(t, s.Delete(ctx, 404), errs.ErrNotFound)

	id, err := s.Create(ctx, treeJob(1, 1, 1, 0))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))
	assert.ErrorIs(t, s.Delete(ctx, id), errs.ErrNotFound)
}

func TestFetchListings(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	statuses := []int{-4, -2, 0, 2, 3, 5}
	for i, st := range statuses {
		j := treeJob(3, 7, int64(i%2+1), st)
		j.JobStarted = fixedNow.Add(time.Duration(i) * time.Hour).Unix()
		j.JobFinished = j.JobStarted + 60
		j.JobOrder = len(statuses) - i
		_, err := s.Create(ctx, j)
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, treeJob(9, 9, 1, 0))
	require.NoError(t, err)

	jobIDs := func(jobs []types.Job) []int64 {
		out := make([]int64, len(jobs))
		for i, j := range jobs {
			out[i] = j.JobID
		}
		return out
	}

	t.Run("active", func(t *testing.T) {
		got, err := s.Fetch(ctx, Filter{LocationID: 3, SectorID: 7, FilterType: query.JobFilterActive})
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 3, 4}, jobIDs(got))
		for _, j := range got {
			assert.True(t, types.IsActiveStatus(j.JobStatus))
		}
	})

	t.Run("finished in range", func(t *testing.T) {
		got, err := s.Fetch(ctx, Filter{
			LocationID: 3, SectorID: 7, FilterType: query.JobFilterDateRange,
			From: fixedNow.Add(time.Hour).Unix(), To: fixedNow.Unix(),
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 5, 6}, jobIDs(got))
	})

	t.Run("by robot sorted desc with window", func(t *testing.T) {
		got, err := s.Fetch(ctx, Filter{
			LocationID: 3, SectorID: 7, RobotID: 1, JobStatus: 3, FilterType: query.JobFilterByRobot,
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{5}, jobIDs(got))

		all, err := s.Fetch(ctx, Filter{
			LocationID: 3, SectorID: 7, SortType: query.JobSortID, OrderType: query.OrderDesc, Offset: 1, Limit: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{5, 4}, jobIDs(all))
	})

	t.Run("empty result", func(t *testing.T) {
		got, err := s.Fetch(ctx, Filter{LocationID: 100, SectorID: 100})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

// cancelAfterFirst cancels the fetch context once the first job is decoded.
type cancelAfterFirst struct {
	docstore.Store
	cancel context.CancelFunc
}

func (c *cancelAfterFirst) Find(ctx context.Context, coll string, spec query.Spec) (docstore.Cursor, error) {
	cur, err := c.Store.Find(ctx, coll, spec)
	if err != nil {
		return nil, err
	}
	return &cancellingCursor{Cursor: cur, cancel: c.cancel}, nil
}

type cancellingCursor struct {
	docstore.Cursor
	cancel context.CancelFunc
}

func (c *cancellingCursor) Decode(v any) error {
	err := c.Cursor.Decode(v)
	c.cancel()
	return err
}

func TestFetchCancelledMidStreamIsAnError(t *testing.T) {
	seeded, db := newTestStore(t)
	for i := 0; i < 5; i++ {
		_, err := seeded.Create(context.Background(), treeJob(3, 7, 1, 0))
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(&cancelAfterFirst{Store: db, cancel: cancel}, sequence.NewAllocator(sequence.NewStoreCounter(db)))

	jobs, err := s.Fetch(ctx, Filter{LocationID: 3, SectorID: 7})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, jobs, "no partial listing")
}

func TestUpdateCountFollowsCallerCopy(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	job := treeJob(1, 1, 1, 0)
	id, err := s.Create(ctx, job)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Update(ctx, job))
	}
	assert.Equal(t, 3, job.UpdateCount)

	stale := treeJob(1, 1, 1, 0)
	stale.JobID = id
	require.NoError(t, s.Update(ctx, stale))

	got, err := s.Fetch(ctx, Filter{JobID: id, FilterType: query.JobFilterByID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].UpdateCount, "last writer's count wins, even when lower")
}
