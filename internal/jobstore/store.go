// Package jobstore persists Job documents, each carrying its whole task tree,
// and answers filtered listings built by the query package.
package jobstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ChuLiYu/fleetstore/internal/docstore"
	"github.com/ChuLiYu/fleetstore/internal/query"
	"github.com/ChuLiYu/fleetstore/internal/sequence"
	"github.com/ChuLiYu/fleetstore/pkg/types"
)

// Repository is the job persistence contract consumed by the RPC layer.
type Repository interface {
	Fetch(ctx context.Context, f Filter) ([]types.Job, error)
	Create(ctx context.Context, job *types.Job) (int64, error)
	Update(ctx context.Context, job *types.Job) error
	Delete(ctx context.Context, jobID int64) error
}

// Filter carries the raw listing parameters of a job fetch. The integer
// discriminants are interpreted by query.Build; see the Job* constants there.
type Filter struct {
	LocationID int64
	SectorID   int64
	RobotID    int64
	JobID      int64
	JobStatus  int

	// Epoch seconds. To is normalised to the end of its day.
	From int64
	To   int64

	FilterType int
	SortType   int
	OrderType  int

	Offset int64
	Limit  int64
}

func (f Filter) params(loc *time.Location) query.Params {
	return query.Params{
		LocationID: f.LocationID,
		SectorID:   f.SectorID,
		RobotID:    f.RobotID,
		ID:         f.JobID,
		Status:     f.JobStatus,
		From:       f.From,
		To:         f.To,
		Location:   loc,
		FilterType: f.FilterType,
		SortType:   f.SortType,
		OrderType:  f.OrderType,
		Offset:     f.Offset,
		Limit:      f.Limit,
	}
}

var _ Repository = (*Store)(nil)

// Store implements Repository over a docstore.Store.
type Store struct {
	db     docstore.Store
	alloc  *sequence.Allocator
	coll   string
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithClock replaces time.Now for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the time zone used to normalise to-dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithCollection overrides the job collection name.
func WithCollection(name string) Option {
	return func(s *Store) { s.coll = name }
}

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func New(db docstore.Store, alloc *sequence.Allocator, opts ...Option) *Store {
	s := &Store{
		db:     db,
		alloc:  alloc,
		coll:   query.KindJob.Collection(),
		now:    time.Now,
		loc:    time.Local,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func byID(id int64) query.Cond {
	return query.Eq("job_id", id)
}

// Fetch returns the jobs matching f in the requested order. An empty result
// is an empty slice and a nil error.
func (s *Store) Fetch(ctx context.Context, f Filter) ([]types.Job, error) {
	spec := query.Build(query.KindJob, f.params(s.loc))

	cur, err := s.db.Find(ctx, s.coll, spec)
	if err != nil {
		return nil, fmt.Errorf("jobstore: fetch: %w", err)
	}
	defer cur.Close(ctx)

	jobs := make([]types.Job, 0)
	for cur.Next(ctx) {
		var j types.Job
		if err := cur.Decode(&j); err != nil {
			return nil, fmt.Errorf("jobstore: decode job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("jobstore: fetch cursor: %w", err)
	}

	s.logger.Debug("jobs fetched", "filter_type", f.FilterType, "count", len(jobs))
	return jobs, nil
}

// Create assigns job a fresh id from the global job scope, stamps the audit
// dates and inserts the whole tree. job is updated in place. When the id
// cannot be allocated nothing is written.
func (s *Store) Create(ctx context.Context, job *types.Job) (int64, error) {
	id, err := s.alloc.Allocate(ctx, sequence.JobScope())
	if err != nil {
		return 0, fmt.Errorf("jobstore: create: %w", err)
	}

	now := s.now().Unix()
	job.JobID = id
	job.CreateDate = now
	job.UpdateDate = now

	if err := s.db.Insert(ctx, s.coll, job); err != nil {
		return 0, fmt.Errorf("jobstore: create job %d: %w", id, err)
	}
	s.logger.Info("job created", "job_id", id, "location_id", job.LocationID, "sector_id", job.SectorID, "nodes", job.NodeCount())
	return id, nil
}

// Update replaces the stored document with job, keyed by job_id only. The
// update date is refreshed and the edit counter incremented before writing.
// Concurrent updates of one job are last-writer-wins. Returns
// errs.ErrNotFound when no job has that id.
//
// UpdateCount is taken from job, not from the stored document, so a caller
// holding a stale or zero count moves the stored counter backwards.
func (s *Store) Update(ctx context.Context, job *types.Job) error {
	job.UpdateDate = s.now().Unix()
	job.UpdateCount++

	if err := s.db.Replace(ctx, s.coll, byID(job.JobID), job); err != nil {
		job.UpdateCount--
		return fmt.Errorf("jobstore: update job %d: %w", job.JobID, err)
	}
	s.logger.Info("job updated", "job_id", job.JobID, "update_count", job.UpdateCount)
	return nil
}

// Delete removes the job with jobID. Returns errs.ErrNotFound when no job
// has that id.
func (s *Store) Delete(ctx context.Context, jobID int64) error {
	if err := s.db.Delete(ctx, s.coll, byID(jobID)); err != nil {
		return fmt.Errorf("jobstore: delete job %d: %w", jobID, err)
	}
	s.logger.Info("job deleted", "job_id", jobID)
	return nil
}
