package jobstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/ChuLiYu/fleetstore/internal/errs"
	"github.com/ChuLiYu/fleetstore/pkg/types"
)

// TimeoutRecorder observes reads abandoned by the deadline.
type TimeoutRecorder interface {
	RecordTimeout(op string)
}

// Service bounds reads by a fixed per-deployment timeout.
//
// When the timer fires first the caller gets errs.ErrTimeout, but the
// underlying read is not cancelled: it keeps running detached from the
// caller's context and its result is dropped. Mutations are not raced and
// pass straight through.
type Service struct {
	repo     Repository
	timeout  time.Duration
	recorder TimeoutRecorder
}

var _ Repository = (*Service)(nil)

// NewService wraps repo. A non-positive timeout disables the race. rec may
// be nil.
func NewService(repo Repository, timeout time.Duration, rec TimeoutRecorder) *Service {
	return &Service{repo: repo, timeout: timeout, recorder: rec}
}

type fetchResult struct {
	jobs []types.Job
	err  error
}

func (s *Service) Fetch(ctx context.Context, f Filter) ([]types.Job, error) {
	if s.timeout <= 0 {
		return s.repo.Fetch(ctx, f)
	}

	done := make(chan fetchResult, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		jobs, err := s.repo.Fetch(detached, f)
		done <- fetchResult{jobs, err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.jobs, r.err
	case <-timer.C:
		slog.Warn("job fetch timed out", "timeout", s.timeout, "filter_type", f.FilterType)
		if s.recorder != nil {
			s.recorder.RecordTimeout("fetch_jobs")
		}
		return nil, errs.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) Create(ctx context.Context, job *types.Job) (int64, error) {
	return s.repo.Create(ctx, job)
}

func (s *Service) Update(ctx context.Context, job *types.Job) error {
	return s.repo.Update(ctx, job)
}

func (s *Service) Delete(ctx context.Context, jobID int64) error {
	return s.repo.Delete(ctx, jobID)
}
