// Package server exposes the job store and the sequence allocator as the
// backend_api.BackendApiService gRPC service.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/ChuLiYu/fleetstore/internal/errs"
	"github.com/ChuLiYu/fleetstore/internal/jobstore"
	"github.com/ChuLiYu/fleetstore/internal/query"
	"github.com/ChuLiYu/fleetstore/internal/sequence"
)

// Server implements BackendAPIServer.
type Server struct {
	jobs   jobstore.Repository
	alloc  *sequence.Allocator
	loc    *time.Location
	logger *slog.Logger
}

var _ BackendAPIServer = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithLocation sets the zone request dates are read in. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) { s.loc = loc }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a Server.
func New(jobs jobstore.Repository, alloc *sequence.Allocator, opts ...Option) *Server {
	s := &Server{jobs: jobs, alloc: alloc, loc: time.Local, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewGRPCServer builds a grpc.Server with the backend API and the standard
// health service registered. Interceptors run in the order given.
func NewGRPCServer(srv BackendAPIServer, interceptors ...grpc.UnaryServerInterceptor) (*grpc.Server, *health.Server) {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	RegisterBackendAPIServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}

func (s *Server) GetJob(ctx context.Context, req *GetJobRequest) (*GetJobResponse, error) {
	from, err := query.ParseDate(req.JobFromDate, s.loc)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	to, err := query.ParseDate(req.JobToDate, s.loc)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	jobs, err := s.jobs.Fetch(ctx, jobstore.Filter{
		LocationID: req.LocationID,
		SectorID:   req.SectorID,
		RobotID:    req.RobotID,
		JobID:      req.JobID,
		JobStatus:  req.JobStatus,
		From:       from,
		To:         to,
		FilterType: req.FilterType,
		SortType:   req.SortType,
		OrderType:  req.OrderType,
		Offset:     req.FetchOffset,
		Limit:      req.FetchLimit,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetJobResponse{Jobs: jobs}, nil
}

func (s *Server) AddJob(ctx context.Context, req *AddJobRequest) (*AddJobResponse, error) {
	id, err := s.jobs.Create(ctx, &req.Job)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AddJobResponse{JobID: id}, nil
}

func (s *Server) UpdateJob(ctx context.Context, req *UpdateJobRequest) (*UpdateJobResponse, error) {
	if err := s.jobs.Update(ctx, &req.Job); err != nil {
		return nil, toStatus(err)
	}
	return &UpdateJobResponse{UpdateCount: req.Job.UpdateCount}, nil
}

func (s *Server) DeleteJob(ctx context.Context, req *DeleteJobRequest) (*DeleteJobResponse, error) {
	if err := s.jobs.Delete(ctx, req.JobID); err != nil {
		return nil, toStatus(err)
	}
	return &DeleteJobResponse{}, nil
}

func (s *Server) NextSequence(ctx context.Context, req *NextSequenceRequest) (*NextSequenceResponse, error) {
	scope, ok := sequence.ParseScope(req.Scope, req.IDs...)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown sequence scope %q with %d ids", req.Scope, len(req.IDs))
	}
	v, err := s.alloc.Allocate(ctx, scope)
	if err != nil {
		return nil, toStatus(err)
	}
	return &NextSequenceResponse{Value: v}, nil
}

// toStatus maps the error taxonomy onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, errs.ErrTimeout):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
