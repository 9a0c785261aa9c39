// ============================================================================
// fleetstore metrics
// ============================================================================
//
// Package: internal/metrics
//
// RED-style metrics for the data-access tier:
//
//   - fleetstore_store_operations_total{op,collection,result}
//   - fleetstore_store_operation_seconds{op}
//   - fleetstore_sequence_allocations_total{scope,result}
//   - fleetstore_read_timeouts_total{op}
//   - fleetstore_rpc_requests_total{method,code}
//   - fleetstore_rpc_seconds{method}
//
// Example queries:
//
//   # allocation failure ratio
//   rate(fleetstore_sequence_allocations_total{result="error"}[5m])
//     / rate(fleetstore_sequence_allocations_total[5m])
//
//   # p95 store latency per operation
//   histogram_quantile(0.95, sum by (le, op) (rate(fleetstore_store_operation_seconds_bucket[5m])))
//
// Exposed on /metrics (default port 9090).
// ============================================================================

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ChuLiYu/fleetstore/internal/errs"
)

// Collector owns every fleetstore metric. A process should create exactly
// one; a second NewCollector on the same registerer panics.
type Collector struct {
	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	allocations  *prometheus.CounterVec
	readTimeouts *prometheus.CounterVec
	rpcRequests  *prometheus.CounterVec
	rpcLatency   *prometheus.HistogramVec
}

// NewCollector creates the collector and registers it with
// prometheus.DefaultRegisterer.
func NewCollector() *Collector {
	c := &Collector{
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetstore_store_operations_total",
			Help: "Document store operations by operation, collection and result",
		}, []string{"op", "collection", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleetstore_store_operation_seconds",
			Help:    "Document store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetstore_sequence_allocations_total",
			Help: "Sequence allocations by scope and result",
		}, []string{"scope", "result"}),
		readTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetstore_read_timeouts_total",
			Help: "Reads abandoned because the deployment timeout elapsed",
		}, []string{"op"}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetstore_rpc_requests_total",
			Help: "RPC requests by method and status code",
		}, []string{"method", "code"}),
		rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleetstore_rpc_seconds",
			Help:    "RPC handling latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	prometheus.MustRegister(c.storeOps)
	prometheus.MustRegister(c.storeLatency)
	prometheus.MustRegister(c.allocations)
	prometheus.MustRegister(c.readTimeouts)
	prometheus.MustRegister(c.rpcRequests)
	prometheus.MustRegister(c.rpcLatency)

	return c
}

// result labels an outcome. Not-found is a normal answer, not a failure.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// RecordStoreOp records one document store call.
func (c *Collector) RecordStoreOp(op, collection string, err error, d time.Duration) {
	c.storeOps.WithLabelValues(op, collection, result(err)).Inc()
	c.storeLatency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordAllocation records one sequence allocation.
func (c *Collector) RecordAllocation(scope string, err error) {
	c.allocations.WithLabelValues(scope, result(err)).Inc()
}

// RecordTimeout records a read abandoned by the deadline.
func (c *Collector) RecordTimeout(op string) {
	c.readTimeouts.WithLabelValues(op).Inc()
}

// RecordRPC records one handled RPC.
func (c *Collector) RecordRPC(method, code string, d time.Duration) {
	c.rpcRequests.WithLabelValues(method, code).Inc()
	c.rpcLatency.WithLabelValues(method).Observe(d.Seconds())
}

// Server serves /metrics until its context is cancelled.
type Server struct {
	srv *http.Server
}

// NewServer returns a metrics HTTP server on port.
func NewServer(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
