package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/fleetstore/internal/errs"
)

func TestNewCollector(t *testing.T) {
	// Reset Prometheus registry to avoid duplicate registration
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector := NewCollector()

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.storeOps)
	assert.NotNil(t, collector.storeLatency)
	assert.NotNil(t, collector.allocations)
	assert.NotNil(t, collector.readTimeouts)
	assert.NotNil(t, collector.rpcRequests)
	assert.NotNil(t, collector.rpcLatency)
}

func TestRecordStoreOp(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	c := NewCollector()

	c.RecordStoreOp("find", "t_job", nil, time.Millisecond)
	c.RecordStoreOp("find", "t_job", nil, 2*time.Millisecond)
	c.RecordStoreOp("replace", "t_job", fmt.Errorf("wrapped: %w", errs.ErrNotFound), time.Millisecond)
	c.RecordStoreOp("insert", "t_job", errs.Wrap(errs.ErrStoreUnavailable, errors.New("dial")), time.Millisecond)
	c.RecordStoreOp("insert", "t_job", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.storeOps.WithLabelValues("find", "t_job", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeOps.WithLabelValues("replace", "t_job", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeOps.WithLabelValues("insert", "t_job", "unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeOps.WithLabelValues("insert", "t_job", "error")))
	assert.Equal(t, 3, testutil.CollectAndCount(c.storeLatency))
}

func TestRecordAllocationAndTimeout(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	c := NewCollector()

	c.RecordAllocation("seq_job_id", nil)
	c.RecordAllocation("seq_job_id", errs.ErrAllocationFailed)
	c.RecordTimeout("fetch_jobs")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.allocations.WithLabelValues("seq_job_id", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.allocations.WithLabelValues("seq_job_id", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.readTimeouts.WithLabelValues("fetch_jobs")))
}

func TestConcurrentMetricUpdates(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordRPC("/backend_api.BackendApiService/GetJob", "OK", time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100.0, testutil.ToFloat64(c.rpcRequests.WithLabelValues("/backend_api.BackendApiService/GetJob", "OK")))
}

func TestCollectorIsolation(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector1 := NewCollector()
	require.NotNil(t, collector1)

	// A process should have only one collector.
	assert.Panics(t, func() {
		NewCollector()
	}, "Creating a second collector should panic due to duplicate registration")
}

func TestServerStopsOnCancel(t *testing.T) {
	srv := NewServer(0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
