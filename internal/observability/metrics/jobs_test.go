package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newJobMetrics(reg, Config{ServiceName: "orderfacts-test", Environment: "test"})

	m.IncJobRun("dedup")
	m.IncJobRun("dedup")
	m.ObserveJobDuration("dedup", 250*time.Millisecond)
	m.AddOrdersVoided(3)
	m.AddRowsCorrected("sequence", 10)
	m.IncChunkCommitted("sequence")
	m.AddUnresolved("sequence", "no_start_time", 2)
	m.IncJobTimeout("verify")
	m.IncJobError("verify", context.DeadlineExceeded)

	if got := testutil.ToFloat64(m.jobRuns.WithLabelValues("dedup")); got != 2 {
		t.Fatalf("job runs: got %v", got)
	}
	if got := testutil.ToFloat64(m.ordersVoided); got != 3 {
		t.Fatalf("orders voided: got %v", got)
	}
	if got := testutil.ToFloat64(m.rowsCorrected.WithLabelValues("sequence")); got != 10 {
		t.Fatalf("rows corrected: got %v", got)
	}
	if got := testutil.ToFloat64(m.chunksCommitted.WithLabelValues("sequence")); got != 1 {
		t.Fatalf("chunks committed: got %v", got)
	}
	if got := testutil.ToFloat64(m.unresolvedRows.WithLabelValues("sequence", "no_start_time")); got != 2 {
		t.Fatalf("unresolved rows: got %v", got)
	}
	if got := testutil.ToFloat64(m.jobTimeouts.WithLabelValues("verify")); got != 1 {
		t.Fatalf("job timeouts: got %v", got)
	}
	if got := testutil.ToFloat64(m.jobErrors.WithLabelValues("verify", JobErrorReasonDeadlineExceeded)); got != 1 {
		t.Fatalf("job errors: got %v", got)
	}
}

func TestJobMetricsNegativeAndZeroAddsIgnored(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newJobMetrics(reg, Config{})

	m.AddRowsCorrected("sequence", 0)
	m.AddRowsCorrected("sequence", -5)
	m.AddOrdersVoided(0)
	m.AddUnresolved("sequence", "no_start_time", -1)

	if got := testutil.ToFloat64(m.rowsCorrected.WithLabelValues("sequence")); got != 0 {
		t.Fatalf("rows corrected: got %v", got)
	}
	if got := testutil.ToFloat64(m.ordersVoided); got != 0 {
		t.Fatalf("orders voided: got %v", got)
	}
}

func TestNilJobMetricsSafe(t *testing.T) {
	var m *JobMetrics

	m.IncJobRun("dedup")
	m.ObserveJobDuration("dedup", time.Second)
	m.IncJobTimeout("dedup")
	m.IncJobError("dedup", errors.New("boom"))
	m.AddRowsCorrected("dedup", 1)
	m.AddOrdersVoided(1)
	m.IncChunkCommitted("dedup")
	m.AddUnresolved("dedup", "reason", 1)
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, JobErrorReasonUnknown},
		{context.DeadlineExceeded, JobErrorReasonDeadlineExceeded},
		{context.Canceled, JobErrorReasonDeadlineExceeded},
		{fmt.Errorf("job: %w", context.DeadlineExceeded), JobErrorReasonDeadlineExceeded},
		{errors.New("sql: connection is already closed"), JobErrorReasonDB},
		{errors.New("database is locked"), JobErrorReasonDB},
		{errors.New("boom"), JobErrorReasonUnknown},
	}
	for _, tc := range cases {
		if got := classifyError(tc.err); got != tc.want {
			t.Fatalf("classifyError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestJobsSingletonIdentity(t *testing.T) {
	a := Jobs()
	b := JobsWithConfig(Config{ServiceName: "ignored-after-first-call"})
	if a != b {
		t.Fatal("expected the same registry instance")
	}
}
