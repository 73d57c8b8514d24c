package observability

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestExecutorMetricsRecordOutcomes(t *testing.T) {
	m := Executor()
	before := testutil.ToFloat64(m.transactions.WithLabelValues("failed", "AmountMismatch"))
	m.RecordTransaction(false, "AmountMismatch", time.Millisecond, time.Unix(10, 0))
	require.Equal(t, before+1, testutil.ToFloat64(m.transactions.WithLabelValues("failed", "AmountMismatch")))

	m.RecordTransaction(true, "", time.Millisecond, time.Unix(1_700_000_000, 0))
	require.Equal(t, float64(1_700_000_000), testutil.ToFloat64(m.lastCommit))

	m.RecordInstruction("", true)
	require.GreaterOrEqual(t, testutil.ToFloat64(m.instructions.WithLabelValues("unknown", "ok")), float64(1))
}

func TestModuleMetricsCountsErrors(t *testing.T) {
	m := ModuleMetrics()
	before := testutil.ToFloat64(m.errors.WithLabelValues("api", "GET", "404"))
	m.Observe("api", "GET", http.StatusNotFound, time.Millisecond)
	m.Observe("api", "GET", http.StatusOK, time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(m.errors.WithLabelValues("api", "GET", "404")))
}

func TestNilRegistriesAreNoops(t *testing.T) {
	var exec *ExecutorMetrics
	exec.RecordTransaction(true, "", time.Second, time.Now())
	exec.RecordInstruction("token", false)

	var events *eventMetrics
	events.RecordEvent("loan.initialized")
	events.RecordDropped()

	var api *moduleMetrics
	api.Observe("api", "GET", http.StatusOK, time.Second)
	api.RecordThrottle("api", "rate")
}
