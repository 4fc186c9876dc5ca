package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()
	m.RecordRun("completed")
	m.RecordRun("completed")
	m.RecordCompletion("openai", "error")
	m.AddObservers(2)
	m.AddObservers(-1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompletionsTotal.WithLabelValues("openai", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Observers))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveStage("database", "completed", 1500*time.Millisecond)
	m.ObserveArchive(4096)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `appforge_stage_duration_seconds_count{stage="database",status="completed"} 1`)
	assert.Contains(t, string(body), "appforge_archive_bytes_count 1")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRun("failed")
		m.ObserveStage("x", "failed", time.Second)
		m.RecordHTTP("GET", "200")
	})
}
