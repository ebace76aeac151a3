package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func createTestMetrics() *Metrics {
	return New("test", prometheus.NewRegistry())
}

func TestRecordHTTPRequest(t *testing.T) {
	m := createTestMetrics()

	m.RecordHTTPRequest("GET", "/api/v1/projects", 200, 20*time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/v1/projects", 200, 40*time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/v1/projects", 403, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/projects", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/projects", "403")))
}

func TestRealtimeMetrics(t *testing.T) {
	m := createTestMetrics()

	m.SetRealtime(3, 2)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveRooms))

	m.RecordPublish("task_updated", 2)
	m.RecordPublish("task_updated", 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("task_updated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventDeliveries.WithLabelValues("task_updated")))

	m.RecordDrop(DropQueueFull)
	m.RecordDrop(DropClosed)
	m.RecordDrop(DropClosed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesDropped.WithLabelValues(DropQueueFull)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesDropped.WithLabelValues(DropClosed)))
}

func TestStoreMetrics(t *testing.T) {
	m := createTestMetrics()

	m.RecordStoreConflict("task")
	m.SetBreakerState("postgres", 2)
	m.RecordRateLimited("create")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreConflictsTotal.WithLabelValues("task")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreBreakerState.WithLabelValues("postgres")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal.WithLabelValues("create")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
		m.SetRealtime(1, 1)
		m.RecordPublish("comment_added", 1)
		m.RecordDrop(DropClosed)
		m.RecordStoreConflict("project")
		m.SetBreakerState("memory", 0)
		m.RecordRateLimited("api")
	})
}
