package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("org_id", "123"),
		attribute.String("user_id", "456"),
		attribute.String("resource", "calls"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("org_id"), attrs[0].Key)
	assert.Equal(t, attribute.Key("resource"), attrs[1].Key)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordSyncRun(t.Context(), "calls", "completed", 3)
	m.RecordAuthzDenied(t.Context(), "org.read", "not_member")

	var s *SyncMetrics
	s.Observe("calls", "completed", 1, time.Second, time.Now())
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "test"}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordSyncRun(t.Context(), "calls", "completed", 10)
}

func TestSyncMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := newSyncMetrics(reg)
	require.NoError(t, err)

	m.Observe("calls", "completed", 4, 2*time.Second, time.Unix(1700000000, 0))
	m.Observe("calls", "failed", 0, time.Second, time.Unix(1700000100, 0))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("calls", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("calls", "failed")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.records.WithLabelValues("calls")))
	assert.Equal(t, float64(1700000100), testutil.ToFloat64(m.lastRunAt.WithLabelValues("calls")))
}

func TestGinMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := newHTTPMetrics(reg)
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/api/calls/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/calls/42", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("/api/calls/:id", "GET", "204")))
}
