package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.RecordSessionCommand("login", "success")
	m.RecordSessionCommand("login", "success")
	m.RecordMessageSent("failure")
	m.RecordSubscriptionError("conversations")
	m.RecordCompletion(250 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionCommandsTotal.WithLabelValues("login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesSentTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubscriptionErrorsTotal.WithLabelValues("conversations")))
}

func TestMetrics_InstancesAreIndependent(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordMessageSent("success")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.MessagesSentTotal.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.MessagesSentTotal.WithLabelValues("success")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordHTTPRequest("GET", "/healthz", "200", time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `gemchat_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordSessionCommand("login", "success")
		m.RecordMessageSent("success")
		m.RecordCompletion(time.Second)
		m.RecordSubscriptionError("messages")
		m.RecordHTTPRequest("GET", "/", "200", time.Second)
	})
	assert.Nil(t, m.Registry())

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
