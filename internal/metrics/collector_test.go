package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordRun(t *testing.T) {
	c := NewCollector("test")

	c.RecordRun("inproc", "ok", 20*time.Millisecond, 1500, 1)
	c.RecordRun("inproc", "ok", 10*time.Millisecond, 200, 0)
	c.RecordRun("inproc", "Timeout", 5*time.Second, 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("Timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.artifactsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(c.runDuration))
}

func TestCollector_RecordValidation(t *testing.T) {
	c := NewCollector("test")

	c.RecordValidation(true, "")
	c.RecordValidation(false, "import")
	c.RecordValidation(false, "import")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.validationTotal.WithLabelValues("accepted", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.validationTotal.WithLabelValues("rejected", "import")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("pygate")
	c.RecordHTTPRequest(http.MethodPost, "/api/execute", http.StatusOK, 30*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `pygate_http_requests_total{method="POST",route="/api/execute",status="200"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
