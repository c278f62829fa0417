package observability

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/slidedeck-backend/internal/platform/filestore"
)

func TestObserveStoreOp(t *testing.T) {
	m := NewMetrics()

	m.ObserveStoreOp("save_template", filestore.CategoryTemplate, nil, 128, time.Millisecond)
	m.ObserveStoreOp("save_template", filestore.CategoryTemplate, errors.New("boom"), 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOps.WithLabelValues("save_template", "template", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOps.WithLabelValues("save_template", "template", "error")))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.storeBytes.WithLabelValues("template")))
}

func TestMetricsHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("GET", "/healthcheck", "200", 5*time.Millisecond)
	m.IncInconsistency("missing_file")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `slidedeck_api_requests_total{method="GET",route="/healthcheck",status="200"} 1`))
	assert.True(t, strings.Contains(body, `slidedeck_store_inconsistencies_total{kind="missing_file"} 1`))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ApiInflightInc()
	m.ApiInflightDec()
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.ObserveStoreOp("x", "", nil, 0, 0)
	m.IncInconsistency("x")
}

func TestParseHeaders(t *testing.T) {
	assert.Nil(t, ParseHeaders(""))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, ParseHeaders("a=1, b=2,bad,=x"))
}
