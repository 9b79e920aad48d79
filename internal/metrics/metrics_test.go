package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	EnvelopesSealed.WithLabelValues("json").Add(0) // register the label
	before := testutil.ToFloat64(EnvelopesSealed.WithLabelValues("json"))

	EnvelopesSealed.WithLabelValues("json").Inc()

	after := testutil.ToFloat64(EnvelopesSealed.WithLabelValues("json"))
	assert.Equal(t, before+1, after)
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	h := Handler()
	assert.NotNil(t, h)

	EnvelopesSealed.WithLabelValues("json").Inc()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relaywire_envelope_sealed_total")
}
