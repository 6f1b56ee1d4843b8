package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuhub/internal/router"
)

func TestCollector_RouterCounters(t *testing.T) {
	c := newCollector(prometheus.NewRegistry())

	c.Dispatched("synth", router.OutcomeUpdate)
	c.Dispatched("synth", router.OutcomeUpdate)
	c.Dispatched("synth", router.OutcomeDropped)
	c.Stored("synth", "volume", router.Scalar(router.Number(0.8)))
	c.Replayed("synth", 3)
	c.Replayed("synth", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.dispatchTotal.WithLabelValues("synth", "update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dispatchTotal.WithLabelValues("synth", "dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storedTotal.WithLabelValues("synth")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.replayFrames.WithLabelValues("synth")))
}

func TestCollector_ParticipantGauge(t *testing.T) {
	c := newCollector(prometheus.NewRegistry())

	c.ParticipantAdded("tcp")
	c.ParticipantAdded("tcp")
	c.ParticipantAdded("websocket")
	c.ParticipantRemoved("tcp")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.participants.WithLabelValues("tcp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.participants.WithLabelValues("websocket")))
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.Dispatched("lights", router.OutcomeTargeted)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `nuhub_router_dispatch_total{module="lights",outcome="targeted"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
