package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.SessionsActive.Inc()
	m.SessionsCreated.Inc()
	m.StepsOpened.WithLabelValues("tool").Inc()
	m.StepsClosed.WithLabelValues("tool", "succeeded").Inc()
	m.Messages.WithLabelValues("assistant").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsOpened.WithLabelValues("tool")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsClosed.WithLabelValues("tool", "succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Messages.WithLabelValues("assistant")))

	m.SessionsActive.Dec()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionsActive))
}

func TestMetrics_IsolatedRegistries(t *testing.T) {
	// Two instances never share state
	a := New()
	b := New()

	a.StopSignals.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.StopSignals))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.StopSignals))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.HookErrors.WithLabelValues("message").Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `chainlit_hook_errors_total{hook="message"} 1`)
}
