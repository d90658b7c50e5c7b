package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_ServesMetricsAndHealth(t *testing.T) {
	ObserveIntake(IntakeAccepted)
	ObserveAnalysis(AnalysisSucceeded, 1500*time.Millisecond)
	ObserveChatTurn(ChatFallback)

	ts := httptest.NewServer(NewRouter())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", string(body))

	res, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	assert.Contains(t, string(body), `skinalyzer_intake_total{result="accepted"}`)
	assert.Contains(t, string(body), `skinalyzer_analysis_total{outcome="succeeded"}`)
	assert.Contains(t, string(body), `skinalyzer_chat_turns_total{outcome="fallback"}`)
	assert.Contains(t, string(body), "skinalyzer_analysis_duration_seconds_bucket")
}
