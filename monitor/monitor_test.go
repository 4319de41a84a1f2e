package monitor

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMonitor("gomoku_test")

	m.IncMatchesCreated()
	m.IncMatchesCreated()
	m.IncMoves()
	m.SetActiveMatches(3)
	m.IncOutcome("win", "five")
	m.IncOpError("move", "cell_occupied")
	m.IncOpError("move", "cell_occupied")
	m.ObserveOpLatency("move", 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.metrics.MatchesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.MovesPlayed))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.metrics.ActiveMatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.MatchOutcomes.WithLabelValues("win", "five")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.metrics.OpErrors.WithLabelValues("move", "cell_occupied")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.metrics.OpLatency))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// 同名指标注册到不同 registry 不冲突
	a := NewMetrics("gomoku", prometheus.NewRegistry())
	b := NewMetrics("gomoku", prometheus.NewRegistry())
	a.MovesPlayed.Inc()
	assert.Zero(t, testutil.ToFloat64(b.MovesPlayed))
}

func TestMonitor_NilIsNoop(t *testing.T) {
	var m *Monitor
	assert.NotPanics(t, func() {
		m.SetActiveMatches(1)
		m.IncMatchesCreated()
		m.IncMoves()
		m.IncOutcome("draw", "board_full")
		m.IncOpError("move", "transient")
		m.ObserveOpLatency("move", time.Millisecond)
	})
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor("gomoku_test")
	m.IncMoves()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "gomoku_test_moves_total 1"))
	assert.True(t, strings.Contains(string(body), "gomoku_test_uptime_seconds"))
}
