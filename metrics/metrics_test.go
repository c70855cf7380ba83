package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoring_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewScoring()
	require.NoError(t, m.Register(reg))
	// 同一实例重复注册是幂等的
	require.NoError(t, m.Register(reg))

	// 另一实例的同名指标冲突
	assert.Error(t, NewScoring().Register(reg))
}

func TestScoring_Observe(t *testing.T) {
	m := NewScoring()

	m.ObserveScore("Low", 3.2, []string{"velocity_spike", "transaction_hour"}, time.Millisecond)
	m.ObserveScore("High", 97, nil, time.Millisecond)
	m.ObserveError("SCORING", time.Millisecond)
	m.ObserveBatch(3, 1, time.Second)
	m.ObserveDecision("block")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("SCORING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RiskLevelTotal.WithLabelValues("High")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImputedTotal.WithLabelValues("velocity_spike")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BatchRowsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchRowsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PolicyDecisions.WithLabelValues("block")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ScoreDuration))
}

func TestScoring_NilSafe(t *testing.T) {
	var m *Scoring
	assert.NotPanics(t, func() {
		m.ObserveScore("Low", 1, nil, 0)
		m.ObserveError("SCORING", 0)
		m.ObserveBatch(1, 0, 0)
		m.ObserveDecision("approve")
	})
}
