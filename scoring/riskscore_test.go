package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/fraudkit/core"
)

func TestRiskScorer_Score(t *testing.T) {
	s := DefaultRiskScorer()
	tests := []struct {
		name string
		p    core.ProbabilityVector
		want float64
	}{
		{name: "pure low", p: core.ProbabilityVector{1, 0, 0}, want: 0},
		{name: "pure medium", p: core.ProbabilityVector{0, 1, 0}, want: 50},
		{name: "pure high", p: core.ProbabilityVector{0, 0, 1}, want: 100},
		{name: "mixed", p: core.ProbabilityVector{0.5, 0.3, 0.2}, want: 35},
		{name: "clamped above", p: core.ProbabilityVector{0, 0, 1 + 1e-7}, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.Score(tt.p), 1e-9)
		})
	}
}

func TestRiskScorer_Monotonic(t *testing.T) {
	s := DefaultRiskScorer()
	// 概率质量从低风险向高风险移动时分数不降
	for _, shift := range []func(q float64) core.ProbabilityVector{
		func(q float64) core.ProbabilityVector { return core.ProbabilityVector{1 - q, q, 0} },
		func(q float64) core.ProbabilityVector { return core.ProbabilityVector{0, 1 - q, q} },
		func(q float64) core.ProbabilityVector { return core.ProbabilityVector{1 - q, 0, q} },
	} {
		prev := -1.0
		for i := 0; i <= 10; i++ {
			score := s.Score(shift(float64(i) / 10))
			assert.GreaterOrEqual(t, score, prev)
			prev = score
		}
	}
}

func TestNewRiskScorer(t *testing.T) {
	tests := []struct {
		name    string
		w       [3]float64
		wantErr bool
	}{
		{name: "default", w: [3]float64{0, 0.5, 1}},
		{name: "flat", w: [3]float64{0.2, 0.2, 0.2}},
		{name: "decreasing", w: [3]float64{0, 0.6, 0.5}, wantErr: true},
		{name: "above one", w: [3]float64{0, 0.5, 1.5}, wantErr: true},
		{name: "negative", w: [3]float64{-0.1, 0.5, 1}, wantErr: true},
		{name: "nan", w: [3]float64{0, math.NaN(), 1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewRiskScorer(tt.w[0], tt.w[1], tt.w[2])
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsConfiguration(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.w, s.Weights)
		})
	}
}
