package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgmax(t *testing.T) {
	tests := []struct {
		name string
		p    ProbabilityVector
		want RiskLevel
	}{
		{name: "clear low", p: ProbabilityVector{0.8, 0.15, 0.05}, want: RiskLow},
		{name: "clear medium", p: ProbabilityVector{0.2, 0.7, 0.1}, want: RiskMedium},
		{name: "clear high", p: ProbabilityVector{0.1, 0.2, 0.7}, want: RiskHigh},
		{name: "low medium tie", p: ProbabilityVector{0.5, 0.5, 0}, want: RiskMedium},
		{name: "medium high tie", p: ProbabilityVector{0.2, 0.4, 0.4}, want: RiskHigh},
		{name: "three way tie", p: ProbabilityVector{1.0 / 3, 1.0 / 3, 1.0 / 3}, want: RiskHigh},
		{name: "within tolerance", p: ProbabilityVector{0.5 + 1e-10, 0.5 - 1e-10, 0}, want: RiskMedium},
		{name: "beyond tolerance", p: ProbabilityVector{0.5 + 1e-6, 0.5 - 1e-6, 0}, want: RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Argmax())
			assert.Equal(t, tt.p.Of(tt.want), tt.p.Max())
		})
	}
}

func TestProbabilityVector_Validate(t *testing.T) {
	assert.NoError(t, ProbabilityVector{0.2, 0.3, 0.5}.Validate(SumTolerance))
	assert.NoError(t, ProbabilityVector{0.2, 0.3, 0.5 + 1e-8}.Validate(SumTolerance))

	for _, p := range []ProbabilityVector{
		{0.2, 0.3, 0.4},
		{-0.1, 0.6, 0.5},
		{math.NaN(), 0.5, 0.5},
		{math.Inf(1), 0, 0},
	} {
		assert.Error(t, p.Validate(SumTolerance), "%v", p)
	}
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, []RiskLevel{RiskLow, RiskMedium, RiskHigh}, RiskLevels())
	assert.False(t, RiskLow.Flagged())
	assert.True(t, RiskMedium.Flagged())
	assert.True(t, RiskHigh.Flagged())
	assert.Equal(t, "RiskLevel(7)", RiskLevel(7).String())

	l, err := ParseRiskLevel("hIGh")
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, l)
	_, err = ParseRiskLevel("critical")
	assert.Error(t, err)

	b, err := json.Marshal(map[string]RiskLevel{"level": RiskMedium})
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":"Medium"}`, string(b))

	var out struct{ Level RiskLevel }
	require.NoError(t, json.Unmarshal([]byte(`{"Level":"low"}`), &out))
	assert.Equal(t, RiskLow, out.Level)
	assert.Error(t, json.Unmarshal([]byte(`{"Level":"extreme"}`), &out))

	_, err = RiskLevel(-1).MarshalText()
	assert.Error(t, err)
}

func TestDomainError(t *testing.T) {
	cause := errors.New("overflow")
	err := fmt.Errorf("score row 3: %w", NewScoringError(ModuleModel, cause, "specialist %s failed", "velocity"))

	assert.True(t, IsDomainError(err))
	assert.True(t, IsScoring(err))
	assert.True(t, IsRowRecoverable(err))
	assert.False(t, IsConfiguration(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "score row 3: specialist velocity failed: overflow", err.Error())

	de := GetDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, ModuleModel, de.Module)

	fc := NewFeatureContractError("merchant_risk_score")
	assert.True(t, IsFeatureContract(fc))
	assert.False(t, IsRowRecoverable(fc))
	assert.Equal(t, "merchant_risk_score", fc.Feature)

	assert.True(t, IsValidation(NewValidationError(ModuleFeature, "bad %d", 1)))
	assert.True(t, IsRowRecoverable(NewValidationError(ModuleFeature, "bad")))
	assert.Equal(t, "x", NewDomainError(ModuleStats, ErrorCodeScoring, "x").Error())

	assert.Nil(t, GetDomainError(errors.New("plain")))
	assert.False(t, IsScoring(nil))
}
