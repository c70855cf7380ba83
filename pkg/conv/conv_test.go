package conv

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFeatureValue(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    float64
		outcome Outcome
	}{
		{name: "float64", in: 450.0, want: 450, outcome: Valid},
		{name: "int", in: 2, want: 2, outcome: Valid},
		{name: "uint8", in: uint8(7), want: 7, outcome: Valid},
		{name: "bool true", in: true, want: 1, outcome: Valid},
		{name: "json number", in: json.Number("12.5"), want: 12.5, outcome: Valid},
		{name: "numeric string", in: " 75 ", want: 75, outcome: Valid},
		{name: "nil", in: nil, outcome: Missing},
		{name: "NaN", in: math.NaN(), outcome: Missing},
		{name: "empty string", in: "", outcome: Missing},
		{name: "nan marker", in: "NaN", outcome: Missing},
		{name: "null marker", in: "NULL", outcome: Missing},
		{name: "positive inf", in: math.Inf(1), outcome: Invalid},
		{name: "inf string", in: "Inf", outcome: Invalid},
		{name: "word", in: "abc", outcome: Invalid},
		{name: "slice", in: []string{"a"}, outcome: Invalid},
		{name: "map", in: map[string]any{"a": 1}, outcome: Invalid},
		{name: "bad json number", in: json.Number("x"), outcome: Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, outcome := ToFeatureValue(tt.in)
			assert.Equal(t, tt.outcome, outcome)
			if tt.outcome == Valid {
				assert.InDelta(t, tt.want, got, 1e-12)
			}
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "missing", Missing.String())
	assert.Equal(t, "invalid", Invalid.String())
}
