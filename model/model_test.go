package model_test

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/model"
)

func sum(p core.ProbabilityVector) float64 { return p[0] + p[1] + p[2] }

func TestBuild_UnknownType(t *testing.T) {
	_, err := model.Build(json.RawMessage(`{"type":"xgboost_native"}`), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported model type")

	_, err = model.Build(json.RawMessage(`not json`), 3)
	require.Error(t, err)
}

func TestSupportedTypes(t *testing.T) {
	assert.Equal(t, []string{"forest", "gbdt", "logistic", "rpc"}, model.SupportedTypes())
}

func TestLogistic(t *testing.T) {
	spec := `{"type":"logistic","coefficients":[[-1,0],[0,0],[1,0]],"intercepts":[0,0,0]}`
	m, err := model.Build(json.RawMessage(spec), 2)
	require.NoError(t, err)
	assert.Equal(t, "logistic", m.Name())

	tests := []struct {
		name string
		x    []float64
		want core.RiskLevel
	}{
		{name: "negative input is low", x: []float64{-3, 100}, want: core.RiskLow},
		{name: "positive input is high", x: []float64{3, -100}, want: core.RiskHigh},
		{name: "zero input is uniform and ties toward high", x: []float64{0, 0}, want: core.RiskHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := m.Predict(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, sum(p), 1e-12)
			assert.Equal(t, tt.want, p.Argmax())
		})
	}

	_, err = m.Predict([]float64{1})
	assert.Error(t, err, "wrong width")
}

func TestLogistic_Overflow(t *testing.T) {
	spec := `{"type":"logistic","coefficients":[[-8],[0],[8]],"intercepts":[4,0,-4]}`
	m, err := model.Build(json.RawMessage(spec), 1)
	require.NoError(t, err)

	_, err = m.Predict([]float64{1e308})
	assert.ErrorIs(t, err, model.ErrNonFinite)

	// 大但有限的输入经过数值稳定的 softmax 不应溢出
	p, err := m.Predict([]float64{1e5})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p[core.RiskHigh], 1e-12)
}

func TestLogistic_BadSpec(t *testing.T) {
	specs := []string{
		`{"type":"logistic","coefficients":[[1],[1]],"intercepts":[0,0,0]}`,
		`{"type":"logistic","coefficients":[[1],[1],[1]],"intercepts":[0,0]}`,
		`{"type":"logistic","coefficients":[[1,2],[1],[1]],"intercepts":[0,0,0]}`,
	}
	for _, s := range specs {
		_, err := model.Build(json.RawMessage(s), 1)
		assert.Error(t, err, s)
	}
}

const forestSpec = `{"type":"forest","trees":[
  {"nodes":[{"feature":0,"threshold":0.5,"left":1,"right":2},{"feature":-1,"value":[8,2,0]},{"feature":-1,"value":[0,1,3]}]},
  {"nodes":[{"feature":-1,"value":[1,1,2]}]}
]}`

func TestForest(t *testing.T) {
	m, err := model.Build(json.RawMessage(forestSpec), 1)
	require.NoError(t, err)
	assert.Equal(t, "forest", m.Name())

	p, err := m.Predict([]float64{0})
	require.NoError(t, err)
	// ([0.8,0.2,0] + [0.25,0.25,0.5]) / 2
	assert.InDelta(t, 0.525, p[0], 1e-12)
	assert.InDelta(t, 0.225, p[1], 1e-12)
	assert.InDelta(t, 0.25, p[2], 1e-12)

	// 阈值边界走左子树
	pEdge, err := m.Predict([]float64{0.5})
	require.NoError(t, err)
	assert.Equal(t, p, pEdge)

	p, err = m.Predict([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, core.RiskHigh, p.Argmax())
}

func TestForest_BadSpec(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{"no trees", `{"type":"forest","trees":[]}`},
		{"leaf width", `{"type":"forest","trees":[{"nodes":[{"feature":-1,"value":[1,1]}]}]}`},
		{"negative weight", `{"type":"forest","trees":[{"nodes":[{"feature":-1,"value":[1,-1,1]}]}]}`},
		{"zero weight", `{"type":"forest","trees":[{"nodes":[{"feature":-1,"value":[0,0,0]}]}]}`},
		{"feature out of range", `{"type":"forest","trees":[{"nodes":[{"feature":3,"threshold":0,"left":1,"right":2},{"feature":-1,"value":[1,0,0]},{"feature":-1,"value":[1,0,0]}]}]}`},
		{"cycle", `{"type":"forest","trees":[{"nodes":[{"feature":0,"threshold":0,"left":0,"right":1},{"feature":-1,"value":[1,0,0]}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.Build(json.RawMessage(tt.spec), 1)
			assert.Error(t, err)
		})
	}
}

func TestGBDT(t *testing.T) {
	spec := `{"type":"gbdt","init":[1,0,-1],"learning_rate":0.5,"rounds":[[
	  {"nodes":[{"feature":0,"threshold":0.5,"left":1,"right":2},{"feature":-1,"value":[2]},{"feature":-1,"value":[-2]}]},
	  {"nodes":[{"feature":-1,"value":[0]}]},
	  {"nodes":[{"feature":0,"threshold":0.5,"left":1,"right":2},{"feature":-1,"value":[-2]},{"feature":-1,"value":[6]}]}
	]]}`
	m, err := model.Build(json.RawMessage(spec), 1)
	require.NoError(t, err)
	assert.Equal(t, "gbdt", m.Name())

	p, err := m.Predict([]float64{0})
	require.NoError(t, err)
	// z = [2, 0, -2]
	want := []float64{math.Exp(2), 1, math.Exp(-2)}
	total := want[0] + want[1] + want[2]
	for k := range want {
		assert.InDelta(t, want[k]/total, p[k], 1e-12)
	}

	p, err = m.Predict([]float64{1})
	require.NoError(t, err)
	// z = [0, 0, 2]
	assert.Equal(t, core.RiskHigh, p.Argmax())

	_, err = model.Build(json.RawMessage(`{"type":"gbdt","init":[0,0,0],"learning_rate":0,"rounds":[]}`), 1)
	assert.Error(t, err)
	_, err = model.Build(json.RawMessage(`{"type":"gbdt","init":[0,0],"learning_rate":1,"rounds":[]}`), 1)
	assert.Error(t, err)
}

func TestRPC(t *testing.T) {
	var gotInstances [][]float64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req struct {
			Instances [][]float64 `json:"instances"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotInstances = req.Instances
		_, _ = w.Write([]byte(`{"probabilities":[[0.1,0.2,0.7]]}`))
	}))
	defer server.Close()

	m, err := model.Build(json.RawMessage(`{"type":"rpc","endpoint":"`+server.URL+`","timeout_ms":500}`), 2)
	require.NoError(t, err)
	assert.Equal(t, "rpc", m.Name())

	p, err := m.Predict([]float64{1.5, 2})
	require.NoError(t, err)
	assert.Equal(t, core.ProbabilityVector{0.1, 0.2, 0.7}, p)
	assert.Equal(t, [][]float64{{1.5, 2}}, gotInstances)

	_, err = m.Predict([]float64{1})
	assert.Error(t, err)
}

func TestRPC_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"server error", http.StatusInternalServerError, `boom`},
		{"bad json", http.StatusOK, `{`},
		{"wrong shape", http.StatusOK, `{"probabilities":[[0.5,0.5]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			m := model.NewRPCModel(server.URL, 1, time.Second)
			_, err := m.Predict([]float64{1})
			assert.Error(t, err)
		})
	}

	_, err := model.Build(json.RawMessage(`{"type":"rpc"}`), 1)
	assert.Error(t, err, "endpoint required")
}
