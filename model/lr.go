package model

import (
	"encoding/json"
	"fmt"

	"github.com/rushteam/fraudkit/core"
)

// LRModel 实现了多分类逻辑回归 (Multinomial Logistic Regression)。
//
// 预测原理：
// 1. 每个类别线性加权求和: z_k = Intercept_k + sum(Coef_kj * x_j)
// 2. Softmax 变换: P_k = exp(z_k) / sum(exp(z))
//
// 系数按类别下标（Low, Medium, High）排列，每行长度等于输入特征数。
type LRModel struct {
	Coefficients [core.NumClasses][]float64
	Intercepts   [core.NumClasses]float64
}

func buildLogistic(spec json.RawMessage, width int) (Classifier, error) {
	var raw struct {
		Coefficients [][]float64 `json:"coefficients"`
		Intercepts   []float64   `json:"intercepts"`
	}
	if err := json.Unmarshal(spec, &raw); err != nil {
		return nil, fmt.Errorf("parse logistic model: %w", err)
	}
	if len(raw.Coefficients) != core.NumClasses || len(raw.Intercepts) != core.NumClasses {
		return nil, fmt.Errorf("logistic model needs %d coefficient rows and intercepts, got %d and %d",
			core.NumClasses, len(raw.Coefficients), len(raw.Intercepts))
	}
	m := &LRModel{}
	for k := 0; k < core.NumClasses; k++ {
		if len(raw.Coefficients[k]) != width {
			return nil, fmt.Errorf("logistic row %d has %d coefficients, want %d", k, len(raw.Coefficients[k]), width)
		}
		m.Coefficients[k] = raw.Coefficients[k]
		m.Intercepts[k] = raw.Intercepts[k]
	}
	return m, nil
}

func (m *LRModel) Name() string { return "logistic" }

func (m *LRModel) Predict(x []float64) (core.ProbabilityVector, error) {
	if err := checkInput(x, len(m.Coefficients[0])); err != nil {
		return core.ProbabilityVector{}, err
	}
	var z [core.NumClasses]float64
	for k := 0; k < core.NumClasses; k++ {
		s := m.Intercepts[k]
		for j, w := range m.Coefficients[k] {
			s += w * x[j]
		}
		z[k] = s
	}
	return softmax(z)
}
