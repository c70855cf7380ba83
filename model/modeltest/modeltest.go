// Package modeltest 提供测试用的模型工件与桩分类器。
//
// testdata/bundle.json 中每个专家只看一个关键特征：关键特征为 1 时该专家输出高风险，
// 否则输出低风险；融合模型按"高风险专家数"做判断，3 个及以上即判为 High。
package modeltest

import (
	_ "embed"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/feature"
	"github.com/rushteam/fraudkit/model"
)

//go:embed testdata/bundle.json
var bundleJSON []byte

// Version 测试工件版本
const Version = "fixture-v1"

// KeyFeatures 每个专家的关键特征（规范顺序）
var KeyFeatures = []string{
	"velocity_spike",
	"unusual_amount_flag",
	"unfamiliar_device_flag",
	"risky_merchant_flag",
	"very_late_night_flag",
	"high_risk_payment_method",
	"high_historical_fraud_flag",
	"combined_risk_index",
}

// BundleJSON 返回测试工件原始内容的副本
func BundleJSON() []byte {
	out := make([]byte, len(bundleJSON))
	copy(out, bundleJSON)
	return out
}

// Bundle 解析测试工件
func Bundle(t testing.TB) *model.Bundle {
	t.Helper()
	b, err := model.ParseBundle(bundleJSON)
	require.NoError(t, err)
	return b
}

// LowRiskRow 一笔正常交易（部分特征缺失，依赖兜底值）
func LowRiskRow() map[string]any {
	return map[string]any{
		"selling_price":            450,
		"quantity_ordered":         2,
		"transaction_hour":         12,
		"velocity_spike":           0,
		"unusual_amount_flag":      0,
		"device_familiarity_score": 75,
		"merchant_risk_score":      30,
		"combined_risk_index":      15,
	}
}

// RiskyRow 让前 n 个专家的关键特征触发高风险
func RiskyRow(n int) map[string]any {
	row := LowRiskRow()
	for i := 0; i < n && i < len(KeyFeatures); i++ {
		if KeyFeatures[i] == "combined_risk_index" {
			// 标准化后 (45-15)/10 = 3，乘以权重 4 足以判为高风险
			row[KeyFeatures[i]] = 45
			continue
		}
		row[KeyFeatures[i]] = 1
	}
	return row
}

// Const 是总返回固定概率（或固定错误）的分类器
type Const struct {
	P   core.ProbabilityVector
	Err error
}

func (c Const) Name() string { return "const" }

func (c Const) Predict(x []float64) (core.ProbabilityVector, error) {
	return c.P, c.Err
}

// Func 用函数实现的分类器
type Func func(x []float64) (core.ProbabilityVector, error)

func (f Func) Name() string { return "func" }

func (f Func) Predict(x []float64) (core.ProbabilityVector, error) { return f(x) }

// Contract 构建一个每组一个特征 f_<group>、兜底值均为 0 的小契约
func Contract(t testing.TB) *feature.Contract {
	t.Helper()
	cols := make([]string, 0, model.NumSpecialists)
	fallbacks := make(map[string]float64, model.NumSpecialists)
	for _, g := range model.CanonicalGroups {
		cols = append(cols, "f_"+g)
		fallbacks["f_"+g] = 0
	}
	c, err := feature.NewContract("stub", cols, fallbacks)
	require.NoError(t, err)
	return c
}

// StubBundle 构建专家全部返回 specialist、融合模型为 meta 的工件（基于 Contract）
func StubBundle(t testing.TB, specialist model.Classifier, meta model.Classifier) *model.Bundle {
	t.Helper()
	c := Contract(t)
	specialists := make([]*model.Specialist, 0, model.NumSpecialists)
	for _, g := range model.CanonicalGroups {
		s, err := model.NewSpecialist(g, []string{"f_" + g}, nil, specialist)
		require.NoError(t, err)
		specialists = append(specialists, s)
	}
	b, err := model.NewBundle("stub", c, specialists, meta)
	require.NoError(t, err)
	return b
}
