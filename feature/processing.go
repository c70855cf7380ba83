package feature

import (
	"fmt"
	"math"
	"sort"

	"github.com/rushteam/fraudkit/core"
)

// Scaler 是按位置排列的 Z-score 标准化器，对应训练时每个信号组单独拟合的 StandardScaler。
// 公式: z = (x - μ) / σ；σ <= 0 时保持原值。
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Validate 检查标准化参数与特征数一致
func (s *Scaler) Validate(width int) error {
	if s == nil {
		return nil
	}
	if len(s.Mean) != width || len(s.Std) != width {
		return core.NewConfigurationError(core.ModuleFeature, nil,
			"scaler has %d means and %d stds, want %d", len(s.Mean), len(s.Std), width)
	}
	for i := range s.Mean {
		if math.IsNaN(s.Mean[i]) || math.IsInf(s.Mean[i], 0) || math.IsNaN(s.Std[i]) || math.IsInf(s.Std[i], 0) {
			return core.NewConfigurationError(core.ModuleFeature, nil, "scaler parameter %d is not finite", i)
		}
	}
	return nil
}

// Transform 原地标准化 x。nil Scaler 不做任何处理。
func (s *Scaler) Transform(x []float64) {
	if s == nil {
		return
	}
	for i, v := range x {
		if s.Std[i] > 0 {
			x[i] = (v - s.Mean[i]) / s.Std[i]
		}
	}
}

// FeatureStatistics 特征统计信息
type FeatureStatistics struct {
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
	Median float64
	P25    float64
	P75    float64
	P95    float64
	P99    float64
}

// ComputeStatistics 计算特征统计信息
func ComputeStatistics(values []float64) *FeatureStatistics {
	if len(values) == 0 {
		return &FeatureStatistics{}
	}

	// 复制并排序
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	stats := &FeatureStatistics{
		Count: len(values),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	stats.Mean = sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - stats.Mean) * (v - stats.Mean)
	}
	stats.Std = math.Sqrt(variance / float64(len(values)))

	stats.Median = Percentile(sorted, 0.5)
	stats.P25 = Percentile(sorted, 0.25)
	stats.P75 = Percentile(sorted, 0.75)
	stats.P95 = Percentile(sorted, 0.95)
	stats.P99 = Percentile(sorted, 0.99)

	return stats
}

// Percentile 在已排序的数据上计算分位数，相邻顺序统计量之间线性插值（index = p·(n-1)）。
// p 取值 [0, 1]，空输入返回 0。
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// String 便于日志输出
func (s *FeatureStatistics) String() string {
	return fmt.Sprintf("n=%d mean=%.4f std=%.4f p50=%.4f p95=%.4f", s.Count, s.Mean, s.Std, s.Median, s.P95)
}
