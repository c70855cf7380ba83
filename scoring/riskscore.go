package scoring

import (
	"math"

	"github.com/rushteam/fraudkit/core"
)

// 默认风险分权重：Low 不贡献，Medium 贡献一半，High 全额贡献。
const (
	DefaultLowWeight    = 0.0
	DefaultMediumWeight = 0.5
	DefaultHighWeight   = 1.0
)

// RiskScorer 把最终概率映射为 0~100 的风险分：
//
//	risk_score = 100 × (w_low·P(Low) + w_medium·P(Medium) + w_high·P(High))
//
// 权重在 [0,1] 且单调不减，保证风险分落在 [0,100]，且概率向高风险转移时分数不降。
// 下游阈值依赖这个映射，修改权重等于修改阈值语义。
type RiskScorer struct {
	Weights [core.NumClasses]float64
}

// DefaultRiskScorer 返回默认权重的 RiskScorer
func DefaultRiskScorer() RiskScorer {
	return RiskScorer{Weights: [core.NumClasses]float64{DefaultLowWeight, DefaultMediumWeight, DefaultHighWeight}}
}

// NewRiskScorer 创建并校验 RiskScorer
func NewRiskScorer(low, medium, high float64) (RiskScorer, error) {
	s := RiskScorer{Weights: [core.NumClasses]float64{low, medium, high}}
	if err := s.Validate(); err != nil {
		return RiskScorer{}, err
	}
	return s, nil
}

// Validate 检查权重范围与单调性
func (s RiskScorer) Validate() error {
	for i, w := range s.Weights {
		if math.IsNaN(w) || w < 0 || w > 1 {
			return core.NewConfigurationError(core.ModuleScoring, nil,
				"risk weight for %s must be within [0,1], got %g", core.RiskLevel(i), w)
		}
		if i > 0 && w < s.Weights[i-1] {
			return core.NewConfigurationError(core.ModuleScoring, nil,
				"risk weights must be non-decreasing from Low to High, got %v", s.Weights)
		}
	}
	return nil
}

// Score 计算风险分
func (s RiskScorer) Score(p core.ProbabilityVector) float64 {
	sum := 0.0
	for k := range p {
		sum += s.Weights[k] * p[k]
	}
	score := 100 * sum
	// 概率和允许 1e-6 的误差，夹紧到合法区间
	return math.Min(100, math.Max(0, score))
}
