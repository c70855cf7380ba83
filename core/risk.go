package core

import (
	"fmt"
	"math"
	"strings"
)

// RiskLevel 是三分类风险等级，取值即类别下标：0=Low, 1=Medium, 2=High。
// 模型输出的概率向量、元特征拼接顺序都依赖这个下标顺序。
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

// NumClasses 类别数量
const NumClasses = 3

// TieTolerance 两个类别概率在此容差内视为相等，按更高风险等级取值。
const TieTolerance = 1e-9

// SumTolerance 概率向量求和与 1 的最大允许偏差。
const SumTolerance = 1e-6

var riskLevelNames = [NumClasses]string{"Low", "Medium", "High"}

// RiskLevels 按类别下标顺序返回所有等级
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskLow, RiskMedium, RiskHigh}
}

func (l RiskLevel) String() string {
	if l < 0 || int(l) >= NumClasses {
		return fmt.Sprintf("RiskLevel(%d)", int(l))
	}
	return riskLevelNames[l]
}

// Flagged 表示该等级需要额外审查（Medium 或 High）。
func (l RiskLevel) Flagged() bool {
	return l == RiskMedium || l == RiskHigh
}

// ParseRiskLevel 解析等级名称，大小写不敏感。
func ParseRiskLevel(s string) (RiskLevel, error) {
	for i, name := range riskLevelNames {
		if strings.EqualFold(s, name) {
			return RiskLevel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown risk level %q", s)
}

func (l RiskLevel) MarshalText() ([]byte, error) {
	if l < 0 || int(l) >= NumClasses {
		return nil, fmt.Errorf("invalid risk level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *RiskLevel) UnmarshalText(text []byte) error {
	v, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ProbabilityVector 是按 {Low, Medium, High} 下标排列的类别概率分布。
type ProbabilityVector [NumClasses]float64

// Validate 检查概率非负、有限且和为 1（容差 tol）。
func (p ProbabilityVector) Validate(tol float64) error {
	sum := 0.0
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("probability[%s] is not finite", RiskLevel(i))
		}
		if v < 0 {
			return fmt.Errorf("probability[%s] is negative: %g", RiskLevel(i), v)
		}
		sum += v
	}
	if math.Abs(sum-1) > tol {
		return fmt.Errorf("probabilities sum to %g", sum)
	}
	return nil
}

// Argmax 返回概率最大的等级。
// 两个概率相差不超过 TieTolerance 时取风险更高的那个，偏向谨慎。
func (p ProbabilityVector) Argmax() RiskLevel {
	best := RiskHigh
	for i := NumClasses - 2; i >= 0; i-- {
		if p[i] > p[best]+TieTolerance {
			best = RiskLevel(i)
		}
	}
	return best
}

// Max 返回最大概率
func (p ProbabilityVector) Max() float64 {
	return p[p.Argmax()]
}

// Of 按等级取概率
func (p ProbabilityVector) Of(l RiskLevel) float64 {
	return p[l]
}
