package model

import (
	"fmt"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/feature"
)

// 信号组，顺序即元特征拼接顺序，必须与融合模型训练时一致。
const (
	GroupVelocity       = "velocity"
	GroupAmount         = "amount"
	GroupDeviceLocation = "device_location"
	GroupMerchant       = "merchant"
	GroupTemporal       = "temporal"
	GroupPaymentMethod  = "payment_method"
	GroupIPHistorical   = "ip_historical"
	GroupBehavioralMeta = "behavioral_meta"
)

// CanonicalGroups 专家模型的规范顺序
var CanonicalGroups = []string{
	GroupVelocity,
	GroupAmount,
	GroupDeviceLocation,
	GroupMerchant,
	GroupTemporal,
	GroupPaymentMethod,
	GroupIPHistorical,
	GroupBehavioralMeta,
}

// NumSpecialists 专家模型数量
const NumSpecialists = 8

// MetaWidth 元特征维度：专家序号 × 类别序号
const MetaWidth = NumSpecialists * core.NumClasses

// Specialist 绑定一个信号组的特征子集、标准化参数与分类器。
type Specialist struct {
	Group    string
	Features []string
	Scaler   *feature.Scaler
	Model    Classifier

	indices []int
}

// NewSpecialist 创建专家模型，scaler 可为 nil
func NewSpecialist(group string, features []string, scaler *feature.Scaler, m Classifier) (*Specialist, error) {
	if len(features) == 0 {
		return nil, core.NewConfigurationError(core.ModuleModel, nil, "specialist %s has no features", group)
	}
	if m == nil {
		return nil, core.NewConfigurationError(core.ModuleModel, nil, "specialist %s has no model", group)
	}
	if err := scaler.Validate(len(features)); err != nil {
		return nil, core.NewConfigurationError(core.ModuleModel, err, "specialist %s", group)
	}
	return &Specialist{Group: group, Features: features, Scaler: scaler, Model: m}, nil
}

// bind 把特征名解析为契约下标
func (s *Specialist) bind(c *feature.Contract) error {
	indices, err := c.Indices(s.Features)
	if err != nil {
		return core.NewConfigurationError(core.ModuleModel, err, "specialist %s", s.Group)
	}
	s.indices = indices
	return nil
}

// Predict 按绑定顺序抽取子向量、标准化、推理。
// 任何失败都是 SCORING 错误，不会用中性概率替代。
func (s *Specialist) Predict(v *feature.Vector) (core.ProbabilityVector, error) {
	x := v.Gather(s.indices, nil)
	s.Scaler.Transform(x)
	p, err := s.Model.Predict(x)
	if err != nil {
		return p, core.NewScoringError(core.ModuleModel, err, "specialist %s (%s) failed", s.Group, s.Model.Name())
	}
	if err := p.Validate(core.SumTolerance); err != nil {
		return p, core.NewScoringError(core.ModuleModel, err, "specialist %s (%s) returned invalid probabilities", s.Group, s.Model.Name())
	}
	return p, nil
}

// Bank 是 8 个专家模型的集合。加载后只读，并发安全。
type Bank struct {
	contract    *feature.Contract
	specialists []*Specialist
}

// NewBank 校验并绑定专家模型：
//   - 恰好 8 个，按 CanonicalGroups 顺序
//   - 特征都属于契约，且各组特征互不相交
func NewBank(contract *feature.Contract, specialists []*Specialist) (*Bank, error) {
	if contract == nil {
		return nil, core.NewConfigurationError(core.ModuleModel, nil, "bank requires a feature contract")
	}
	if len(specialists) != NumSpecialists {
		return nil, core.NewConfigurationError(core.ModuleModel, nil,
			"bank needs %d specialists, got %d", NumSpecialists, len(specialists))
	}
	owner := make(map[string]string)
	for i, s := range specialists {
		if s == nil {
			return nil, core.NewConfigurationError(core.ModuleModel, nil, "specialist %d is nil", i)
		}
		if s.Group != CanonicalGroups[i] {
			return nil, core.NewConfigurationError(core.ModuleModel, nil,
				"specialist %d is %q, want %q", i, s.Group, CanonicalGroups[i])
		}
		if err := s.bind(contract); err != nil {
			return nil, err
		}
		for _, f := range s.Features {
			if prev, dup := owner[f]; dup {
				return nil, core.NewConfigurationError(core.ModuleModel, nil,
					"feature %q is bound to both %s and %s", f, prev, s.Group)
			}
			owner[f] = s.Group
		}
	}
	return &Bank{contract: contract, specialists: specialists}, nil
}

// Specialists 返回专家模型（规范顺序）
func (b *Bank) Specialists() []*Specialist { return b.specialists }

// Predict 依次运行所有专家模型，返回每个专家的概率和拼接好的 24 维元特征。
func (b *Bank) Predict(v *feature.Vector) ([]core.ProbabilityVector, []float64, error) {
	if v.Contract() != b.contract {
		return nil, nil, core.NewScoringError(core.ModuleModel, nil, "feature vector was built from a different contract")
	}
	probs := make([]core.ProbabilityVector, len(b.specialists))
	meta := make([]float64, 0, MetaWidth)
	for i, s := range b.specialists {
		p, err := s.Predict(v)
		if err != nil {
			return nil, nil, err
		}
		probs[i] = p
		meta = append(meta, p[:]...)
	}
	return probs, meta, nil
}

// Meta 融合模型：输入 24 维元特征，输出最终概率。
type Meta struct {
	Model Classifier
}

// NewMeta 创建融合模型
func NewMeta(m Classifier) (*Meta, error) {
	if m == nil {
		return nil, core.NewConfigurationError(core.ModuleModel, nil, "meta model is nil")
	}
	return &Meta{Model: m}, nil
}

// Predict 运行融合模型
func (m *Meta) Predict(metaFeatures []float64) (core.ProbabilityVector, error) {
	if len(metaFeatures) != MetaWidth {
		return core.ProbabilityVector{}, core.NewScoringError(core.ModuleModel,
			fmt.Errorf("got %d values", len(metaFeatures)), "meta features must have %d values", MetaWidth)
	}
	p, err := m.Model.Predict(metaFeatures)
	if err != nil {
		return p, core.NewScoringError(core.ModuleModel, err, "meta model (%s) failed", m.Model.Name())
	}
	if err := p.Validate(core.SumTolerance); err != nil {
		return p, core.NewScoringError(core.ModuleModel, err, "meta model (%s) returned invalid probabilities", m.Model.Name())
	}
	return p, nil
}
