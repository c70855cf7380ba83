package feature

import (
	"fmt"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/pkg/conv"
)

// Kind 是特征的数据类型，决定训练时兜底值的取法。
type Kind string

const (
	// KindContinuous 连续特征，兜底值为训练集均值
	KindContinuous Kind = "continuous"
	// KindCategorical 类别特征（编码后的整数），兜底值为训练集众数
	KindCategorical Kind = "categorical"
)

// Contract 是特征契约：模型训练时使用的、有序且带名字的输入特征集合。
// 与模型工件一起版本化，加载后只读，可在多个 goroutine 间共享。
//
// 对应工件中的 contract 段：
//
//	{
//	  "version": "2024-06-01",
//	  "feature_columns": ["velocity_spike", "units_zscore_7d", ...],
//	  "fallbacks": {"velocity_spike": 0, "units_zscore_7d": 0.12, ...},
//	  "kinds": {"velocity_spike": "categorical"}
//	}
type Contract struct {
	// Version 契约版本，与模型工件版本一致
	Version string `json:"version" yaml:"version"`
	// Columns 特征列名列表（按训练时的顺序）
	Columns []string `json:"feature_columns" yaml:"feature_columns"`
	// Fallbacks 每个特征的兜底值（训练集均值 / 众数）；不在此表中的特征必须由上游提供
	Fallbacks map[string]float64 `json:"fallbacks" yaml:"fallbacks"`
	// Kinds 特征类型，缺省为 continuous
	Kinds map[string]Kind `json:"kinds,omitempty" yaml:"kinds,omitempty"`

	index map[string]int
}

// NewContract 创建并校验契约
func NewContract(version string, columns []string, fallbacks map[string]float64) (*Contract, error) {
	c := &Contract{Version: version, Columns: columns, Fallbacks: fallbacks}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate 校验契约本身并建立列名索引。契约有问题属于配置错误。
func (c *Contract) Validate() error {
	if len(c.Columns) == 0 {
		return core.NewConfigurationError(core.ModuleFeature, nil, "feature contract has no columns")
	}
	index := make(map[string]int, len(c.Columns))
	for i, col := range c.Columns {
		if col == "" {
			return core.NewConfigurationError(core.ModuleFeature, nil, "feature contract column %d has empty name", i)
		}
		if _, dup := index[col]; dup {
			return core.NewConfigurationError(core.ModuleFeature, nil, "feature contract column %q is duplicated", col)
		}
		index[col] = i
	}
	for name := range c.Fallbacks {
		if _, ok := index[name]; !ok {
			return core.NewConfigurationError(core.ModuleFeature, nil, "fallback for unknown feature %q", name)
		}
	}
	for name, kind := range c.Kinds {
		if _, ok := index[name]; !ok {
			return core.NewConfigurationError(core.ModuleFeature, nil, "kind for unknown feature %q", name)
		}
		if kind != KindContinuous && kind != KindCategorical {
			return core.NewConfigurationError(core.ModuleFeature, nil, "feature %q has unknown kind %q", name, kind)
		}
	}
	c.index = index
	return nil
}

// Len 返回特征数量
func (c *Contract) Len() int { return len(c.Columns) }

// Index 返回特征在契约中的位置
func (c *Contract) Index(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

// KindOf 返回特征类型
func (c *Contract) KindOf(name string) Kind {
	if k, ok := c.Kinds[name]; ok {
		return k
	}
	return KindContinuous
}

// Fallback 返回特征兜底值
func (c *Contract) Fallback(name string) (float64, bool) {
	v, ok := c.Fallbacks[name]
	return v, ok
}

// Indices 把一组特征名映射为契约位置，任何未知特征都是配置错误。
func (c *Contract) Indices(names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, name := range names {
		idx, ok := c.index[name]
		if !ok {
			return nil, core.NewConfigurationError(core.ModuleFeature, nil,
				"feature %q is not part of contract %s", name, c.Version)
		}
		out[i] = idx
	}
	return out, nil
}

// MissingFeatures 返回 raw 中缺失（或为缺失标记）的契约特征，按契约顺序
func (c *Contract) MissingFeatures(raw map[string]any) []string {
	var missing []string
	for _, col := range c.Columns {
		if _, outcome := conv.ToFeatureValue(raw[col]); outcome == conv.Missing {
			missing = append(missing, col)
		}
	}
	return missing
}

// Resolve 按契约顺序构建特征向量，填充缺失值。raw 不会被修改。
//
//   - 缺失 / NaN / 缺失标记：使用兜底值，并记录到 Vector.Imputed()
//   - 类型错误或 ±Inf：返回 VALIDATION 错误
//   - 缺失且没有兜底值：返回 FEATURE_CONTRACT 错误（优先于 VALIDATION）
//   - 契约外的 key 被忽略，仅计数
func (c *Contract) Resolve(raw map[string]any) (*Vector, error) {
	if c.index == nil {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}

	values := make([]float64, len(c.Columns))
	var (
		imputed  []string
		firstErr error
	)
	for i, col := range c.Columns {
		v, outcome := conv.ToFeatureValue(raw[col])
		switch outcome {
		case conv.Valid:
			values[i] = v
		case conv.Missing:
			fb, ok := c.Fallbacks[col]
			if !ok {
				return nil, core.NewFeatureContractError(col)
			}
			values[i] = fb
			imputed = append(imputed, col)
		default:
			if firstErr == nil {
				verr := core.NewValidationError(core.ModuleFeature,
					"feature %q has malformed value %s", col, describe(raw[col]))
				verr.Feature = col
				firstErr = verr
			}
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	ignored := 0
	for k := range raw {
		if _, ok := c.index[k]; !ok {
			ignored++
		}
	}

	return &Vector{
		contract: c,
		values:   values,
		imputed:  imputed,
		ignored:  ignored,
	}, nil
}

func describe(v any) string {
	s := fmt.Sprintf("%v", v)
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return fmt.Sprintf("%q (%T)", s, v)
}
