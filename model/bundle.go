package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/feature"
)

// Bundle 是一次训练产出的完整工件：特征契约 + 8 个专家模型 + 融合模型 + 训练信息。
// 加载是全有或全无的：任何部分缺失或损坏都是 CONFIGURATION 错误，不存在降级模式。
type Bundle struct {
	Version   string
	TrainedAt string
	Metrics   map[string]float64
	Contract  *feature.Contract
	Bank      *Bank
	Meta      *Meta
}

// bundleFile 是工件 JSON 的结构：
//
//	{
//	  "version": "v3",
//	  "trained_at": "2024-06-01T12:00:00Z",
//	  "metrics": {"accuracy": 0.97, "recall_weighted": 0.96},
//	  "contract": {...},
//	  "specialists": [{"group": "velocity", "features": [...], "scaler": {...}, "model": {"type": "forest", ...}}, ...],
//	  "meta": {"type": "gbdt", ...}
//	}
type bundleFile struct {
	Version     string             `json:"version"`
	TrainedAt   string             `json:"trained_at"`
	Metrics     map[string]float64 `json:"metrics"`
	Contract    *feature.Contract  `json:"contract"`
	Specialists []specialistFile   `json:"specialists"`
	Meta        json.RawMessage    `json:"meta"`
}

type specialistFile struct {
	Group    string          `json:"group"`
	Features []string        `json:"features"`
	Scaler   *feature.Scaler `json:"scaler,omitempty"`
	Model    json.RawMessage `json:"model"`
}

// LoadBundle 通过 loader 读取并解析工件
//
// 用法：
//
//	bundle, err := model.LoadBundle(ctx, model.NewFileLoader(), "artifacts/fraud_bundle.json")
//	if err != nil {
//	    log.Fatal(err) // CONFIGURATION 错误，进程不能提供服务
//	}
func LoadBundle(ctx context.Context, loader Loader, source string) (*Bundle, error) {
	data, err := loader.Load(ctx, source)
	if err != nil {
		return nil, core.NewConfigurationError(core.ModuleModel, err, "load bundle %s", source)
	}
	return ParseBundle(data)
}

// ParseBundle 解析工件 JSON 并完成全部校验
func ParseBundle(data []byte) (*Bundle, error) {
	var raw bundleFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, core.NewConfigurationError(core.ModuleModel, err, "parse bundle")
	}
	if raw.Contract == nil {
		return nil, core.NewConfigurationError(core.ModuleModel, nil, "bundle has no feature contract")
	}
	if raw.Contract.Version == "" {
		raw.Contract.Version = raw.Version
	}
	if raw.Contract.Version != raw.Version {
		return nil, core.NewConfigurationError(core.ModuleModel, nil,
			"contract version %q does not match bundle version %q", raw.Contract.Version, raw.Version)
	}
	if err := raw.Contract.Validate(); err != nil {
		return nil, err
	}

	specialists := make([]*Specialist, 0, len(raw.Specialists))
	for _, sf := range raw.Specialists {
		if len(sf.Model) == 0 {
			return nil, core.NewConfigurationError(core.ModuleModel, nil, "specialist %s has no model", sf.Group)
		}
		m, err := Build(sf.Model, len(sf.Features))
		if err != nil {
			return nil, core.NewConfigurationError(core.ModuleModel, err, "specialist %s", sf.Group)
		}
		s, err := NewSpecialist(sf.Group, sf.Features, sf.Scaler, m)
		if err != nil {
			return nil, err
		}
		specialists = append(specialists, s)
	}
	bank, err := NewBank(raw.Contract, specialists)
	if err != nil {
		return nil, err
	}

	if len(raw.Meta) == 0 {
		return nil, core.NewConfigurationError(core.ModuleModel, nil, "bundle has no meta model")
	}
	mm, err := Build(raw.Meta, MetaWidth)
	if err != nil {
		return nil, core.NewConfigurationError(core.ModuleModel, err, "meta model")
	}
	meta, err := NewMeta(mm)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Version:   raw.Version,
		TrainedAt: raw.TrainedAt,
		Metrics:   raw.Metrics,
		Contract:  raw.Contract,
		Bank:      bank,
		Meta:      meta,
	}, nil
}

// NewBundle 由已构建好的组件组装工件（主要用于测试和自定义模型）
func NewBundle(version string, contract *feature.Contract, specialists []*Specialist, meta Classifier) (*Bundle, error) {
	if contract == nil {
		return nil, core.NewConfigurationError(core.ModuleModel, nil, "bundle has no feature contract")
	}
	if err := contract.Validate(); err != nil {
		return nil, err
	}
	bank, err := NewBank(contract, specialists)
	if err != nil {
		return nil, err
	}
	m, err := NewMeta(meta)
	if err != nil {
		return nil, err
	}
	return &Bundle{Version: version, Contract: contract, Bank: bank, Meta: m}, nil
}

// Info 模型信息，对外展示用
type Info struct {
	Version         string             `json:"version"`
	TrainedAt       string             `json:"training_date"`
	BaseModels      int                `json:"base_models"`
	BaseModelTypes  []string           `json:"base_model_types"`
	ModelKinds      map[string]string  `json:"model_kinds"`
	MetaModel       string             `json:"meta_model"`
	TotalFeatures   int                `json:"total_features"`
	FallbackCount   int                `json:"fallback_count"`
	RiskClasses     []string           `json:"risk_classes"`
	TrainingMetrics map[string]float64 `json:"training_metrics,omitempty"`
}

// Info 返回工件的描述信息
func (b *Bundle) Info() Info {
	info := Info{
		Version:         b.Version,
		TrainedAt:       b.TrainedAt,
		BaseModels:      len(b.Bank.specialists),
		ModelKinds:      make(map[string]string, len(b.Bank.specialists)),
		MetaModel:       b.Meta.Model.Name(),
		TotalFeatures:   b.Contract.Len(),
		FallbackCount:   len(b.Contract.Fallbacks),
		TrainingMetrics: b.Metrics,
	}
	for _, s := range b.Bank.specialists {
		info.BaseModelTypes = append(info.BaseModelTypes, s.Group)
		info.ModelKinds[s.Group] = s.Model.Name()
	}
	for _, l := range core.RiskLevels() {
		info.RiskClasses = append(info.RiskClasses, l.String())
	}
	return info
}

// MetricNames 返回训练指标名（排序）
func (b *Bundle) MetricNames() []string {
	names := make([]string, 0, len(b.Metrics))
	for k := range b.Metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (b *Bundle) String() string {
	return fmt.Sprintf("bundle %s (%d features, meta=%s)", b.Version, b.Contract.Len(), b.Meta.Model.Name())
}
