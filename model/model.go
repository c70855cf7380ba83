package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rushteam/fraudkit/core"
)

// Classifier 是专家模型与融合模型共同的最小抽象：输入有序特征子向量，输出三分类概率。
// 具体实现可以是本地模型（逻辑回归 / 随机森林 / GBDT）或远程 RPC；替换实现不影响打分引擎。
//
// 约束：
//   - 推理期间不得有随机性，相同输入必须得到相同输出
//   - 加载后只读，可被多个 goroutine 并发调用
type Classifier interface {
	Name() string
	Predict(x []float64) (core.ProbabilityVector, error)
}

// ErrNonFinite 表示推理过程中出现了 NaN / Inf（例如数值溢出）。
var ErrNonFinite = errors.New("non-finite value during inference")

// Builder 根据工件中的模型描述构建 Classifier，width 是输入特征数。
type Builder func(spec json.RawMessage, width int) (Classifier, error)

var (
	builders   = make(map[string]Builder)
	buildersMu sync.RWMutex
)

func init() {
	Register("logistic", buildLogistic)
	Register("forest", buildForest)
	Register("gbdt", buildGBDT)
	Register("rpc", buildRPC)
}

// Register 注册一种模型类型的构建逻辑，工件中的 "type" 字段据此选择实现。
func Register(typeName string, builder Builder) {
	if typeName == "" || builder == nil {
		return
	}
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[typeName] = builder
}

// SupportedTypes 返回当前已注册的模型类型（排序），用于错误提示。
func SupportedTypes() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	types := make([]string, 0, len(builders))
	for t := range builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build 按 spec 中的 type 字段构建 Classifier
func Build(spec json.RawMessage, width int) (Classifier, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(spec, &head); err != nil {
		return nil, fmt.Errorf("parse model spec: %w", err)
	}
	buildersMu.RLock()
	builder, ok := builders[head.Type]
	buildersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported model type %q (supported: %v)", head.Type, SupportedTypes())
	}
	return builder(spec, width)
}

// softmax 数值稳定的 softmax，任何非有限值都返回 ErrNonFinite
func softmax(z [core.NumClasses]float64) (core.ProbabilityVector, error) {
	var p core.ProbabilityVector
	maxZ := math.Inf(-1)
	for _, v := range z {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return p, ErrNonFinite
		}
		if v > maxZ {
			maxZ = v
		}
	}
	sum := 0.0
	for i, v := range z {
		p[i] = math.Exp(v - maxZ)
		sum += p[i]
	}
	for i := range p {
		p[i] /= sum
	}
	return p, nil
}

func checkInput(x []float64, width int) error {
	if len(x) != width {
		return fmt.Errorf("input has %d features, want %d", len(x), width)
	}
	return nil
}
