package model

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rushteam/fraudkit/core"
)

// Node 是决策树的一个节点，布局与 sklearn 导出的数组树一致：
// Feature < 0 表示叶子；否则 x[Feature] <= Threshold 走 Left，反之走 Right。
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// Tree 以数组形式存储的二叉决策树，根节点下标为 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// validate 检查树结构：子节点下标必须在当前节点之后（无环），叶子值长度为 leafWidth
func (t *Tree) validate(width, leafWidth int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			if len(n.Value) != leafWidth {
				return fmt.Errorf("leaf %d has %d values, want %d", i, len(n.Value), leafWidth)
			}
			for _, v := range n.Value {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("leaf %d has non-finite value", i)
				}
			}
			continue
		}
		if n.Feature >= width {
			return fmt.Errorf("node %d splits on feature %d, input width is %d", i, n.Feature, width)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// leaf 沿树走到叶子
func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// ForestModel 随机森林：每棵树的叶子保存类别分布（计数或概率），
// 输出为各树归一化叶子分布的平均值。
type ForestModel struct {
	Trees []Tree
	width int
}

func buildForest(spec json.RawMessage, width int) (Classifier, error) {
	var raw struct {
		Trees []Tree `json:"trees"`
	}
	if err := json.Unmarshal(spec, &raw); err != nil {
		return nil, fmt.Errorf("parse forest model: %w", err)
	}
	if len(raw.Trees) == 0 {
		return nil, fmt.Errorf("forest model has no trees")
	}
	for i := range raw.Trees {
		if err := raw.Trees[i].validate(width, core.NumClasses); err != nil {
			return nil, fmt.Errorf("forest tree %d: %w", i, err)
		}
		for j, n := range raw.Trees[i].Nodes {
			if n.Feature >= 0 {
				continue
			}
			sum := 0.0
			for _, v := range n.Value {
				if v < 0 {
					return nil, fmt.Errorf("forest tree %d leaf %d has negative class weight", i, j)
				}
				sum += v
			}
			if sum <= 0 {
				return nil, fmt.Errorf("forest tree %d leaf %d has zero class weight", i, j)
			}
		}
	}
	return &ForestModel{Trees: raw.Trees, width: width}, nil
}

func (m *ForestModel) Name() string { return "forest" }

func (m *ForestModel) Predict(x []float64) (core.ProbabilityVector, error) {
	var p core.ProbabilityVector
	if err := checkInput(x, m.width); err != nil {
		return p, err
	}
	for i := range m.Trees {
		v := m.Trees[i].leaf(x)
		sum := v[0] + v[1] + v[2]
		for k := 0; k < core.NumClasses; k++ {
			p[k] += v[k] / sum
		}
	}
	n := float64(len(m.Trees))
	for k := range p {
		p[k] /= n
		if math.IsNaN(p[k]) || math.IsInf(p[k], 0) {
			return core.ProbabilityVector{}, ErrNonFinite
		}
	}
	return p, nil
}

// GBDTModel 多分类梯度提升树：每轮为每个类别训练一棵回归树，
// raw_k = Init_k + LearningRate * sum(tree_rk(x))，再经 softmax 得到概率。
type GBDTModel struct {
	Init         [core.NumClasses]float64
	LearningRate float64
	Rounds       [][core.NumClasses]Tree
	width        int
}

func buildGBDT(spec json.RawMessage, width int) (Classifier, error) {
	var raw struct {
		Init         []float64 `json:"init"`
		LearningRate float64   `json:"learning_rate"`
		Rounds       [][]Tree  `json:"rounds"`
	}
	if err := json.Unmarshal(spec, &raw); err != nil {
		return nil, fmt.Errorf("parse gbdt model: %w", err)
	}
	if len(raw.Init) != core.NumClasses {
		return nil, fmt.Errorf("gbdt model needs %d init scores, got %d", core.NumClasses, len(raw.Init))
	}
	if raw.LearningRate <= 0 {
		return nil, fmt.Errorf("gbdt learning rate must be positive")
	}
	m := &GBDTModel{LearningRate: raw.LearningRate, width: width}
	copy(m.Init[:], raw.Init)
	m.Rounds = make([][core.NumClasses]Tree, len(raw.Rounds))
	for r, round := range raw.Rounds {
		if len(round) != core.NumClasses {
			return nil, fmt.Errorf("gbdt round %d has %d trees, want %d", r, len(round), core.NumClasses)
		}
		for k := range round {
			if err := round[k].validate(width, 1); err != nil {
				return nil, fmt.Errorf("gbdt round %d class %d: %w", r, k, err)
			}
			m.Rounds[r][k] = round[k]
		}
	}
	return m, nil
}

func (m *GBDTModel) Name() string { return "gbdt" }

func (m *GBDTModel) Predict(x []float64) (core.ProbabilityVector, error) {
	if err := checkInput(x, m.width); err != nil {
		return core.ProbabilityVector{}, err
	}
	z := m.Init
	for r := range m.Rounds {
		for k := 0; k < core.NumClasses; k++ {
			z[k] += m.LearningRate * m.Rounds[r][k].leaf(x)[0]
		}
	}
	return softmax(z)
}
