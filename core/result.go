package core

// Signal 是单个专家模型对一笔交易给出的类别概率，用于解释 / 观测。
type Signal struct {
	Group         string            `json:"group"`
	Probabilities ProbabilityVector `json:"probabilities"`
}

// ScoringResult 是一笔交易的打分结果，生成后不再修改。
//
//   - RiskLevel：最终概率 argmax（平局偏向高风险）
//   - Confidence：100 × max(概率)
//   - RiskScore：0~100 的风险分，映射见 scoring.RiskScorer
//   - Flagged：RiskLevel ∈ {Medium, High}
//   - ImputedFeatures：本次被兜底值填充的特征（按契约顺序），不影响打分，仅用于审计
type ScoringResult struct {
	RiskLevel       RiskLevel         `json:"risk_level"`
	RiskScore       float64           `json:"risk_score"`
	Confidence      float64           `json:"confidence"`
	Probabilities   ProbabilityVector `json:"class_probabilities"`
	Flagged         bool              `json:"is_flagged"`
	ImputedFeatures []string          `json:"imputed_features,omitempty"`
	Signals         []Signal          `json:"signals,omitempty"`
}
