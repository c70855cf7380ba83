package scoring

import (
	"sort"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/feature"
)

// ReportPercentiles 报告中风险分的分位点
var ReportPercentiles = []float64{0.25, 0.50, 0.75, 0.95}

// LevelSummary 某一风险等级的数量与占比（百分数）
type LevelSummary struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Percentiles 风险分分位数
type Percentiles struct {
	P25 float64 `json:"25th"`
	P50 float64 `json:"50th"`
	P75 float64 `json:"75th"`
	P95 float64 `json:"95th"`
}

// Report 一组打分结果的分布汇总，与会话统计无关
type Report struct {
	Total          int                     `json:"total_transactions"`
	Distribution   map[string]LevelSummary `json:"risk_distribution"`
	FlaggedCount   int                     `json:"fraud_flagged"`
	FlagRate       float64                 `json:"fraud_flag_rate"`
	HighRiskCount  int                     `json:"high_risk_transactions"`
	MeanRiskScore  float64                 `json:"average_risk_score"`
	MeanConfidence float64                 `json:"average_confidence"`
	Percentiles    Percentiles             `json:"percentile_risk_scores"`
}

// GenerateReport 汇总任意一组结果（nil 元素被跳过）。
// 分位数在排序后的风险分上做线性插值：index = p × (n-1)。
func GenerateReport(results []*core.ScoringResult) Report {
	r := Report{Distribution: make(map[string]LevelSummary, core.NumClasses)}
	for _, l := range core.RiskLevels() {
		r.Distribution[l.String()] = LevelSummary{}
	}

	scores := make([]float64, 0, len(results))
	var scoreSum, confSum float64
	for _, res := range results {
		if res == nil {
			continue
		}
		r.Total++
		lvl := r.Distribution[res.RiskLevel.String()]
		lvl.Count++
		r.Distribution[res.RiskLevel.String()] = lvl
		if res.Flagged {
			r.FlaggedCount++
		}
		if res.RiskLevel == core.RiskHigh {
			r.HighRiskCount++
		}
		scoreSum += res.RiskScore
		confSum += res.Confidence
		scores = append(scores, res.RiskScore)
	}
	if r.Total == 0 {
		return r
	}

	n := float64(r.Total)
	for k, lvl := range r.Distribution {
		lvl.Percentage = float64(lvl.Count) / n * 100
		r.Distribution[k] = lvl
	}
	r.FlagRate = float64(r.FlaggedCount) / n * 100
	r.MeanRiskScore = scoreSum / n
	r.MeanConfidence = confSum / n

	sort.Float64s(scores)
	r.Percentiles = Percentiles{
		P25: feature.Percentile(scores, ReportPercentiles[0]),
		P50: feature.Percentile(scores, ReportPercentiles[1]),
		P75: feature.Percentile(scores, ReportPercentiles[2]),
		P95: feature.Percentile(scores, ReportPercentiles[3]),
	}
	return r
}

// Ranked 带原始下标的结果
type Ranked struct {
	Index  int                 `json:"index"`
	Result *core.ScoringResult `json:"result"`
}

// HighRisk 返回 High 等级的结果，按风险分降序（相同分数按下标升序），limit<=0 表示不限制
func HighRisk(results []*core.ScoringResult, limit int) []Ranked {
	var out []Ranked
	for i, res := range results {
		if res != nil && res.RiskLevel == core.RiskHigh {
			out = append(out, Ranked{Index: i, Result: res})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Result.RiskScore > out[b].Result.RiskScore
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
