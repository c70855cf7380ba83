// Package stats 维护会话级打分统计：累计打分数、标记数、风险分之和。
//
// 统计只在成功打分后更新，由 Sink 的实现保证在并发下不丢更新。
// Atomic 适合单进程；多个进程共享同一会话视图时使用 Redis。
package stats

import (
	"context"
	"fmt"
)

// Sink 是会话统计的存储抽象
type Sink interface {
	// Record 记录一次成功打分。实现不得让打分失败，内部错误自行处理（记录日志）。
	Record(ctx context.Context, flagged bool, score float64)
	// Snapshot 读取当前统计
	Snapshot(ctx context.Context) (Snapshot, error)
	// Reset 清零，仅在显式调用时发生
	Reset(ctx context.Context) error
}

// Snapshot 某一时刻的统计快照，AverageScore / FlagRate 在读取时派生
type Snapshot struct {
	TotalScored  uint64  `json:"total_predictions"`
	TotalFlagged uint64  `json:"fraud_detected"`
	ScoreSum     float64 `json:"score_sum"`
	AverageScore float64 `json:"average_risk_score"`
	FlagRate     float64 `json:"fraud_rate"`
}

// NewSnapshot 由原始计数构造快照并计算派生字段
func NewSnapshot(total, flagged uint64, scoreSum float64) Snapshot {
	s := Snapshot{TotalScored: total, TotalFlagged: flagged, ScoreSum: scoreSum}
	if total > 0 {
		s.AverageScore = scoreSum / float64(total)
		s.FlagRate = float64(flagged) / float64(total) * 100
	}
	return s
}

func (s Snapshot) String() string {
	return fmt.Sprintf("scored=%d flagged=%d (%.2f%%) avg_score=%.2f",
		s.TotalScored, s.TotalFlagged, s.FlagRate, s.AverageScore)
}
