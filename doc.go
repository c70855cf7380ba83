// Package fraudkit 是一个交易欺诈风险打分工具包（Fraud Kit）。
//
// 设计要点：
// - Stacked ensemble: 8 个专家模型各自只看一组特征，元模型汇总 24 维概率得到最终三分类（Low / Medium / High）
// - Contract-first: 特征契约（顺序、兜底值、类型）与模型一起训练、一起发布，缺失值按契约兜底
// - Fail-safe: 打分失败返回 SCORING 错误，由决策层转人工审核，绝不默认放行
// - 模型可扩展: 通过 model.Register 注册新的模型类型（本地或 RPC 均可）
package fraudkit

import (
	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/model"
	"github.com/rushteam/fraudkit/scoring"
)

// 轻量 facade：便于用户直接 import "fraudkit" 使用核心抽象。
type (
	Engine        = scoring.Engine
	Batch         = scoring.Batch
	Bundle        = model.Bundle
	ScoringResult = core.ScoringResult
	RiskLevel     = core.RiskLevel
)

const (
	RiskLow    = core.RiskLow
	RiskMedium = core.RiskMedium
	RiskHigh   = core.RiskHigh
)

var (
	NewEngine  = scoring.NewEngine
	NewBatch   = scoring.NewBatch
	LoadBundle = model.LoadBundle
)
