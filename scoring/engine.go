// Package scoring 是打分引擎：把一条原始交易特征变成一个 ScoringResult。
//
// 流程：特征契约校验/填充 → 8 个专家模型 → 融合模型 → argmax（平局偏向高风险）
// → 置信度 → 风险分 → 是否标记 → 更新会话统计。
//
// 引擎不持有可变的模型状态，可被多个 goroutine 并发调用；唯一的共享可变状态是 stats.Sink。
package scoring

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/feature"
	"github.com/rushteam/fraudkit/metrics"
	"github.com/rushteam/fraudkit/model"
	"github.com/rushteam/fraudkit/stats"
)

const tracerName = "github.com/rushteam/fraudkit/scoring"

// Engine 打分引擎
type Engine struct {
	bundle  *model.Bundle
	scorer  RiskScorer
	stats   stats.Sink
	monitor feature.Monitor
	metrics *metrics.Scoring
	logger  *zap.Logger
	tracer  trace.Tracer
	signals bool
}

// Option 引擎选项
type Option func(*Engine)

// WithStats 设置会话统计（默认进程内 stats.Atomic）
func WithStats(s stats.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.stats = s
		}
	}
}

// WithScorer 设置风险分映射
func WithScorer(s RiskScorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithMonitor 设置特征监控
func WithMonitor(m feature.Monitor) Option {
	return func(e *Engine) { e.monitor = m }
}

// WithMetrics 设置 Prometheus 指标
func WithMetrics(m *metrics.Scoring) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger 设置 logger（默认 zap.NewNop()）
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer 设置 tracer（默认使用全局 TracerProvider）
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithSignals 在结果中附带每个专家模型的概率，用于解释
func WithSignals(on bool) Option {
	return func(e *Engine) { e.signals = on }
}

// NewEngine 创建引擎。bundle 必须已通过 model.LoadBundle / model.NewBundle 校验。
func NewEngine(bundle *model.Bundle, opts ...Option) (*Engine, error) {
	if bundle == nil {
		return nil, core.NewConfigurationError(core.ModuleScoring, nil, "engine requires a model bundle")
	}
	e := &Engine{
		bundle: bundle,
		scorer: DefaultRiskScorer(),
		stats:  stats.NewAtomic(),
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.scorer.Validate(); err != nil {
		return nil, err
	}
	e.logger.Info("scoring engine ready",
		zap.String("version", bundle.Version),
		zap.Int("features", bundle.Contract.Len()),
		zap.String("meta_model", bundle.Meta.Model.Name()),
		zap.Float64s("risk_weights", e.scorer.Weights[:]),
	)
	return e, nil
}

// Bundle 返回引擎使用的模型工件
func (e *Engine) Bundle() *model.Bundle { return e.bundle }

// Stats 返回会话统计
func (e *Engine) Stats() stats.Sink { return e.stats }

// Scorer 返回风险分映射
func (e *Engine) Scorer() RiskScorer { return e.scorer }

// Snapshot 读取会话统计快照，不修改状态
func (e *Engine) Snapshot(ctx context.Context) (stats.Snapshot, error) {
	return e.stats.Snapshot(ctx)
}

// Score 对单条交易打分。raw 不会被修改。
//
// 错误：
//   - FEATURE_CONTRACT：某特征缺失且没有兜底值（上游管道缺陷）
//   - VALIDATION：特征值类型错误
//   - SCORING：模型数值失败；调用方必须走保守兜底（人工审核），不能默认放行
func (e *Engine) Score(ctx context.Context, raw map[string]any) (*core.ScoringResult, error) {
	ctx, span := e.tracer.Start(ctx, "scoring.Engine.Score",
		trace.WithAttributes(attribute.String("model.version", e.bundle.Version)))
	defer span.End()
	start := time.Now()

	result, err := e.score(raw)
	if err != nil {
		e.fail(span, err, time.Since(start))
		return nil, err
	}

	e.stats.Record(ctx, result.Flagged, result.RiskScore)
	e.metrics.ObserveScore(result.RiskLevel.String(), result.RiskScore, result.ImputedFeatures, time.Since(start))

	span.SetAttributes(
		attribute.String("risk.level", result.RiskLevel.String()),
		attribute.Float64("risk.score", result.RiskScore),
		attribute.Bool("risk.flagged", result.Flagged),
		attribute.Int("features.imputed", len(result.ImputedFeatures)),
	)
	if len(result.ImputedFeatures) > 0 {
		e.logger.Warn("features imputed with training fallback",
			zap.Strings("features", result.ImputedFeatures))
	}
	e.logger.Debug("transaction scored",
		zap.String("risk_level", result.RiskLevel.String()),
		zap.Float64("risk_score", result.RiskScore),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}

func (e *Engine) score(raw map[string]any) (*core.ScoringResult, error) {
	v, err := e.bundle.Contract.Resolve(raw)
	if err != nil {
		return nil, err
	}
	if e.monitor != nil {
		e.monitor.Observe(v)
	}

	probs, meta, err := e.bundle.Bank.Predict(v)
	if err != nil {
		return nil, err
	}
	p, err := e.bundle.Meta.Predict(meta)
	if err != nil {
		return nil, err
	}

	level := p.Argmax()
	result := &core.ScoringResult{
		RiskLevel:       level,
		RiskScore:       e.scorer.Score(p),
		Confidence:      100 * p.Max(),
		Probabilities:   p,
		Flagged:         level.Flagged(),
		ImputedFeatures: v.Imputed(),
	}
	if e.signals {
		result.Signals = make([]core.Signal, len(probs))
		for i, s := range e.bundle.Bank.Specialists() {
			result.Signals[i] = core.Signal{Group: s.Group, Probabilities: probs[i]}
		}
	}
	return result, nil
}

func (e *Engine) fail(span trace.Span, err error, took time.Duration) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	status := errorStatus(err)
	e.metrics.ObserveError(status, took)
	if de := core.GetDomainError(err); de != nil && de.Feature != "" && e.monitor != nil {
		e.monitor.RecordFeatureError(de.Feature)
	}
	if status == core.ErrorCodeFeatureContract {
		e.logger.Error("feature contract violated", zap.Error(err))
		return
	}
	e.logger.Warn("transaction not scored", zap.String("code", status), zap.Error(err))
}

// errorStatus 返回错误分类，用作指标标签
func errorStatus(err error) string {
	if de := core.GetDomainError(err); de != nil {
		return de.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELED"
	}
	return "UNKNOWN"
}
