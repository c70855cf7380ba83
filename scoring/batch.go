package scoring

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/fraudkit/core"
)

// DefaultMaxRows 单次批量打分的最大行数
const DefaultMaxRows = 10000

// ErrAllRowsFailed 批量中每一行都打分失败
var ErrAllRowsFailed = errors.New("all rows failed to score")

// Batch 并发地对一组交易打分，结果按输入顺序返回（Rows[i] 对应 rows[i]）。
// 模型只加载一次，在所有行之间只读共享。
type Batch struct {
	engine  *Engine
	workers int
	maxRows int
}

// BatchOption 批量打分选项
type BatchOption func(*Batch)

// WithWorkers 设置并发数，<=0 时使用 GOMAXPROCS
func WithWorkers(n int) BatchOption {
	return func(b *Batch) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithMaxRows 设置最大行数，<=0 表示不限制
func WithMaxRows(n int) BatchOption {
	return func(b *Batch) { b.maxRows = n }
}

// NewBatch 创建批量打分器
func NewBatch(engine *Engine, opts ...BatchOption) *Batch {
	b := &Batch{
		engine:  engine,
		workers: runtime.GOMAXPROCS(0),
		maxRows: DefaultMaxRows,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RowResult 单行结果：Result 与 Err 有且只有一个非空
type RowResult struct {
	Index  int                 `json:"index"`
	Result *core.ScoringResult `json:"result,omitempty"`
	Err    error               `json:"-"`
	Error  string              `json:"error,omitempty"`
	Code   string              `json:"error_code,omitempty"`
}

// OK 本行是否打分成功
func (r RowResult) OK() bool { return r.Err == nil && r.Result != nil }

// BatchResult 批量打分结果
type BatchResult struct {
	ID     string      `json:"batch_id"`
	Rows   []RowResult `json:"rows"`
	Failed int         `json:"failed"`
	Report Report      `json:"report"`
}

// Results 返回成功行的结果（保持输入顺序）
func (r *BatchResult) Results() []*core.ScoringResult {
	out := make([]*core.ScoringResult, 0, len(r.Rows)-r.Failed)
	for _, row := range r.Rows {
		if row.OK() {
			out = append(out, row.Result)
		}
	}
	return out
}

// Score 对 rows 批量打分。
//
//   - 单行的 SCORING / VALIDATION 错误记录在对应行，不影响其它行
//   - FEATURE_CONTRACT 错误说明上游管道有缺陷，直接中止整批并返回该错误
//   - 每行开始前检查 ctx，取消后剩余行记录 ctx 错误，同时返回 ctx.Err()
//   - 全部失败时返回结果和 ErrAllRowsFailed
//   - Report 只统计成功的行
func (b *Batch) Score(ctx context.Context, rows []map[string]any) (*BatchResult, error) {
	if b.maxRows > 0 && len(rows) > b.maxRows {
		return nil, core.NewValidationError(core.ModuleScoring,
			"batch has %d rows, maximum is %d", len(rows), b.maxRows)
	}

	e := b.engine
	result := &BatchResult{ID: uuid.NewString(), Rows: make([]RowResult, len(rows))}
	ctx, span := e.tracer.Start(ctx, "scoring.Batch.Score", trace.WithAttributes(
		attribute.String("batch.id", result.ID),
		attribute.Int("batch.rows", len(rows)),
	))
	defer span.End()
	start := time.Now()
	log := e.logger.With(zap.String("batch_id", result.ID))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range rows {
		i := i
		g.Go(func() error {
			result.Rows[i].Index = i
			if err := gctx.Err(); err != nil {
				result.Rows[i].setErr(err)
				return nil
			}
			res, err := e.Score(gctx, rows[i])
			if err != nil {
				if core.IsFeatureContract(err) {
					return err
				}
				result.Rows[i].setErr(err)
				return nil
			}
			result.Rows[i].Result = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("batch aborted", zap.Error(err))
		return nil, err
	}

	var ok []*core.ScoringResult
	for _, row := range result.Rows {
		if row.OK() {
			ok = append(ok, row.Result)
			continue
		}
		result.Failed++
	}
	result.Report = GenerateReport(ok)
	e.metrics.ObserveBatch(len(ok), result.Failed, time.Since(start))

	span.SetAttributes(attribute.Int("batch.failed", result.Failed))
	log.Info("batch scored",
		zap.Int("rows", len(rows)),
		zap.Int("failed", result.Failed),
		zap.Int("flagged", result.Report.FlaggedCount),
		zap.Duration("took", time.Since(start)),
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if len(rows) > 0 && result.Failed == len(rows) {
		span.SetStatus(codes.Error, ErrAllRowsFailed.Error())
		return result, fmt.Errorf("%w: %d rows", ErrAllRowsFailed, len(rows))
	}
	return result, nil
}

func (r *RowResult) setErr(err error) {
	r.Err = err
	r.Error = err.Error()
	r.Code = errorStatus(err)
}
