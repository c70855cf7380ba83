package config

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/feature"
	"github.com/rushteam/fraudkit/metrics"
	"github.com/rushteam/fraudkit/model"
	"github.com/rushteam/fraudkit/policy"
	"github.com/rushteam/fraudkit/scoring"
	"github.com/rushteam/fraudkit/stats"
)

// Runtime 是按配置组装好的打分组件
type Runtime struct {
	Bundle  *model.Bundle
	Engine  *scoring.Engine
	Batch   *scoring.Batch
	Policy  *policy.Policy
	Stats   stats.Sink
	Monitor feature.Monitor
	Metrics *metrics.Scoring
}

// Close 释放外部连接
func (r *Runtime) Close() error {
	if rs, ok := r.Stats.(*stats.Redis); ok {
		return rs.Close()
	}
	return nil
}

// Decide 执行决策规则并记录决策指标
func (r *Runtime) Decide(result *core.ScoringResult, err error) policy.Decision {
	d := r.Policy.Decide(result, err)
	r.Metrics.ObserveDecision(string(d.Action))
	return d
}

// Loader 按配置返回工件加载器
func (c *Config) Loader() (model.Loader, error) {
	switch c.Artifacts.Loader {
	case "file":
		return model.NewFileLoader(), nil
	case "http":
		return model.NewHTTPLoader(time.Duration(c.Artifacts.TimeoutSec) * time.Second), nil
	default:
		return nil, core.NewConfigurationError(core.ModuleConfig, nil, "unknown artifacts.loader %q", c.Artifacts.Loader)
	}
}

// Build 加载工件并组装全部组件。reg 为 nil 时不注册指标。
// 任何失败都是 CONFIGURATION 错误，进程不应继续提供服务。
func (c *Config) Build(ctx context.Context, logger *zap.Logger, reg prometheus.Registerer) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loader, err := c.Loader()
	if err != nil {
		return nil, err
	}
	bundle, err := model.LoadBundle(ctx, loader, c.Artifacts.Source)
	if err != nil {
		return nil, err
	}
	return c.BuildWithBundle(ctx, bundle, logger, reg)
}

// BuildWithBundle 用已加载的工件组装组件
func (c *Config) BuildWithBundle(ctx context.Context, bundle *model.Bundle, logger *zap.Logger, reg prometheus.Registerer) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Runtime{Bundle: bundle}

	switch c.Stats.Driver {
	case "redis":
		rs, err := stats.DialRedis(ctx, c.Stats.Redis.Addr, c.Stats.Redis.DB, c.Stats.Redis.Key,
			stats.WithRedisLogger(logger))
		if err != nil {
			return nil, err
		}
		rt.Stats = rs
	default:
		rt.Stats = stats.NewAtomic()
	}

	if reg != nil {
		rt.Metrics = metrics.NewScoring()
		if err := rt.Metrics.Register(reg); err != nil {
			_ = rt.Close()
			return nil, core.NewConfigurationError(core.ModuleConfig, err, "register metrics")
		}
	}

	scorer, err := c.RiskScorer()
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	opts := []scoring.Option{
		scoring.WithStats(rt.Stats),
		scoring.WithScorer(scorer),
		scoring.WithMetrics(rt.Metrics),
		scoring.WithLogger(logger),
		scoring.WithSignals(c.Scoring.Signals),
	}
	if c.Monitor.Enabled {
		rt.Monitor = feature.NewMemoryFeatureMonitor(c.Monitor.Samples)
		opts = append(opts, scoring.WithMonitor(rt.Monitor))
	}
	rt.Engine, err = scoring.NewEngine(bundle, opts...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Batch = scoring.NewBatch(rt.Engine,
		scoring.WithWorkers(c.Batch.Workers),
		scoring.WithMaxRows(c.Batch.MaxRows),
	)

	rt.Policy, err = policy.New(c.Policy.Rules)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	logger.Info("fraud scoring runtime ready",
		zap.String("env", c.Env),
		zap.String("model_version", bundle.Version),
		zap.String("stats_driver", c.Stats.Driver),
		zap.Int("policy_rules", len(c.Policy.Rules)),
	)
	return rt, nil
}
