// Package metrics 定义打分引擎的 Prometheus 指标。
//
// 指标不注册到全局 registry，由调用方显式 Register，便于测试和多实例。
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fraudkit"

// Scoring 打分相关指标
type Scoring struct {
	RequestsTotal   *prometheus.CounterVec
	RiskLevelTotal  *prometheus.CounterVec
	ScoreDuration   prometheus.Histogram
	RiskScore       prometheus.Histogram
	ImputedTotal    *prometheus.CounterVec
	BatchRowsTotal  *prometheus.CounterVec
	BatchDuration   prometheus.Histogram
	PolicyDecisions *prometheus.CounterVec
}

// NewScoring 创建指标（未注册）
func NewScoring() *Scoring {
	return &Scoring{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "score_requests_total",
				Help:      "Total number of scoring calls by outcome",
			},
			[]string{"status"}, // ok / SCORING / VALIDATION / FEATURE_CONTRACT / ...
		),
		RiskLevelTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "risk_level_total",
				Help:      "Scored transactions by predicted risk level",
			},
			[]string{"level"},
		),
		ScoreDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "score_duration_seconds",
				Help:      "Single transaction scoring duration in seconds",
				Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.25, 1},
			},
		),
		RiskScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "risk_score",
				Help:      "Distribution of risk scores",
				Buckets:   prometheus.LinearBuckets(10, 10, 9),
			},
		),
		ImputedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imputed_features_total",
				Help:      "Features filled with their training fallback",
			},
			[]string{"feature"},
		),
		BatchRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_rows_total",
				Help:      "Batch rows by outcome",
			},
			[]string{"result"}, // "ok" / "failed"
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Batch scoring duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		PolicyDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_decisions_total",
				Help:      "Policy decisions by action",
			},
			[]string{"action"},
		),
	}
}

// Register 注册全部指标。重复注册同一实例不会报错，同名的其他实例会报错。
func (s *Scoring) Register(reg prometheus.Registerer) error {
	for _, c := range s.collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) && are.ExistingCollector == c {
				continue
			}
			return err
		}
	}
	return nil
}

func (s *Scoring) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.RequestsTotal, s.RiskLevelTotal, s.ScoreDuration, s.RiskScore,
		s.ImputedTotal, s.BatchRowsTotal, s.BatchDuration, s.PolicyDecisions,
	}
}

// ObserveScore 记录一次成功打分
func (s *Scoring) ObserveScore(level string, score float64, imputed []string, d time.Duration) {
	if s == nil {
		return
	}
	s.RequestsTotal.WithLabelValues("ok").Inc()
	s.RiskLevelTotal.WithLabelValues(level).Inc()
	s.RiskScore.Observe(score)
	s.ScoreDuration.Observe(d.Seconds())
	for _, f := range imputed {
		s.ImputedTotal.WithLabelValues(f).Inc()
	}
}

// ObserveError 记录一次失败的打分，status 为错误代码
func (s *Scoring) ObserveError(status string, d time.Duration) {
	if s == nil {
		return
	}
	s.RequestsTotal.WithLabelValues(status).Inc()
	s.ScoreDuration.Observe(d.Seconds())
}

// ObserveBatch 记录一次批量打分
func (s *Scoring) ObserveBatch(ok, failed int, d time.Duration) {
	if s == nil {
		return
	}
	s.BatchRowsTotal.WithLabelValues("ok").Add(float64(ok))
	s.BatchRowsTotal.WithLabelValues("failed").Add(float64(failed))
	s.BatchDuration.Observe(d.Seconds())
}

// ObserveDecision 记录一次策略决策
func (s *Scoring) ObserveDecision(action string) {
	if s == nil {
		return
	}
	s.PolicyDecisions.WithLabelValues(action).Inc()
}
