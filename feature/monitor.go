package feature

import (
	"sync"
	"time"
)

// Monitor 监控特征使用情况：取值分布、兜底填充率、非法输入数。
// 打分引擎在每次成功解析后调用 Observe；实现必须是并发安全的。
type Monitor interface {
	Observe(v *Vector)
	RecordFeatureError(featureName string)
	GetFeatureStats(featureName string) (*FeatureStats, bool)
}

// FeatureStats 单个特征的监控快照
type FeatureStats struct {
	FeatureName    string
	UsageCount     int64
	ImputedCount   int64
	ErrorCount     int64
	ImputationRate float64
	Statistics     *FeatureStatistics
	LastUpdateTime time.Time
}

// MemoryFeatureMonitor 是内存特征监控实现。
// 每个特征只保留最近 maxSamples 个真实取值（不含兜底值），统计在读取时计算。
// 生产环境可以配合 Prometheus 暴露的 imputed 计数一起看。
type MemoryFeatureMonitor struct {
	mu         sync.RWMutex
	stats      map[string]*featureCounters
	maxSamples int
}

type featureCounters struct {
	usage      int64
	imputed    int64
	errors     int64
	samples    []float64
	next       int // 环形缓冲写指针
	lastUpdate time.Time
}

// NewMemoryFeatureMonitor 创建内存特征监控
func NewMemoryFeatureMonitor(maxSamples int) *MemoryFeatureMonitor {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	return &MemoryFeatureMonitor{
		stats:      make(map[string]*featureCounters),
		maxSamples: maxSamples,
	}
}

func (m *MemoryFeatureMonitor) counters(name string) *featureCounters {
	c := m.stats[name]
	if c == nil {
		c = &featureCounters{}
		m.stats[name] = c
	}
	return c
}

// Observe 记录一次解析后的特征向量
func (m *MemoryFeatureMonitor) Observe(v *Vector) {
	if v == nil {
		return
	}
	imputed := make(map[string]struct{}, len(v.imputed))
	for _, name := range v.imputed {
		imputed[name] = struct{}{}
	}
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, name := range v.contract.Columns {
		c := m.counters(name)
		c.usage++
		c.lastUpdate = now
		if _, ok := imputed[name]; ok {
			c.imputed++
			continue
		}
		if len(c.samples) < m.maxSamples {
			c.samples = append(c.samples, v.values[i])
		} else {
			c.samples[c.next] = v.values[i]
		}
		c.next = (c.next + 1) % m.maxSamples
	}
}

// RecordFeatureError 记录一次非法输入
func (m *MemoryFeatureMonitor) RecordFeatureError(featureName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.counters(featureName)
	c.errors++
	c.lastUpdate = time.Now()
}

// GetFeatureStats 返回特征监控快照（副本）
func (m *MemoryFeatureMonitor) GetFeatureStats(featureName string) (*FeatureStats, bool) {
	m.mu.RLock()
	c, ok := m.stats[featureName]
	if !ok {
		m.mu.RUnlock()
		return nil, false
	}
	out := &FeatureStats{
		FeatureName:    featureName,
		UsageCount:     c.usage,
		ImputedCount:   c.imputed,
		ErrorCount:     c.errors,
		LastUpdateTime: c.lastUpdate,
	}
	samples := make([]float64, len(c.samples))
	copy(samples, c.samples)
	m.mu.RUnlock()

	if out.UsageCount > 0 {
		out.ImputationRate = float64(out.ImputedCount) / float64(out.UsageCount)
	}
	out.Statistics = ComputeStatistics(samples)
	return out, true
}
