// Package config 加载打分服务配置（YAML），并据此组装引擎、批量打分、策略与统计。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/policy"
	"github.com/rushteam/fraudkit/scoring"
)

// Config 打分服务配置
//
//	env: prod
//	logging:
//	  level: info
//	artifacts:
//	  source: ${FRAUD_BUNDLE:-artifacts/fraud_bundle.json}
//	  loader: file
//	scoring:
//	  weights: {low: 0, medium: 0.5, high: 1}
//	batch:
//	  workers: 8
//	  max_rows: 10000
//	stats:
//	  driver: redis
//	  redis: {addr: localhost:6379, db: 0, key: "fraudkit:session"}
//	policy:
//	  rules:
//	    - when: 'level == "High" && confidence > 90'
//	      action: block
//	      reason: High confidence fraud detected
type Config struct {
	Env       string          `yaml:"env" validate:"oneof=local dev test prod"`
	Logging   LoggingConfig   `yaml:"logging"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Batch     BatchConfig     `yaml:"batch"`
	Stats     StatsConfig     `yaml:"stats"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Policy    PolicyConfig    `yaml:"policy"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"` // 为空时由 env 决定
}

// ArtifactsConfig 模型工件位置
type ArtifactsConfig struct {
	Source     string `yaml:"source" validate:"required"`
	Loader     string `yaml:"loader" validate:"oneof=file http"` // 默认 file
	TimeoutSec int    `yaml:"timeout_sec" validate:"gte=0"`
}

// WeightsConfig 风险分权重
type WeightsConfig struct {
	Low    float64 `yaml:"low" validate:"gte=0,lte=1"`
	Medium float64 `yaml:"medium" validate:"gte=0,lte=1"`
	High   float64 `yaml:"high" validate:"gte=0,lte=1"`
}

// ScoringConfig 打分配置
type ScoringConfig struct {
	Weights WeightsConfig `yaml:"weights"`
	// Signals 结果中附带每个专家模型的概率
	Signals bool `yaml:"signals"`
}

// BatchConfig 批量打分配置
type BatchConfig struct {
	Workers int `yaml:"workers" validate:"gte=0"` // 0 = GOMAXPROCS
	MaxRows int `yaml:"max_rows" validate:"gte=0"`
}

// StatsConfig 会话统计配置
type StatsConfig struct {
	Driver string      `yaml:"driver" validate:"oneof=memory redis"` // 默认 memory
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig Redis 连接
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db" validate:"gte=0"`
	Key  string `yaml:"key"`
}

// MonitorConfig 特征监控
type MonitorConfig struct {
	Enabled bool `yaml:"enabled"`
	Samples int  `yaml:"samples" validate:"gte=0"`
}

// PolicyConfig 决策规则；为空时使用 policy.DefaultRules()
type PolicyConfig struct {
	Rules []policy.Rule `yaml:"rules" validate:"dive"`
}

var validate = validator.New()

// Load 读取 YAML 配置：展开 ${VAR} / ${VAR:-default}，填充默认值并校验。
// 任何失败都是 CONFIGURATION 错误。
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, core.NewConfigurationError(core.ModuleConfig, err, "read config %s", path)
	}
	return Parse(data)
}

// Parse 解析 YAML 配置内容
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, core.NewConfigurationError(core.ModuleConfig, err, "parse config")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default 返回只设置了工件位置的默认配置
func Default(source string) Config {
	cfg := Config{Artifacts: ArtifactsConfig{Source: source}}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults 为空字段填默认值
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = "local"
	}
	if c.Artifacts.Loader == "" {
		c.Artifacts.Loader = "file"
	}
	if c.Artifacts.TimeoutSec <= 0 {
		c.Artifacts.TimeoutSec = 10
	}
	// 全零权重没有意义，视为未配置
	if c.Scoring.Weights == (WeightsConfig{}) {
		c.Scoring.Weights = WeightsConfig{
			Low:    scoring.DefaultLowWeight,
			Medium: scoring.DefaultMediumWeight,
			High:   scoring.DefaultHighWeight,
		}
	}
	if c.Batch.MaxRows <= 0 {
		c.Batch.MaxRows = scoring.DefaultMaxRows
	}
	if c.Stats.Driver == "" {
		c.Stats.Driver = "memory"
	}
	if c.Monitor.Samples <= 0 {
		c.Monitor.Samples = 1000
	}
	if len(c.Policy.Rules) == 0 {
		c.Policy.Rules = policy.DefaultRules()
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return core.NewConfigurationError(core.ModuleConfig, err, "invalid config")
	}
	if c.Stats.Driver == "redis" && c.Stats.Redis.Addr == "" {
		return core.NewConfigurationError(core.ModuleConfig, nil, "stats.redis.addr is required when stats.driver is redis")
	}
	if _, err := c.RiskScorer(); err != nil {
		return err
	}
	for i, r := range c.Policy.Rules {
		if !r.Action.Valid() {
			return core.NewConfigurationError(core.ModuleConfig, nil, "policy.rules[%d].action %q is unknown", i, r.Action)
		}
	}
	return nil
}

// RiskScorer 由权重配置构建风险分映射
func (c *Config) RiskScorer() (scoring.RiskScorer, error) {
	w := c.Scoring.Weights
	s, err := scoring.NewRiskScorer(w.Low, w.Medium, w.High)
	if err != nil {
		return scoring.RiskScorer{}, core.NewConfigurationError(core.ModuleConfig, err, "scoring.weights")
	}
	return s, nil
}

// expandEnvVars 把 ${VAR} 与 ${VAR:-default} 替换为环境变量的值
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, def, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = def
		}
		return []byte(val)
	})
}

func (c Config) String() string {
	return fmt.Sprintf("env=%s artifacts=%s(%s) stats=%s workers=%d max_rows=%d rules=%d",
		c.Env, c.Artifacts.Source, c.Artifacts.Loader, c.Stats.Driver, c.Batch.Workers, c.Batch.MaxRows, len(c.Policy.Rules))
}
