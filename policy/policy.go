// Package policy 把打分结果映射为业务动作（放行 / 监控 / 验证 / 人工审核 / 拦截）。
//
// 规则使用 CEL (Common Expression Language) 编写，按顺序匹配，第一条命中的规则生效。
// 打分失败时不会执行任何规则，直接进入人工审核：无法打分的交易不能被当作低风险放行。
package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/fraudkit/core"
)

// Action 业务动作
type Action string

const (
	ActionApprove             Action = "approve"
	ActionMonitor             Action = "monitor"
	ActionRequireVerification Action = "require_verification"
	ActionManualReview        Action = "manual_review"
	ActionBlock               Action = "block"
)

// Valid 是否为已知动作
func (a Action) Valid() bool {
	switch a {
	case ActionApprove, ActionMonitor, ActionRequireVerification, ActionManualReview, ActionBlock:
		return true
	}
	return false
}

// Rule 一条决策规则
//
// When 是返回 bool 的 CEL 表达式，可用变量：
//   - level: string，"Low" / "Medium" / "High"
//   - score: double，风险分 0~100
//   - confidence: double，置信度 0~100
//   - flagged: bool
//   - p_low / p_medium / p_high: double，最终类别概率
//
// 示例：
//   - `level == "High" && confidence > 90`
//   - `flagged && p_high > 0.3`
type Rule struct {
	When   string `yaml:"when" json:"when" validate:"required"`
	Action Action `yaml:"action" json:"action" validate:"required"`
	Reason string `yaml:"reason" json:"reason"`
}

// DefaultRules 默认决策表
func DefaultRules() []Rule {
	return []Rule{
		{When: `level == "High" && confidence > 90.0`, Action: ActionBlock, Reason: "High confidence fraud detected"},
		{When: `level == "High"`, Action: ActionManualReview, Reason: "High risk with moderate confidence"},
		{When: `level == "Medium" && score > 70.0`, Action: ActionRequireVerification, Reason: "Medium-high risk - require OTP"},
		{When: `level == "Medium"`, Action: ActionMonitor, Reason: "Medium risk - allow with monitoring"},
		{When: `level == "Low" && confidence > 95.0`, Action: ActionApprove, Reason: "Low risk with high confidence"},
		{When: `true`, Action: ActionMonitor, Reason: "Low risk with moderate confidence"},
	}
}

// Decision 决策结果
type Decision struct {
	Action    Action `json:"action"`
	Reason    string `json:"reason"`
	RiskLevel string `json:"risk_level,omitempty"`
	// Rule 命中的规则下标，-1 表示没有规则参与（打分失败或兜底）
	Rule int `json:"rule"`
}

// 无规则命中时的兜底
const (
	defaultAction = ActionMonitor
	defaultReason = "no rule matched"
)

type compiledRule struct {
	Rule
	prg cel.Program
}

// Policy 编译后的规则集，只读，可并发使用
type Policy struct {
	rules []compiledRule
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("level", cel.StringType),
		cel.Variable("score", cel.DoubleType),
		cel.Variable("confidence", cel.DoubleType),
		cel.Variable("flagged", cel.BoolType),
		cel.Variable("p_low", cel.DoubleType),
		cel.Variable("p_medium", cel.DoubleType),
		cel.Variable("p_high", cel.DoubleType),
		// 允许 confidence > 90 这种 double 与 int 的比较
		cel.CrossTypeNumericComparisons(true),
	)
}

// New 编译规则。表达式语法错误、非 bool 返回值或未知动作都是配置错误。
func New(rules []Rule) (*Policy, error) {
	env, err := newEnv()
	if err != nil {
		return nil, core.NewConfigurationError(core.ModulePolicy, err, "create cel env")
	}
	p := &Policy{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		if !r.Action.Valid() {
			return nil, core.NewConfigurationError(core.ModulePolicy, nil, "rule %d has unknown action %q", i, r.Action)
		}
		ast, issues := env.Compile(r.When)
		if issues != nil && issues.Err() != nil {
			return nil, core.NewConfigurationError(core.ModulePolicy, issues.Err(), "rule %d compile error", i)
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, core.NewConfigurationError(core.ModulePolicy, nil,
				"rule %d must return bool, got %v", i, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, core.NewConfigurationError(core.ModulePolicy, err, "rule %d program error", i)
		}
		p.rules = append(p.rules, compiledRule{Rule: r, prg: prg})
	}
	return p, nil
}

// Default 返回默认决策表编译出的 Policy
func Default() *Policy {
	p, err := New(DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("policy: default rules: %v", err))
	}
	return p
}

// Decide 根据打分结果做决策。
// err 非空（或结果为空）时一律人工审核；规则执行出错也按人工审核处理。
func (p *Policy) Decide(result *core.ScoringResult, err error) Decision {
	if err != nil || result == nil {
		reason := "scoring unavailable"
		if err != nil {
			reason = "scoring unavailable: " + err.Error()
		}
		return Decision{Action: ActionManualReview, Reason: reason, Rule: -1}
	}

	level := result.RiskLevel.String()
	input := map[string]any{
		"level":      level,
		"score":      result.RiskScore,
		"confidence": result.Confidence,
		"flagged":    result.Flagged,
		"p_low":      result.Probabilities[core.RiskLow],
		"p_medium":   result.Probabilities[core.RiskMedium],
		"p_high":     result.Probabilities[core.RiskHigh],
	}
	for i, r := range p.rules {
		out, _, err := r.prg.Eval(input)
		if err != nil {
			return Decision{Action: ActionManualReview, Reason: fmt.Sprintf("rule %d eval error: %v", i, err), RiskLevel: level, Rule: i}
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return Decision{Action: r.Action, Reason: r.Reason, RiskLevel: level, Rule: i}
		}
	}
	return Decision{Action: defaultAction, Reason: defaultReason, RiskLevel: level, Rule: -1}
}

// Rules 返回规则（副本）
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	for i, r := range p.rules {
		out[i] = r.Rule
	}
	return out
}
