package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 错误分类：
//   - CONFIGURATION：致命，进程无法提供服务（工件缺失、特征契约不匹配）
//   - FEATURE_CONTRACT：单次调用致命，某特征既无取值也无兜底值，说明上游管道有缺陷
//   - SCORING：单次调用可恢复，模型内部数值失败；调用方必须走安全兜底（人工审核），不能默认放行
//   - VALIDATION：单次调用可恢复，输入形态错误（例如特征类型不对）
type DomainError struct {
	Code    string // 错误代码（如 "SCORING", "VALIDATION"）
	Message string // 错误消息
	Module  string // 模块名称（如 "feature", "model", "scoring"）
	Err     error  // 底层错误，可为 nil
	Feature string // 出错的特征名（仅特征相关错误）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// 错误代码常量
const (
	ErrorCodeConfiguration   = "CONFIGURATION"
	ErrorCodeFeatureContract = "FEATURE_CONTRACT"
	ErrorCodeScoring         = "SCORING"
	ErrorCodeValidation      = "VALIDATION"
)

// 模块名称常量
const (
	ModuleFeature = "feature"
	ModuleModel   = "model"
	ModuleScoring = "scoring"
	ModuleStats   = "stats"
	ModulePolicy  = "policy"
	ModuleConfig  = "config"
)

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// NewConfigurationError 创建配置错误，err 可为 nil。
func NewConfigurationError(module string, err error, format string, args ...any) *DomainError {
	return &DomainError{Module: module, Code: ErrorCodeConfiguration, Message: fmt.Sprintf(format, args...), Err: err}
}

// NewFeatureContractError 创建特征契约错误。
func NewFeatureContractError(feature string) *DomainError {
	return &DomainError{
		Module:  ModuleFeature,
		Code:    ErrorCodeFeatureContract,
		Feature: feature,
		Message: fmt.Sprintf("feature %q is required but has no value and no fallback", feature),
	}
}

// NewScoringError 创建打分错误。
func NewScoringError(module string, err error, format string, args ...any) *DomainError {
	return &DomainError{Module: module, Code: ErrorCodeScoring, Message: fmt.Sprintf(format, args...), Err: err}
}

// NewValidationError 创建输入校验错误。
func NewValidationError(module string, format string, args ...any) *DomainError {
	return &DomainError{Module: module, Code: ErrorCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// GetDomainError 沿错误链查找 DomainError，找不到返回 nil
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// IsDomainError 检查错误链中是否包含 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsConfiguration 检查错误是否为 CONFIGURATION
func IsConfiguration(err error) bool { return hasCode(err, ErrorCodeConfiguration) }

// IsFeatureContract 检查错误是否为 FEATURE_CONTRACT
func IsFeatureContract(err error) bool { return hasCode(err, ErrorCodeFeatureContract) }

// IsScoring 检查错误是否为 SCORING
func IsScoring(err error) bool { return hasCode(err, ErrorCodeScoring) }

// IsValidation 检查错误是否为 VALIDATION
func IsValidation(err error) bool { return hasCode(err, ErrorCodeValidation) }

// IsRowRecoverable 表示错误只影响当前这一笔交易（批量时记录后继续）。
func IsRowRecoverable(err error) bool {
	return IsScoring(err) || IsValidation(err)
}
