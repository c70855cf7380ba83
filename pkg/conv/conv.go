// Package conv 提供原始输入值到特征数值的转换，统一处理缺失标记与非法类型。
package conv

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Outcome 是一次转换的结论
type Outcome int

const (
	// Valid 得到了有限数值
	Valid Outcome = iota
	// Missing 值缺失或是缺失标记（nil / NaN / 空串 / "nan" 等），应走兜底值
	Missing
	// Invalid 类型不对或数值非法（±Inf），属于输入形态错误
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Missing:
		return "missing"
	default:
		return "invalid"
	}
}

// missingMarkers 是上游导出（CSV / pandas）常见的缺失值写法，比较时忽略大小写
var missingMarkers = map[string]struct{}{
	"":     {},
	"nan":  {},
	"null": {},
	"none": {},
	"na":   {},
	"n/a":  {},
}

// ToFloat64 将 any 转为 float64。
// 支持各类整数 / 浮点；bool 视为 1.0/0.0；json.Number 按数字解析。
func ToFloat64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case int16:
		return float64(val), true
	case int8:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint8:
		return float64(val), true
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ToFeatureValue 把一个原始输入值转换成特征数值并给出结论。
// 数字字符串（如 "12.5"）视为有效输入；其余字符串视为非法。
func ToFeatureValue(v any) (float64, Outcome) {
	if v == nil {
		return 0, Missing
	}
	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if _, missing := missingMarkers[strings.ToLower(trimmed)]; missing {
			return 0, Missing
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, Invalid
		}
		v = f
	}
	f, ok := ToFloat64(v)
	if !ok {
		return 0, Invalid
	}
	if math.IsNaN(f) {
		return 0, Missing
	}
	if math.IsInf(f, 0) {
		return 0, Invalid
	}
	return f, Valid
}
