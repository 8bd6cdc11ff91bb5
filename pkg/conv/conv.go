// Package conv 提供类型转换工具：把数据源返回的弱类型值（DuckDB 扫描结果、BSON、JSON）
// 与 YAML/JSON 配置中的值转换为强类型。
package conv

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// jsonNumber 兼容 encoding/json 与 goccy/go-json 的 Number 类型（二者都实现 String）。
type jsonNumber interface {
	String() string
	Float64() (float64, error)
	Int64() (int64, error)
}

// ToFloat64 将 any 转为 float64。
// 支持各类整数/浮点、数字字符串、[]byte、json.Number；bool 视为转换失败。
// NaN 与 Inf 视为转换失败。
func ToFloat64(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case int32:
		f = float64(val)
	case int16:
		f = float64(val)
	case int8:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint64:
		f = float64(val)
	case uint32:
		f = float64(val)
	case uint16:
		f = float64(val)
	case uint8:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case []byte:
		return ToFloat64(string(val))
	case jsonNumber:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToInt64 将 any 转为 int64。
// 浮点与数字字符串必须是整数值（1.0 可以，1.5 不行），以免 id 被静默截断。
func ToInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int16:
		return int64(val), true
	case int8:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint:
		if uint64(val) > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case string:
		s := strings.TrimSpace(val)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	case []byte:
		return ToInt64(string(val))
	case jsonNumber:
		if i, err := val.Int64(); err == nil {
			return i, true
		}
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	case bool:
		return 0, false
	default:
		f, ok := ToFloat64(v)
		if !ok {
			return 0, false
		}
		return floatToInt64(f)
	}
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// ToInt 将 any 转为 int，规则同 ToInt64。
func ToInt(v any) (int, bool) {
	i, ok := ToInt64(v)
	if !ok || int64(int(i)) != i {
		return 0, false
	}
	return int(i), true
}

// ToString 将 any 转为 string。
// 支持 string、[]byte、fmt.Stringer；其余类型返回 ("", false)。
func ToString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case []byte:
		return string(val), true
	case fmt.Stringer:
		return val.String(), true
	default:
		return "", false
	}
}

// ToOptionalString 把可空文本字段转为 *string：nil、非字符串与空白字符串都返回 nil。
func ToOptionalString(v any) *string {
	s, ok := ToString(v)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// ToStringSlice 把列表字段转为 []string。
// 支持 []string、[]any（元素需为字符串）以及按 sep 分隔的字符串（如 "Action|Comedy"）。
func ToStringSlice(v any, sep string) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return val
	case []any:
		return ConvertSlice(val, func(e any) (string, bool) {
			s, ok := ToString(e)
			return s, ok && s != ""
		})
	default:
		s, ok := ToString(v)
		if !ok || s == "" {
			return nil
		}
		parts := strings.Split(s, sep)
		return ConvertSlice(parts, func(p string) (string, bool) {
			p = strings.TrimSpace(p)
			return p, p != ""
		})
	}
}

// ConvertSlice 将 []T 按 convert 转为 []U，convert 返回 false 的元素被跳过。
func ConvertSlice[T, U any](s []T, convert func(T) (U, bool)) []U {
	if s == nil {
		return nil
	}
	out := make([]U, 0, len(s))
	for _, v := range s {
		if u, ok := convert(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// SliceAnyToString 将 []any（即 []interface{}）转为 []string。
// 元素为 string 直接保留，为数字时格式化为 "%.0f"。
func SliceAnyToString(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	return ConvertSlice(raw, func(e any) (string, bool) {
		if s, ok := e.(string); ok {
			return s, true
		}
		if f, ok := ToFloat64(e); ok {
			return fmt.Sprintf("%.0f", f), true
		}
		return "", false
	})
}

// ConfigGet 从 map[string]any（如 YAML/JSON 解析结果）按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	if m == nil {
		return defaultVal
	}
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigGetInt64 从 config 取 int64。YAML/JSON 常得到 int 或 float64，此处兼容并统一为 int64。
func ConfigGetInt64(m map[string]any, key string, defaultVal int64) int64 {
	if m == nil {
		return defaultVal
	}
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	if i, ok := ToInt64(v); ok {
		return i
	}
	return defaultVal
}
