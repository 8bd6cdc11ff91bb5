// Package title 提供片名归一化，用于片名解析、排除与去重时的比较键。
package title

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// yearRegex 匹配任意位置的 "(YYYY)" 年份标记（四位 ASCII 数字）。
var yearRegex = regexp.MustCompile(`\(\d{4}\)`)

// Normalize 将展示片名转为比较键：
//   - 删除所有 "(YYYY)" 标记，反复删除直到不再匹配，保证 "((1995)1995)" 这类嵌套输入也幂等
//   - 连续空白（含 Unicode 空白）合并为一个空格并去掉首尾空白
//   - 与区域设置无关的 case fold
//
// Normalize(Normalize(s)) == Normalize(s)。
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// Caser 有状态，不能跨 goroutine 共享，每次调用新建。
	out := cases.Fold().String(s)
	for yearRegex.MatchString(out) {
		out = yearRegex.ReplaceAllString(out, "")
	}
	return strings.Join(strings.Fields(out), " ")
}

// NormalizeAny 对 any 类型的原始值做归一化，非 string 视为空片名。
func NormalizeAny(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return Normalize(s)
}

// Equal 判断两个片名归一化后是否相同。
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
