// Package conv 从 YAML 解析出的后处理节点配置（map[string]any）中取值。
// YAML 的整数解析为 int，JSON 的数字解析为 float64，这里统一兼容两者。
package conv

import (
	"fmt"
	"math"

	"github.com/rushteam/activeseg/core"
)

// Get 按 key 取 T，缺失或类型不符时返回 def。
func Get[T any](cfg map[string]any, key string, def T) T {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	t, ok := v.(T)
	if !ok {
		return def
	}
	return t
}

// Float 取浮点数，写成整数（如 `threshold: 1`）时也能取到。
func Float(cfg map[string]any, key string, def float64) float64 {
	if f, ok := ToFloat64(cfg[key]); ok {
		return f
	}
	return def
}

// Int 取整数；带小数部分的数字视为类型不符，返回 def。
func Int(cfg map[string]any, key string, def int) int {
	f, ok := ToFloat64(cfg[key])
	if !ok || f != math.Trunc(f) {
		return def
	}
	return int(f)
}

// ToFloat64 将数字类型转为 float64。
func ToFloat64(v any) (float64, bool) {
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
	case uint64:
		return float64(val), true
	case uint:
		return float64(val), true
	default:
		return 0, false
	}
}

// Keys 把 YAML 列表转为图像 key。字符串原样保留，数字按 "%.0f" 格式化，其他元素跳过。
func Keys(v any) []core.ImageKey {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]core.ImageKey, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, core.ImageKey(s))
			continue
		}
		if f, ok := ToFloat64(e); ok {
			out = append(out, core.ImageKey(fmt.Sprintf("%.0f", f)))
		}
	}
	return out
}

// Maps 取一个由对象组成的列表（如 rank.fusion 的 criteria），非对象元素跳过。
// key 不存在或不是列表时返回 false。
func Maps(cfg map[string]any, key string) ([]map[string]any, bool) {
	raw, ok := cfg[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, true
}
