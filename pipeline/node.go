// Package pipeline 把选择之后的候选后处理拆成可组合的 Node 链：
// 过滤（CEL 表达式、排除名单）、按分数排序、多样性重排、截断。
package pipeline

import (
	"context"

	"github.com/rushteam/activeseg/core"
)

// Kind 用于标记 Node 类型，方便观测与按阶段打点。
type Kind string

const (
	KindFilter      Kind = "filter"      // 过滤阶段：剔除不符合约束的候选
	KindRank        Kind = "rank"        // 排序阶段：按分数重新排序
	KindReRank      Kind = "rerank"      // 重排阶段：多样性 / 截断
	KindPostProcess Kind = "postprocess" // 后处理阶段：补充标签等
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用"输入 candidates -> 输出 candidates"的形态，Filter 截断、ReRank 重排都是同一接口。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RoundContext,
		candidates []*core.Candidate,
	) ([]*core.Candidate, error)
}
