package filter

import (
	"context"
	"fmt"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/pkg/dsl"
)

// ExprFilter 用 CEL 表达式决定保留哪些候选：表达式为 true 的候选保留。
// Invert 为 true 时语义反转，表达式为 true 的候选被过滤。
type ExprFilter struct {
	Program *dsl.Program
	Invert  bool
}

// NewExprFilter 编译表达式，编译失败在配置加载阶段即返回。
func NewExprFilter(expr string, invert bool) (*ExprFilter, error) {
	if expr == "" {
		return nil, fmt.Errorf("filter.expr: empty expression")
	}
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("filter.expr %q: %w", expr, err)
	}
	return &ExprFilter{Program: prg, Invert: invert}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RoundContext, c *core.Candidate) (bool, error) {
	keep, err := f.Program.Evaluate(c, rctx)
	if err != nil {
		return false, err
	}
	if f.Invert {
		return keep, nil
	}
	return !keep, nil
}
