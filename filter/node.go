package filter

import (
	"context"
	"log/slog"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/pipeline"
	"github.com/rushteam/activeseg/pkg/utils"
)

// FilterNode 是过滤 Node，可以组合多个过滤器。
// 任何一个过滤器返回 true，该候选就会被过滤掉；保留的候选维持原有顺序。
type FilterNode struct {
	Filters []Filter

	// Strict 为 true 时过滤器出错直接返回错误；否则记录日志并视为保留
	Strict bool

	Logger *slog.Logger
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RoundContext,
	candidates []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(n.Filters) == 0 || len(candidates) == 0 {
		return candidates, nil
	}

	out := make([]*core.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}

		shouldFilter := false
		filterReason := ""

		// 依次检查每个过滤器
		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, rctx, c)
			if err != nil {
				if n.Strict {
					return nil, err
				}
				n.logger().Warn("filter error, keeping candidate", "filter", f.Name(), "key", c.Key, "error", err)
				continue
			}
			if ok {
				shouldFilter = true
				filterReason = f.Name()
				break
			}
		}

		if shouldFilter {
			// 记录过滤原因，用于调试与观测
			c.PutLabel("filtered", utils.Label{Value: "true", Source: filterReason})
			continue
		}
		out = append(out, c)
	}

	return out, nil
}

func (n *FilterNode) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}
