package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/activeseg/core"
)

// Pipeline 是按顺序执行的 Node 链。
type Pipeline struct {
	Nodes []Node
}

// Run 依次执行各节点；nil Pipeline 原样返回输入。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RoundContext,
	candidates []*core.Candidate,
) ([]*core.Candidate, error) {
	if p == nil {
		return candidates, nil
	}
	cur := candidates
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// Len 返回节点数，nil Pipeline 为 0。
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Nodes)
}
