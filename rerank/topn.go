package rerank

import (
	"context"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，用于在排序后截取前 N 个候选。
// 通常放在后处理链的最后；选择器自身也会按 selection_count 截断。
//
// 示例：
//
//	pipeline := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &filter.FilterNode{...},        // 过滤
//	        &rerank.Representative{...},    // 多样性重排
//	        &rerank.TopNNode{N: 50},        // 截取 Top 50
//	    },
//	}
type TopNNode struct {
	// N 要保留的候选数量，N <= 0 时不截断
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RoundContext,
	candidates []*core.Candidate,
) ([]*core.Candidate, error) {
	if n.N <= 0 || len(candidates) <= n.N {
		return candidates, nil
	}
	return candidates[:n.N], nil
}
