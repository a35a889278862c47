package rerank

import (
	"context"
	"strings"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/pipeline"
)

// Diversity 限制同一分组在结果前部出现的次数，超出的候选按原顺序移到末尾（不丢弃，保证数量）。
// 分组来源优先级：
// - label[LabelKey].Value
// - meta[LabelKey] (string)
// - key 中第一个 "/" 之前的部分（例如 cityscapes 的城市名）
type Diversity struct {
	LabelKey    string // 默认 "group"
	MaxPerGroup int    // <= 0 时为 1
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RoundContext,
	candidates []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	key := n.LabelKey
	if key == "" {
		key = "group"
	}
	limit := max(n.MaxPerGroup, 1)

	seen := make(map[string]int, 32)
	out := make([]*core.Candidate, 0, len(candidates))
	var overflow []*core.Candidate

	for _, c := range candidates {
		if c == nil {
			continue
		}
		group := groupOf(c, key)
		if group == "" {
			out = append(out, c)
			continue
		}
		if seen[group] >= limit {
			overflow = append(overflow, c)
			continue
		}
		seen[group]++
		out = append(out, c)
	}

	return append(out, overflow...), nil
}

func groupOf(c *core.Candidate, key string) string {
	if c.Labels != nil {
		if lbl, ok := c.Labels[key]; ok && lbl.Value != "" {
			return lbl.Value
		}
	}
	if c.Meta != nil {
		if s, ok := c.Meta[key].(string); ok && s != "" {
			return s
		}
	}
	if i := strings.IndexByte(string(c.Key), '/'); i > 0 {
		return string(c.Key[:i])
	}
	return ""
}
