package core

import "github.com/rushteam/activeseg/pkg/utils"

// Candidate 是选择链路中的统一承载结构：分数、embedding、元信息、标签。
// Labels 用于解释与观测；Score 用于排序决策。
type Candidate struct {
	Key       ImageKey
	Score     float64
	Embedding []float64
	Meta      map[string]any
	Labels    map[string]utils.Label
}

func NewCandidate(key ImageKey) *Candidate {
	return &Candidate{
		Key:    key,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// NewScoredCandidate 由推理统计量构造候选，Scalar 作为分数。
func NewScoredCandidate(sv ScoreVector) *Candidate {
	c := NewCandidate(sv.Key)
	c.Score = sv.Scalar
	if sv.Height > 0 && sv.Width > 0 {
		c.Meta["pixels"] = sv.Height * sv.Width
	}
	return c
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (c *Candidate) PutLabel(key string, lbl utils.Label) {
	if c.Labels == nil {
		c.Labels = make(map[string]utils.Label)
	}
	if old, ok := c.Labels[key]; ok {
		c.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	c.Labels[key] = lbl
}

// Keys 按顺序取出候选的 key。
func Keys(cands []*Candidate) []ImageKey {
	out := make([]ImageKey, 0, len(cands))
	for _, c := range cands {
		if c != nil {
			out = append(out, c.Key)
		}
	}
	return out
}
