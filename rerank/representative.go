package rerank

import (
	"context"
	"math"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/pipeline"
	"github.com/rushteam/activeseg/pkg/utils"
)

// Representative 在已排序的候选上做贪心多样性重排：
// 按顺序扫描，与任一已选候选的 embedding 距离小于 Threshold 的候选被跳过。
// 选满 Count 个即停止；不足 Count 时按原顺序从被跳过的候选中补齐。
// 输出为 已选（选中顺序）+ 其余（原顺序），长度与输入相同。
type Representative struct {
	Threshold float64

	// Count 需要选出的数量，<= 0 时扫描全部候选
	Count int
}

func (n *Representative) Name() string {
	return "rerank.representative"
}

func (n *Representative) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Representative) Process(
	_ context.Context,
	_ *core.RoundContext,
	candidates []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(candidates) == 0 || n.Threshold <= 0 {
		return candidates, nil
	}
	count := n.Count
	if count <= 0 || count > len(candidates) {
		count = len(candidates)
	}

	picked := make([]*core.Candidate, 0, count)
	used := make([]bool, len(candidates))
	for i, c := range candidates {
		if len(picked) == count {
			break
		}
		if c == nil || n.tooClose(c, picked) {
			continue
		}
		picked = append(picked, c)
		used[i] = true
	}

	// 补齐：多样性不足时仍要保证数量
	for i, c := range candidates {
		if len(picked) == count {
			break
		}
		if used[i] || c == nil {
			continue
		}
		c.PutLabel("representative", utils.Label{Value: "filled", Source: "rerank"})
		picked = append(picked, c)
		used[i] = true
	}

	out := picked
	for i, c := range candidates {
		if !used[i] && c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (n *Representative) tooClose(c *core.Candidate, picked []*core.Candidate) bool {
	if len(c.Embedding) == 0 {
		return false
	}
	for _, p := range picked {
		if len(p.Embedding) != len(c.Embedding) {
			continue
		}
		if Euclidean(c.Embedding, p.Embedding) < n.Threshold {
			return true
		}
	}
	return false
}

// Euclidean 返回两个等长向量的欧氏距离。
func Euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
