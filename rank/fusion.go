package rank

import (
	"context"
	"math"
	"strconv"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/pipeline"
	"github.com/rushteam/activeseg/pkg/utils"
)

// Criterion 是参与融合的一个指标：取 candidate.Meta[Key] 的数值。
// Invert 为 true 表示数值越小越有信息量（置信度、margin）。
type Criterion struct {
	Key    string
	Weight float64
	Invert bool
}

// FusionNode 对多个指标做 min-max 归一化后加权求和，写入 Score 并降序排序。
// 缺失或非有限的指标按 0 贡献。
type FusionNode struct {
	Criteria []Criterion
}

func (n *FusionNode) Name() string        { return "rank.fusion" }
func (n *FusionNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *FusionNode) Process(
	_ context.Context,
	_ *core.RoundContext,
	candidates []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(n.Criteria) == 0 || len(candidates) == 0 {
		return candidates, nil
	}

	fused := make([]float64, len(candidates))
	for _, cr := range n.Criteria {
		values := make([]float64, len(candidates))
		for i, c := range candidates {
			values[i] = metaFloat(c, cr.Key)
		}
		for i, v := range MinMaxNormalize(values) {
			if math.IsNaN(v) {
				continue
			}
			if cr.Invert {
				v = 1 - v
			}
			fused[i] += cr.Weight * v
		}
	}

	for i, c := range candidates {
		c.Score = fused[i]
		c.PutLabel("rank_fusion", utils.Label{Value: strconv.FormatFloat(fused[i], 'g', 6, 64), Source: "rank"})
	}
	Sort(candidates, Descending)
	return candidates, nil
}

func metaFloat(c *core.Candidate, key string) float64 {
	if c == nil || c.Meta == nil {
		return math.NaN()
	}
	switch v := c.Meta[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return math.NaN()
}

// MinMaxNormalize 把有限值线性映射到 [0,1]；所有有限值相等时映射为 0。
// 非有限值保持 NaN，也不参与 min/max 的计算。
func MinMaxNormalize(values []float64) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			out[i] = math.NaN()
		case hi > lo:
			out[i] = (v - lo) / (hi - lo)
		}
	}
	return out
}
