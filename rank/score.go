// Package rank 负责候选的稳定排序与多指标融合打分。
package rank

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/pipeline"
	"github.com/rushteam/activeseg/pkg/utils"
)

// Order 是排序方向。
type Order int

const (
	Descending Order = iota // 分数越大越优先（方差、熵）
	Ascending               // 分数越小越优先（置信度、margin、准确率）
)

func (o Order) String() string {
	if o == Ascending {
		return "asc"
	}
	return "desc"
}

// ParseOrder 解析 "asc" / "desc"，空字符串为 desc。
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "desc", "descending":
		return Descending, nil
	case "asc", "ascending":
		return Ascending, nil
	}
	return Descending, fmt.Errorf("unknown order %q", s)
}

// Worst 返回该方向下排在最后的哨兵分数。
func (o Order) Worst() float64 {
	if o == Ascending {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// Sort 按分数稳定排序：分数相同时保持输入顺序。
// NaN 分数先替换为该方向的最差哨兵值，不进入比较器。nil 候选排在最后。
func Sort(candidates []*core.Candidate, order Order) {
	for _, c := range candidates {
		if c != nil && math.IsNaN(c.Score) {
			c.Score = order.Worst()
			c.PutLabel("score_sanitized", utils.Label{Value: "nan", Source: "rank"})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i] == nil {
			return false
		}
		if candidates[j] == nil {
			return true
		}
		if order == Ascending {
			return candidates[i].Score < candidates[j].Score
		}
		return candidates[i].Score > candidates[j].Score
	})
}

// ScoreNode 按 Score 稳定排序的 Node。
type ScoreNode struct {
	Order Order
}

func (n *ScoreNode) Name() string        { return "rank.score" }
func (n *ScoreNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *ScoreNode) Process(
	_ context.Context,
	_ *core.RoundContext,
	candidates []*core.Candidate,
) ([]*core.Candidate, error) {
	Sort(candidates, n.Order)
	return candidates, nil
}
