// Package builders 在 init 中向 config 注册内置后处理 Node。
// 入口处 import _ "github.com/rushteam/activeseg/config/builders" 即可让配置驱动的 post 节点生效。
package builders

import (
	"fmt"

	"github.com/rushteam/activeseg/config"
	"github.com/rushteam/activeseg/filter"
	"github.com/rushteam/activeseg/pipeline"
	"github.com/rushteam/activeseg/pkg/conv"
	"github.com/rushteam/activeseg/rank"
	"github.com/rushteam/activeseg/rerank"
)

func init() {
	config.Register("filter.expr", buildExprFilterNode)
	config.Register("filter.exclude", buildExcludeFilterNode)
	config.Register("rank.score", buildScoreNode)
	config.Register("rank.fusion", buildFusionNode)
	config.Register("rerank.representative", buildRepresentativeNode)
	config.Register("rerank.diversity", buildDiversityNode)
	config.Register("rerank.topn", buildTopNNode)
}

func buildExprFilterNode(cfg map[string]any) (pipeline.Node, error) {
	expr := conv.Get(cfg, "expr", "")
	if expr == "" {
		return nil, fmt.Errorf("filter.expr: expr is required")
	}
	f, err := filter.NewExprFilter(expr, conv.Get(cfg, "invert", false))
	if err != nil {
		return nil, fmt.Errorf("filter.expr: %w", err)
	}
	return &filter.FilterNode{
		Filters: []filter.Filter{f},
		Strict:  conv.Get(cfg, "strict", true),
	}, nil
}

// filter.exclude 支持内联 keys 与存储中的名单（store_key，需先 config.BindStore）。
func buildExcludeFilterNode(cfg map[string]any) (pipeline.Node, error) {
	keys := conv.Keys(cfg["keys"])

	storeKey := conv.Get(cfg, "store_key", "")
	var adapter *filter.StoreAdapter
	if storeKey != "" {
		s := config.BoundStore()
		if s == nil {
			return nil, fmt.Errorf("filter.exclude: store_key %q set but no store is bound", storeKey)
		}
		adapter = filter.NewStoreAdapter(s)
	}
	return &filter.FilterNode{
		Filters: []filter.Filter{filter.NewExcludeFilter(keys, adapter, storeKey)},
		Strict:  conv.Get(cfg, "strict", true),
	}, nil
}

func buildScoreNode(cfg map[string]any) (pipeline.Node, error) {
	order, err := rank.ParseOrder(conv.Get(cfg, "order", "desc"))
	if err != nil {
		return nil, fmt.Errorf("rank.score: %w", err)
	}
	return &rank.ScoreNode{Order: order}, nil
}

func buildFusionNode(cfg map[string]any) (pipeline.Node, error) {
	items, ok := conv.Maps(cfg, "criteria")
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("rank.fusion: criteria not found or invalid")
	}
	criteria := make([]rank.Criterion, 0, len(items))
	for _, m := range items {
		key := conv.Get(m, "key", "")
		if key == "" {
			return nil, fmt.Errorf("rank.fusion: criterion without key")
		}
		criteria = append(criteria, rank.Criterion{
			Key:    key,
			Weight: conv.Float(m, "weight", 1),
			Invert: conv.Get(m, "invert", false),
		})
	}
	return &rank.FusionNode{Criteria: criteria}, nil
}

func buildRepresentativeNode(cfg map[string]any) (pipeline.Node, error) {
	th := conv.Float(cfg, "threshold", 0)
	if th < 0 {
		return nil, fmt.Errorf("rerank.representative: threshold must be >= 0")
	}
	return &rerank.Representative{
		Threshold: th,
		Count:     conv.Int(cfg, "count", 0),
	}, nil
}

func buildDiversityNode(cfg map[string]any) (pipeline.Node, error) {
	return &rerank.Diversity{
		LabelKey:    conv.Get(cfg, "label_key", "group"),
		MaxPerGroup: conv.Int(cfg, "max_per_group", 1),
	}, nil
}

func buildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	n := conv.Int(cfg, "n", 0)
	if n <= 0 {
		return nil, fmt.Errorf("rerank.topn: n must be positive")
	}
	return &rerank.TopNNode{N: n}, nil
}
