package core

import "github.com/rushteam/activeseg/pkg/utils"

// RoundContext 承载一轮主动选择的上下文，贯穿 Selector 与后处理 Pipeline 透传。
// 它是样本池的只读快照：选择策略永远不直接修改样本池。
type RoundContext struct {
	RunID     string
	Iteration int

	// Labeled 是当前已标注集合的快照（core-set 需要）
	Labeled []ImageKey

	// Regions 是已标注区域（region 模式下 max-subset 用于跳过已覆盖区域）
	Regions map[ImageKey][]Region

	// Labels 是轮次级标签，可驱动后处理节点行为
	Labels map[string]utils.Label

	// Params 轮次级参数，例如 CEL 过滤表达式中引用的阈值
	Params map[string]any
}

// PutLabel 写入轮次级 Label。
func (rctx *RoundContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取轮次级 Label。
func (rctx *RoundContext) GetLabel(key string) (utils.Label, bool) {
	if rctx == nil || rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
