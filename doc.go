// Package activeseg 是语义分割的主动学习样本选择引擎。
//
// 设计要点：
// - Loop-first: 训练 → 打分选择 → 扩充已标注集合，样本池只在两次训练之间被修改
// - Strategy 可插拔: MC dropout / MC noise / core-set / CEAL / max-subset 区域选择共享同一契约
// - Pipeline 后处理: 选择结果在截断之前经过 filter / rank / rerank Node 链
// - 推理与训练都是远程服务（HTTP / TorchServe），本包只负责数据与调度
package activeseg

import (
	"github.com/rushteam/activeseg/active"
	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/dataset"
	"github.com/rushteam/activeseg/pipeline"
	"github.com/rushteam/activeseg/selection"
)

// 轻量 facade：便于直接 import "activeseg" 使用核心抽象。
type (
	ImageKey = core.ImageKey
	Model    = core.Model
	Trainer  = core.Trainer
	Pool     = dataset.Pool
	Selector = selection.Selector
	Loop     = active.Loop
	Pipeline = pipeline.Pipeline
	Node     = pipeline.Node
)

const (
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)

var (
	NewPool     = dataset.NewPool
	NewSelector = selection.New
	NewLoop     = active.NewLoop
	ParseMethod = selection.ParseMethod
)
