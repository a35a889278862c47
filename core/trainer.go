package core

import "context"

// TrainEntry 是一轮训练中的一个样本引用。
type TrainEntry struct {
	Key ImageKey

	// Weak 为 true 时 Label 是伪标注，训练方不应读取存储中的真值
	Weak  bool
	Label *LabelMap

	// Regions 非空时只有这些区域参与损失计算
	Regions []Region
}

// TrainRound 描述一轮训练请求。
type TrainRound struct {
	RunID     string
	Iteration int

	// ResetModel 为 true 时从头初始化参数，否则在上一轮权重上继续训练
	ResetModel bool

	// Mode 是训练模式名（reset_model / query_only / mixed），供训练方记录
	Mode string

	Entries []TrainEntry
}

// TrainResult 是一轮训练的结果。
type TrainResult struct {
	Loss    float64
	Epochs  int
	Metrics map[string]float64
}

// Trainer 是外部训练循环的抽象：拥有模型参数，按样本清单训练一轮。
// 训练完成后，用于选择的 Model 应反映最新权重。
type Trainer interface {
	Train(ctx context.Context, round *TrainRound) (*TrainResult, error)
}
