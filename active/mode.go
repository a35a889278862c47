package active

import (
	"fmt"

	"github.com/rushteam/activeseg/core"
)

// TrainMode 决定每轮 EXPANDING→TRAINING 时模型参数与训练集合的处理方式。
type TrainMode string

const (
	// TrainResetModel 每轮从头初始化参数，在全部已标注样本上训练
	TrainResetModel TrainMode = "reset_model"
	// TrainQueryOnly 保留权重，只在最近一次扩充的样本上训练，复制到一个完整 epoch 的长度
	TrainQueryOnly TrainMode = "query_only"
	// TrainMixed 保留权重，在全部已标注样本上训练，最近扩充的样本额外复制
	TrainMixed TrainMode = "mixed"
)

// TrainModes 返回全部训练模式。
func TrainModes() []TrainMode {
	return []TrainMode{TrainResetModel, TrainQueryOnly, TrainMixed}
}

// ParseTrainMode 解析训练模式，空字符串为 reset_model。
func ParseTrainMode(s string) (TrainMode, error) {
	if s == "" {
		return TrainResetModel, nil
	}
	for _, m := range TrainModes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", core.Errorf(core.ModuleActive, core.ErrorCodeInvalidInput,
		"active: unknown train mode %q (supported: %v)", s, TrainModes())
}

// State 是主动学习循环的状态。
type State int

const (
	StateTraining State = iota
	StateSelecting
	StateExpanding
	StateDone
)

func (s State) String() string {
	switch s {
	case StateTraining:
		return "TRAINING"
	case StateSelecting:
		return "SELECTING"
	case StateExpanding:
		return "EXPANDING"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
