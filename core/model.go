package core

import "context"

// InferenceMode 显式指定推理模式，代替模型上的全局 train/eval 开关。
// 推理永远不计算梯度；Stochastic 只表示保留 dropout 等随机层。
type InferenceMode int

const (
	ModeDeterministic InferenceMode = iota // eval 模式，随机层关闭
	ModeStochastic                         // eval 模式，但 dropout 等随机层保持激活（MC dropout）
)

func (m InferenceMode) String() string {
	if m == ModeStochastic {
		return "stochastic"
	}
	return "deterministic"
}

// Model 是分割模型的最小抽象：image -> 逐像素类别 logits。
// 具体实现可以是本地模型或远程 RPC（TorchServe 等）。
type Model interface {
	Name() string

	// NumClasses 返回类别数
	NumClasses() int

	// Forward 对一个 batch 做前向推理，返回与输入一一对应的 logits
	Forward(ctx context.Context, images []*Image, mode InferenceMode) ([]*Logits, error)
}

// FeatureModel 是额外输出辅助特征图的模型（core-set、representative 需要）。
type FeatureModel interface {
	Model

	ForwardFeatures(ctx context.Context, images []*Image, mode InferenceMode) ([]*Logits, []*FeatureMap, error)
}

// FeatureNoiseModel 支持在中间特征上注入高斯噪声（MC noise 的 feature 模式）。
type FeatureNoiseModel interface {
	Model

	ForwardFeatureNoise(ctx context.Context, images []*Image, sigma float64, seed int64) ([]*Logits, error)
}
