package selection

import (
	"slices"

	"github.com/rushteam/activeseg/core"
)

// Method 是选择策略的名字，在配置阶段解析为已知的策略之一。
type Method string

const (
	MethodRandom                 Method = "random"
	MethodVariance               Method = "variance"
	MethodVarianceRepresentative Method = "variance_representative"
	MethodNoiseImage             Method = "noise_image"
	MethodNoiseFeature           Method = "noise_feature"
	MethodNoiseVariance          Method = "noise_variance"
	MethodCoreSet                Method = "coreset"
	MethodCEALConfidence         Method = "ceal_confidence"
	MethodCEALMargin             Method = "ceal_margin"
	MethodCEALEntropy            Method = "ceal_entropy"
	MethodCEALFusion             Method = "ceal_fusion"
	MethodCEALEntropyWeak        Method = "ceal_entropy_weakly_labeled"
	MethodAccuracyLabels         Method = "accuracy_labels"
	MethodAccuracyPrediction     Method = "accuracy_prediction"
)

var methods = []Method{
	MethodRandom,
	MethodVariance,
	MethodVarianceRepresentative,
	MethodNoiseImage,
	MethodNoiseFeature,
	MethodNoiseVariance,
	MethodCoreSet,
	MethodCEALConfidence,
	MethodCEALMargin,
	MethodCEALEntropy,
	MethodCEALFusion,
	MethodCEALEntropyWeak,
	MethodAccuracyLabels,
	MethodAccuracyPrediction,
}

// Methods 返回全部已知策略。
func Methods() []Method {
	return slices.Clone(methods)
}

func (m Method) String() string { return string(m) }

// ParseMethod 解析策略名，未知名字返回 UNSUPPORTED_STRATEGY。
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !slices.Contains(methods, m) {
		return "", core.Errorf(core.ModuleSelection, core.ErrorCodeUnsupportedStrategy,
			"selection: unsupported strategy %q (supported: %v)", s, methods)
	}
	return m, nil
}

// NeedsFeatures 表示策略是否要求模型输出特征图。
func (m Method) NeedsFeatures() bool {
	return m == MethodCoreSet || m == MethodVarianceRepresentative || m == MethodAccuracyPrediction
}

// ProducesWeakLabels 表示策略是否会返回伪标注。
func (m Method) ProducesWeakLabels() bool {
	return m == MethodCEALEntropyWeak
}
