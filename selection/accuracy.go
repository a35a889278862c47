package selection

import (
	"context"
	"math"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/inference"
	"github.com/rushteam/activeseg/rank"
)

// accuracySelector 是 oracle 基线：用真值计算每张图的像素准确率，选准确率最低的。
type accuracySelector struct {
	opts Options
}

func (s *accuracySelector) Name() string { return string(MethodAccuracyLabels) }

func (s *accuracySelector) Select(ctx context.Context, rctx *core.RoundContext, model core.Model, candidates []core.ImageKey, count int) (*core.SelectionResult, error) {
	ordered := make([]*core.Candidate, 0, len(candidates))
	err := s.opts.Runner.Forward(ctx, model, candidates, core.ModeDeterministic, func(b *inference.Batch) error {
		for i, smp := range b.Samples {
			if smp.Label == nil {
				return core.Errorf(core.ModuleSelection, core.ErrorCodeStoreLookupFailure,
					"selection: sample %q has no ground truth", smp.Key)
			}
			if l := b.Logits[i]; l.Height != smp.Label.Height || l.Width != smp.Label.Width {
				return core.Errorf(core.ModuleSelection, core.ErrorCodeInternalError,
					"selection: prediction %dx%d does not match label %dx%d for %q",
					l.Height, l.Width, smp.Label.Height, smp.Label.Width, smp.Key)
			}
			acc, valid := PixelAccuracy(inference.Argmax(b.Logits[i]), smp.Label, b.Logits[i].Classes)
			c := core.NewCandidate(smp.Key)
			c.Score = acc
			c.Meta["valid_pixels"] = valid
			ordered = append(ordered, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	rank.Sort(ordered, rank.Ascending)
	return finalize(ctx, rctx, MethodAccuracyLabels, s.opts.Post, ordered, count)
}

// AccuracyMode 决定 accuracy_prediction 如何把两通道的准确率头输出汇总成分数。
type AccuracyMode string

const (
	// AccuracySoftmax 对"预测正确"通道的 softmax 概率求和
	AccuracySoftmax AccuracyMode = "softmax"
	// AccuracyArgmax 统计 argmax 落在"预测正确"通道的像素数
	AccuracyArgmax AccuracyMode = "argmax"
)

// ParseAccuracyMode 解析汇总方式，空串为 softmax。
func ParseAccuracyMode(s string) (AccuracyMode, error) {
	switch AccuracyMode(s) {
	case "", AccuracySoftmax:
		return AccuracySoftmax, nil
	case AccuracyArgmax:
		return AccuracyArgmax, nil
	}
	return "", core.Errorf(core.ModuleSelection, core.ErrorCodeInvalidInput,
		"selection: unknown accuracy mode %q (supported: softmax, argmax)", s)
}

// predictedAccuracySelector 不看真值：模型的特征输出是一个两通道的准确率头
// （通道 0 预测错误，通道 1 预测正确），按预测的正确像素量升序选取。
type predictedAccuracySelector struct {
	opts Options
}

func (s *predictedAccuracySelector) Name() string { return string(MethodAccuracyPrediction) }

func (s *predictedAccuracySelector) Select(ctx context.Context, rctx *core.RoundContext, model core.Model, candidates []core.ImageKey, count int) (*core.SelectionResult, error) {
	fm, ok := model.(core.FeatureModel)
	if !ok {
		return nil, unsupportedModel(MethodAccuracyPrediction, model, "an accuracy head")
	}
	ordered := make([]*core.Candidate, 0, len(candidates))
	err := s.opts.Runner.ForwardFeatures(ctx, fm, candidates, core.ModeDeterministic, func(b *inference.Batch) error {
		for i, smp := range b.Samples {
			sv, err := PredictedAccuracy(smp.Key, b.Features[i], s.opts.AccuracyMode)
			if err != nil {
				return err
			}
			c := core.NewScoredCandidate(sv)
			c.Meta["accuracy_mode"] = string(s.opts.AccuracyMode)
			ordered = append(ordered, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	rank.Sort(ordered, rank.Ascending)
	return finalize(ctx, rctx, MethodAccuracyPrediction, s.opts.Post, ordered, count)
}

// PredictedAccuracy 把两通道的准确率头输出汇总为分数：
// softmax 模式逐像素取通道 1 的 softmax 概率，argmax 模式逐像素取 argmax 是否为 1（并列取 0）。
// Scalar 为逐像素值之和。
func PredictedAccuracy(key core.ImageKey, f *core.FeatureMap, mode AccuracyMode) (core.ScoreVector, error) {
	if f == nil || f.Channels != 2 {
		channels := 0
		if f != nil {
			channels = f.Channels
		}
		return core.ScoreVector{}, core.Errorf(core.ModuleSelection, core.ErrorCodeInternalError,
			"selection: accuracy head for %q has %d channels, want 2", key, channels)
	}
	n := f.Height * f.Width
	if len(f.Data) != 2*n {
		return core.ScoreVector{}, core.Errorf(core.ModuleSelection, core.ErrorCodeInternalError,
			"selection: accuracy head for %q has %d values, want %d", key, len(f.Data), 2*n)
	}
	pixels := make([]float32, n)
	var sum float64
	for i := 0; i < n; i++ {
		wrong, right := float64(f.Data[i]), float64(f.Data[n+i])
		var v float64
		switch mode {
		case AccuracyArgmax:
			if right > wrong {
				v = 1
			}
		default:
			v = 1 / (1 + math.Exp(wrong-right))
		}
		pixels[i] = float32(v)
		sum += v
	}
	return core.ScoreVector{Key: key, Scalar: sum, Height: f.Height, Width: f.Width, Pixels: pixels}, nil
}

// PixelAccuracy 计算 label 在 [0, classes) 内的像素上预测正确的比例。
// 没有有效像素时返回 +Inf，排序时排在最后。
func PixelAccuracy(pred, label *core.LabelMap, classes int) (float64, int) {
	n := min(len(pred.Class), len(label.Class))
	correct, valid := 0, 0
	for i := 0; i < n; i++ {
		gt := label.Class[i]
		if gt < 0 || int(gt) >= classes {
			continue
		}
		valid++
		if pred.Class[i] == gt {
			correct++
		}
	}
	if valid == 0 {
		return math.Inf(1), 0
	}
	return float64(correct) / float64(valid), valid
}
