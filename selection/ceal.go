package selection

import (
	"context"
	"sort"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/inference"
	"github.com/rushteam/activeseg/pkg/utils"
	"github.com/rushteam/activeseg/rank"
)

const (
	metaConfidence = "confidence"
	metaMargin     = "margin"
	metaEntropy    = "entropy"
)

// cealSelector 实现 CEAL 系列：逐像素置信度 / margin / 熵取图像均值。
//
//	ceal_confidence              均值最大概率，升序（越不自信越优先）
//	ceal_margin                  均值 top-2 差值，升序
//	ceal_entropy                 均值熵，降序
//	ceal_fusion                  三项 min-max 归一化后加权求和，降序
//	ceal_entropy_weakly_labeled  按熵选择，并给熵最低的未选图像生成 argmax 伪标注
type cealSelector struct {
	method Method
	opts   Options
}

func (s *cealSelector) Name() string { return string(s.method) }

func (s *cealSelector) Select(ctx context.Context, rctx *core.RoundContext, model core.Model, candidates []core.ImageKey, count int) (*core.SelectionResult, error) {
	ordered := make([]*core.Candidate, 0, len(candidates))
	err := s.opts.Runner.Forward(ctx, model, candidates, core.ModeDeterministic, func(b *inference.Batch) error {
		for i, smp := range b.Samples {
			l := b.Logits[i]
			probs := inference.Softmax(l)
			c := core.NewCandidate(smp.Key)
			c.Meta[metaConfidence] = inference.Mean(inference.Confidence(probs, l.Classes))
			c.Meta[metaMargin] = inference.Mean(inference.Margin(probs, l.Classes))
			c.Meta[metaEntropy] = inference.Mean(inference.Entropy(probs, l.Classes))
			ordered = append(ordered, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch s.method {
	case MethodCEALConfidence:
		scoreBy(ordered, metaConfidence)
		rank.Sort(ordered, rank.Ascending)
	case MethodCEALMargin:
		scoreBy(ordered, metaMargin)
		rank.Sort(ordered, rank.Ascending)
	case MethodCEALFusion:
		node := &rank.FusionNode{Criteria: []rank.Criterion{
			{Key: metaConfidence, Weight: s.opts.Fusion.Confidence, Invert: true},
			{Key: metaMargin, Weight: s.opts.Fusion.Margin, Invert: true},
			{Key: metaEntropy, Weight: s.opts.Fusion.Entropy},
		}}
		if _, err := node.Process(ctx, rctx, ordered); err != nil {
			return nil, err
		}
	default:
		scoreBy(ordered, metaEntropy)
		rank.Sort(ordered, rank.Descending)
	}

	res, err := finalize(ctx, rctx, s.method, s.opts.Post, ordered, count)
	if err != nil {
		return nil, err
	}
	if s.method == MethodCEALEntropyWeak {
		res.WeakLabels, err = s.weakLabels(ctx, rctx, model, ordered, res.Keys)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func scoreBy(cands []*core.Candidate, key string) {
	for _, c := range cands {
		c.Score = c.Meta[key].(float64)
	}
}

// WeakThreshold 返回第 iteration 轮的熵阈值。
func (o WeakOptions) WeakThreshold(iteration int) float64 {
	return o.Threshold - o.Decay*float64(iteration)
}

// weakLabels 为未被选中、均值熵低于阈值的图像生成伪标注（熵从低到高，最多 Max 个）。
// argmax 由 Runner.Collect 在第二次前向中只对入选图像计算，不为整个候选池保留预测图。
func (s *cealSelector) weakLabels(ctx context.Context, rctx *core.RoundContext, model core.Model, ordered []*core.Candidate, selected []core.ImageKey) ([]core.WeakLabel, error) {
	threshold := s.opts.Weak.WeakThreshold(rctx.Iteration)
	if threshold <= 0 {
		return nil, nil
	}
	chosen := make(map[core.ImageKey]struct{}, len(selected))
	for _, k := range selected {
		chosen[k] = struct{}{}
	}

	var confident []*core.Candidate
	for _, c := range ordered {
		if _, ok := chosen[c.Key]; ok {
			continue
		}
		if e := c.Meta[metaEntropy].(float64); e < threshold {
			confident = append(confident, c)
		}
	}
	sort.SliceStable(confident, func(i, j int) bool {
		return confident[i].Meta[metaEntropy].(float64) < confident[j].Meta[metaEntropy].(float64)
	})
	if s.opts.Weak.Max > 0 && len(confident) > s.opts.Weak.Max {
		confident = confident[:s.opts.Weak.Max]
	}
	if len(confident) == 0 {
		return nil, nil
	}

	preds, err := s.opts.Runner.Collect(ctx, model, core.Keys(confident))
	if err != nil {
		return nil, err
	}
	out := make([]core.WeakLabel, 0, len(confident))
	for _, c := range confident {
		out = append(out, core.WeakLabel{Key: c.Key, Label: preds[c.Key]})
		c.PutLabel("weak_label", utils.Label{Value: "argmax", Source: "selection"})
	}
	s.opts.Logger.Debug("weak labels generated", "count", len(out), "threshold", threshold)
	return out, nil
}
