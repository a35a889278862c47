package selection

import (
	"context"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/inference"
	"github.com/rushteam/activeseg/rank"
	"github.com/rushteam/activeseg/rerank"
)

// mcSelector 覆盖 MC dropout 方差与 MC noise 三种模式：
// 每张图 T 次扰动前向，逐像素类别概率方差的均值作为分数，降序。
//
//	variance                 随机层激活，无额外扰动
//	variance_representative  同上，再按 embedding 距离做多样性重排
//	noise_image              确定性前向 + 输入高斯噪声
//	noise_feature            确定性前向 + 中间特征噪声
//	noise_variance           随机层激活 + 输入高斯噪声
type mcSelector struct {
	method Method
	opts   Options
}

func (s *mcSelector) Name() string { return string(s.method) }

func (s *mcSelector) mcOptions(model core.Model, iteration int) (inference.MCOptions, error) {
	// 每轮换一组噪声，同一轮内可复现
	seed := s.opts.Seed + uint64(iteration)
	opts := inference.MCOptions{Passes: s.opts.Passes}
	switch s.method {
	case MethodVariance, MethodVarianceRepresentative:
		opts.Mode = core.ModeStochastic
	case MethodNoiseImage:
		opts.Mode = core.ModeDeterministic
		opts.Perturbation = &inference.ImageNoise{Sigma: s.opts.NoiseSigma, Seed: seed}
	case MethodNoiseFeature:
		if _, ok := model.(core.FeatureNoiseModel); !ok {
			return opts, unsupportedModel(s.method, model, "feature noise injection")
		}
		opts.Mode = core.ModeDeterministic
		opts.Perturbation = &inference.FeatureNoise{Sigma: s.opts.NoiseSigma, Seed: int64(seed)}
	case MethodNoiseVariance:
		opts.Mode = core.ModeStochastic
		opts.Perturbation = &inference.ImageNoise{Sigma: s.opts.NoiseSigma, Seed: seed}
	}
	return opts, nil
}

func (s *mcSelector) Select(ctx context.Context, rctx *core.RoundContext, model core.Model, candidates []core.ImageKey, count int) (*core.SelectionResult, error) {
	var fm core.FeatureModel
	if s.method == MethodVarianceRepresentative {
		var ok bool
		if fm, ok = model.(core.FeatureModel); !ok {
			return nil, unsupportedModel(s.method, model, "feature outputs")
		}
	}
	opts, err := s.mcOptions(model, rctx.Iteration)
	if err != nil {
		return nil, err
	}

	ordered := make([]*core.Candidate, 0, len(candidates))
	err = s.opts.Runner.MonteCarlo(ctx, model, candidates, opts, func(b *inference.MCBatch) error {
		for _, st := range b.Stats {
			c := core.NewScoredCandidate(st.ScoreVector())
			c.Meta["passes"] = st.Passes
			ordered = append(ordered, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	rank.Sort(ordered, rank.Descending)

	if fm != nil {
		if err := s.diversify(ctx, rctx, fm, ordered, count); err != nil {
			return nil, err
		}
	}
	return finalize(ctx, rctx, s.method, s.opts.Post, ordered, count)
}

// diversify 给候选附上 embedding，再用 Representative 原地重排。
func (s *mcSelector) diversify(ctx context.Context, rctx *core.RoundContext, fm core.FeatureModel, ordered []*core.Candidate, count int) error {
	index := make(map[core.ImageKey]*core.Candidate, len(ordered))
	for _, c := range ordered {
		index[c.Key] = c
	}
	err := s.opts.Runner.Embeddings(ctx, fm, core.Keys(ordered), func(keys []core.ImageKey, emb [][]float64) error {
		for i, k := range keys {
			index[k].Embedding = emb[i]
		}
		return nil
	})
	if err != nil {
		return err
	}
	node := &rerank.Representative{Threshold: s.opts.RepresentativeThreshold, Count: count}
	out, err := node.Process(ctx, rctx, ordered)
	if err != nil {
		return err
	}
	copy(ordered, out)
	return nil
}
