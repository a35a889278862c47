package selection

import (
	"context"
	"math/rand/v2"

	"github.com/rushteam/activeseg/core"
)

// randomSelector 是随机基线：种子由 opts.Seed 与轮次共同决定，同一轮结果可复现。
type randomSelector struct {
	opts Options
}

func (s *randomSelector) Name() string { return string(MethodRandom) }

func (s *randomSelector) Select(ctx context.Context, rctx *core.RoundContext, _ core.Model, candidates []core.ImageKey, count int) (*core.SelectionResult, error) {
	rng := rand.New(rand.NewPCG(s.opts.Seed, uint64(rctx.Iteration)))
	perm := rng.Perm(len(candidates))

	ordered := make([]*core.Candidate, len(perm))
	for i, j := range perm {
		c := core.NewCandidate(candidates[j])
		c.Score = float64(len(perm) - i)
		ordered[i] = c
	}
	return finalize(ctx, rctx, MethodRandom, s.opts.Post, ordered, count)
}
