package selection

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/rerank"
)

// coresetSelector 做贪心最远点选择：
// 每次选出到"已标注 + 已选"集合最小距离最大的候选。
// minDist 缓存每个候选到该集合的最近距离，选中一个点后只对这个新点做增量更新。
type coresetSelector struct {
	opts Options
}

func (s *coresetSelector) Name() string { return string(MethodCoreSet) }

func (s *coresetSelector) Select(ctx context.Context, rctx *core.RoundContext, model core.Model, candidates []core.ImageKey, count int) (*core.SelectionResult, error) {
	fm, ok := model.(core.FeatureModel)
	if !ok {
		return nil, unsupportedModel(MethodCoreSet, model, "feature outputs")
	}

	// 候选的 embedding 在整个贪心过程中常驻内存：每张图一个 C 维池化向量，图像与特征图仍按 batch 释放。
	// 不保留它们就得在每次选点后重新推理全部候选。
	emb := make([][]float64, 0, len(candidates))
	err := s.opts.Runner.Embeddings(ctx, fm, candidates, func(_ []core.ImageKey, batch [][]float64) error {
		emb = append(emb, batch...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	g := newGreedy(emb, s.opts.Workers)
	// 已标注集合按 batch 流式并入缓存，不保留其 embedding
	err = s.opts.Runner.Embeddings(ctx, fm, rctx.Labeled, func(_ []core.ImageKey, batch [][]float64) error {
		for _, v := range batch {
			if err := g.update(ctx, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var ordered []*core.Candidate
	target := count
	for {
		for len(ordered) < target {
			i, d := g.next()
			if i < 0 {
				break
			}
			c := core.NewCandidate(candidates[i])
			c.Score = d
			c.Embedding = emb[i]
			ordered = append(ordered, c)
			if err := g.update(ctx, emb[i]); err != nil {
				return nil, err
			}
		}
		if s.opts.Post.Len() == 0 || len(ordered) == len(candidates) {
			break
		}
		// 后处理会过滤候选：继续贪心直到剩余数量足够
		out, err := s.opts.Post.Run(ctx, rctx, append([]*core.Candidate(nil), ordered...))
		if err != nil {
			return nil, err
		}
		if len(out) >= count {
			break
		}
		target = len(ordered) + count - len(out)
	}
	return finalize(ctx, rctx, MethodCoreSet, s.opts.Post, ordered, count)
}

// greedy 维护最远点选择的状态。
type greedy struct {
	points  [][]float64
	minDist []float64
	picked  []bool
	workers int
}

func newGreedy(points [][]float64, workers int) *greedy {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g := &greedy{
		points:  points,
		minDist: make([]float64, len(points)),
		picked:  make([]bool, len(points)),
		workers: workers,
	}
	for i := range g.minDist {
		g.minDist[i] = math.Inf(1)
	}
	return g
}

// next 选出未选候选中 minDist 最大者并标记；并列时取下标最小者。全部选完返回 -1。
func (g *greedy) next() (int, float64) {
	best := -1
	for i, d := range g.minDist {
		if g.picked[i] {
			continue
		}
		if best < 0 || d > g.minDist[best] {
			best = i
		}
	}
	if best < 0 {
		return -1, 0
	}
	g.picked[best] = true
	return best, g.minDist[best]
}

// update 用新点 p 刷新所有候选的最近距离，按分片并发。
func (g *greedy) update(ctx context.Context, p []float64) error {
	n := len(g.points)
	if n == 0 {
		return nil
	}
	chunk := (n + g.workers - 1) / g.workers
	eg, egCtx := errgroup.WithContext(ctx)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				if len(g.points[i]) != len(p) {
					return core.Errorf(core.ModuleSelection, core.ErrorCodeInternalError,
						"selection: embedding size %d differs from %d", len(g.points[i]), len(p))
				}
				if d := rerank.Euclidean(g.points[i], p); d < g.minDist[i] {
					g.minDist[i] = d
				}
			}
			return nil
		})
	}
	return eg.Wait()
}
