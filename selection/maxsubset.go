package selection

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/inference"
)

// MaxSubset 是区域级选择器：把每张图切成 RegionSize 的网格，
// 跳过已标注区域覆盖的格子，按格内平均不确定度降序贪心选取，直到像素预算用完。
type MaxSubset struct {
	Runner *inference.Runner

	// RegionSize 网格边长，图像边缘的格子会被裁小
	RegionSize int

	// Passes > 0 时用 MC dropout 方差作为逐像素分数，否则用单次前向的熵
	Passes int

	Logger *slog.Logger
}

type regionScore struct {
	key    core.ImageKey
	region core.Region
	score  float64
}

// SelectRegions 在 pixelBudget 个像素的预算内选出待标注区域。
// 放不下的区域被跳过，之后更小的区域仍可能放入；一个区域都放不下时返回 INSUFFICIENT_POOL。
// 结果按首次选中的顺序列出图像，每张图的区域按选中顺序排列。
func (m *MaxSubset) SelectRegions(ctx context.Context, rctx *core.RoundContext, model core.Model, candidates []core.ImageKey, pixelBudget int) ([]core.RegionSelection, error) {
	if pixelBudget <= 0 {
		return nil, core.Errorf(core.ModuleSelection, core.ErrorCodeInvalidInput, "selection: pixel budget must be positive, got %d", pixelBudget)
	}
	if m.Runner == nil || model == nil {
		return nil, core.NewDomainError(core.ModuleSelection, core.ErrorCodeInvalidInput, "selection: max-subset needs a runner and a model")
	}
	if rctx == nil {
		rctx = &core.RoundContext{}
	}
	size := m.RegionSize
	if size <= 0 {
		size = (&core.DefaultSelectionConfig{}).DefaultRegionSize()
	}

	var scored []regionScore
	collect := func(sv core.ScoreVector) {
		scored = append(scored, tile(sv.Key, sv.Height, sv.Width, size, sv.Pixels, rctx.Regions[sv.Key])...)
	}

	var err error
	if m.Passes > 0 {
		err = m.Runner.MonteCarlo(ctx, model, candidates, inference.MCOptions{Passes: m.Passes, Mode: core.ModeStochastic}, func(b *inference.MCBatch) error {
			for _, st := range b.Stats {
				collect(st.ScoreVector())
			}
			return nil
		})
	} else {
		err = m.Runner.Forward(ctx, model, candidates, core.ModeDeterministic, func(b *inference.Batch) error {
			for i, smp := range b.Samples {
				collect(inference.EntropyScore(smp.Key, b.Logits[i]))
			}
			return nil
		})
	}
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return nil, core.NewDomainError(core.ModuleSelection, core.ErrorCodeInsufficientPool, "selection: no unlabeled regions left")
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	var out []core.RegionSelection
	index := make(map[core.ImageKey]int)
	remaining := pixelBudget
	for _, rs := range scored {
		area := rs.region.Area()
		if area > remaining {
			continue
		}
		remaining -= area
		i, ok := index[rs.key]
		if !ok {
			i = len(out)
			index[rs.key] = i
			out = append(out, core.RegionSelection{Key: rs.key})
		}
		out[i].Regions = append(out[i].Regions, rs.region)
		if remaining == 0 {
			break
		}
	}

	if len(out) == 0 {
		return nil, core.Errorf(core.ModuleSelection, core.ErrorCodeInsufficientPool,
			"selection: pixel budget %d is smaller than every uncovered region", pixelBudget)
	}

	m.logger().Info("regions selected",
		"images", len(out), "pixels", pixelBudget-remaining, "budget", pixelBudget, "region_size", size)
	return out, nil
}

func (m *MaxSubset) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// tile 把 h x w 的逐像素分数切成网格并计算每格均值，跳过被 covered 中某个区域完全覆盖的格子。
// NaN 均值记为 -Inf。
func tile(key core.ImageKey, h, w, size int, pixels []float32, covered []core.Region) []regionScore {
	var out []regionScore
	for y := 0; y < h; y += size {
		for x := 0; x < w; x += size {
			r := core.Region{X: x, Y: y, W: min(size, w-x), H: min(size, h-y)}
			if isCovered(r, covered) {
				continue
			}
			var sum float64
			for yy := r.Y; yy < r.Y+r.H; yy++ {
				for _, v := range pixels[yy*w+r.X : yy*w+r.X+r.W] {
					sum += float64(v)
				}
			}
			score := sum / float64(r.Area())
			if math.IsNaN(score) {
				score = math.Inf(-1)
			}
			out = append(out, regionScore{key: key, region: r, score: score})
		}
	}
	return out
}

func isCovered(r core.Region, covered []core.Region) bool {
	for _, c := range covered {
		if c.Contains(r) {
			return true
		}
	}
	return false
}
