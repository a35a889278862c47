package dataset

import (
	"context"
	"fmt"

	"github.com/rushteam/activeseg/core"
)

// Loader 把训练视图中的 Entry 解析为训练样本对。
type Loader struct {
	Pool    *Pool
	Samples core.SampleSource
}

func NewLoader(pool *Pool, samples core.SampleSource) *Loader {
	return &Loader{Pool: pool, Samples: samples}
}

// Sample 加载一个训练样本：
// 伪标注样本用伪标签替换真值；区域样本把区域外的像素置为 IgnoreIndex。
func (l *Loader) Sample(ctx context.Context, e Entry) (*core.Sample, error) {
	s, err := l.Samples.Sample(ctx, e.Key)
	if err != nil {
		return nil, err
	}

	if e.Weak {
		weak, ok := l.Pool.WeakLabel(e.Key)
		if !ok {
			return nil, core.Errorf(core.ModulePool, core.ErrorCodeInvariantViolation,
				"pool: weak entry %q has no weak label", e.Key)
		}
		if weak.Height != s.Image.Height || weak.Width != s.Image.Width {
			return nil, fmt.Errorf("weak label %q is %dx%d, image is %dx%d",
				e.Key, weak.Height, weak.Width, s.Image.Height, s.Image.Width)
		}
		return &core.Sample{Key: s.Key, Image: s.Image, Label: weak.Clone()}, nil
	}

	if len(e.Regions) > 0 {
		s.Label = MaskRegions(s.Label, e.Regions)
	}
	return s, nil
}

// MaskRegions 返回只保留 regions 内标注的新 LabelMap，其余像素为 IgnoreIndex。
func MaskRegions(label *core.LabelMap, regions []core.Region) *core.LabelMap {
	out := core.IgnoreLabelMap(label.Height, label.Width)
	for _, r := range regions {
		r = r.Clip(label.Width, label.Height)
		for y := r.Y; y < r.Y+r.H; y++ {
			row := y * label.Width
			copy(out.Class[row+r.X:row+r.X+r.W], label.Class[row+r.X:row+r.X+r.W])
		}
	}
	return out
}

// TrainablePixels 统计不等于 IgnoreIndex 的像素数。
func TrainablePixels(label *core.LabelMap) int {
	if label == nil {
		return 0
	}
	n := 0
	for _, c := range label.Class {
		if c != core.IgnoreIndex {
			n++
		}
	}
	return n
}

// Epoch 在 epoch 开始时取视图快照，按 batchSize 分批加载并回调 fn。
// 迭代期间对 Pool 的修改不影响本 epoch。
func (l *Loader) Epoch(ctx context.Context, batchSize int, fn func([]*core.Sample) error) error {
	if batchSize <= 0 {
		return core.Errorf(core.ModulePool, core.ErrorCodeInvalidInput, "pool: batch size must be positive, got %d", batchSize)
	}
	entries := l.Pool.Entries()
	for start := 0; start < len(entries); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(entries))
		batch := make([]*core.Sample, 0, end-start)
		for _, e := range entries[start:end] {
			s, err := l.Sample(ctx, e)
			if err != nil {
				return err
			}
			batch = append(batch, s)
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}
