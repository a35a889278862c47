// Package inference 在样本池上按固定 batch 顺序执行模型推理。
//
// Runner 一次只解码一个 batch 的图像：解码、前向、统计、回调，然后丢弃，
// 再处理下一个 batch。多次随机前向的结果以 Welford 方式流式聚合，不保存 T 份输出。
package inference

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/monitor"
)

// Runner 是推理执行器。
type Runner struct {
	Samples   core.SampleSource
	BatchSize int

	// Workers 单个 batch 内并发解码的上限，<= 0 时按 batch 大小
	Workers int

	Logger *slog.Logger
}

func NewRunner(samples core.SampleSource, batchSize int) *Runner {
	return &Runner{Samples: samples, BatchSize: batchSize}
}

// Batch 是一个已完成前向的 batch，只在回调期间有效。
type Batch struct {
	Samples  []*core.Sample
	Logits   []*core.Logits
	Features []*core.FeatureMap
}

func (b *Batch) Keys() []core.ImageKey {
	out := make([]core.ImageKey, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s.Key
	}
	return out
}

// MCBatch 是 T 次随机前向聚合后的 batch。
type MCBatch struct {
	Samples []*core.Sample
	Stats   []*PixelStats
}

// MCOptions 配置 MonteCarlo。
type MCOptions struct {
	Passes int
	Mode   core.InferenceMode

	// Perturbation 为 nil 时直接调用 model.Forward（MC dropout）
	Perturbation Perturbation
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) batchSize() int {
	if r.BatchSize <= 0 {
		return (&core.DefaultSelectionConfig{}).DefaultBatchSize()
	}
	return r.BatchSize
}

// each 按 key 顺序切分 batch，解码后回调 fn；两个 batch 之间检查取消。
func (r *Runner) each(ctx context.Context, keys []core.ImageKey, fn func([]*core.Sample) error) error {
	size := r.batchSize()
	for start := 0; start < len(keys); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+size, len(keys))
		samples, err := r.load(ctx, keys[start:end])
		if err != nil {
			return err
		}
		if err := fn(samples); err != nil {
			return err
		}
	}
	return nil
}

// load 并发解码一个 batch，结果保持 key 顺序；任一样本缺失即返回错误。
func (r *Runner) load(ctx context.Context, keys []core.ImageKey) ([]*core.Sample, error) {
	out := make([]*core.Sample, len(keys))
	eg, egCtx := errgroup.WithContext(ctx)
	limit := r.Workers
	if limit <= 0 {
		limit = len(keys)
	}
	eg.SetLimit(limit)
	for i, k := range keys {
		eg.Go(func() error {
			s, err := r.Samples.Sample(egCtx, k)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func images(samples []*core.Sample) []*core.Image {
	out := make([]*core.Image, len(samples))
	for i, s := range samples {
		out[i] = s.Image
	}
	return out
}

func checkOutputs(model core.Model, want, got int) error {
	if want != got {
		return core.Errorf(core.ModuleInference, core.ErrorCodeInternalError,
			"inference: model %s returned %d outputs for %d images", model.Name(), got, want)
	}
	return nil
}

// Forward 对 keys 做一次前向。
func (r *Runner) Forward(ctx context.Context, model core.Model, keys []core.ImageKey, mode core.InferenceMode, fn func(*Batch) error) error {
	return r.each(ctx, keys, func(samples []*core.Sample) error {
		logits, err := model.Forward(ctx, images(samples), mode)
		if err != nil {
			return fmt.Errorf("forward %s: %w", model.Name(), err)
		}
		if err := checkOutputs(model, len(samples), len(logits)); err != nil {
			return err
		}
		monitor.ObserveInferenceBatch(mode.String(), len(samples))
		return fn(&Batch{Samples: samples, Logits: logits})
	})
}

// ForwardFeatures 前向并同时取回特征图。
func (r *Runner) ForwardFeatures(ctx context.Context, model core.FeatureModel, keys []core.ImageKey, mode core.InferenceMode, fn func(*Batch) error) error {
	return r.each(ctx, keys, func(samples []*core.Sample) error {
		logits, feats, err := model.ForwardFeatures(ctx, images(samples), mode)
		if err != nil {
			return fmt.Errorf("forward features %s: %w", model.Name(), err)
		}
		if err := checkOutputs(model, len(samples), len(logits)); err != nil {
			return err
		}
		if err := checkOutputs(model, len(samples), len(feats)); err != nil {
			return err
		}
		monitor.ObserveInferenceBatch(mode.String(), len(samples))
		return fn(&Batch{Samples: samples, Logits: logits, Features: feats})
	})
}

// Embeddings 返回每个 batch 的全局池化特征向量。
func (r *Runner) Embeddings(ctx context.Context, model core.FeatureModel, keys []core.ImageKey, fn func(keys []core.ImageKey, emb [][]float64) error) error {
	return r.ForwardFeatures(ctx, model, keys, core.ModeDeterministic, func(b *Batch) error {
		emb := make([][]float64, len(b.Features))
		for i, f := range b.Features {
			emb[i] = f.Pooled()
		}
		return fn(b.Keys(), emb)
	})
}

// MonteCarlo 对每个 batch 做 opts.Passes 次随机前向，逐像素逐类别聚合 softmax 的均值与方差。
// 聚合完一个 batch 才开始下一个 batch。
func (r *Runner) MonteCarlo(ctx context.Context, model core.Model, keys []core.ImageKey, opts MCOptions, fn func(*MCBatch) error) error {
	if opts.Passes < 1 {
		return core.Errorf(core.ModuleInference, core.ErrorCodeInvalidInput, "inference: passes must be >= 1, got %d", opts.Passes)
	}
	log := r.logger()
	return r.each(ctx, keys, func(samples []*core.Sample) error {
		imgs := images(samples)
		acc := make([]*Welford, len(samples))
		shapes := make([]*core.Logits, len(samples))
		for pass := 0; pass < opts.Passes; pass++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			var (
				logits []*core.Logits
				err    error
			)
			if opts.Perturbation != nil {
				logits, err = opts.Perturbation.Forward(ctx, model, imgs, opts.Mode, pass)
			} else {
				logits, err = model.Forward(ctx, imgs, opts.Mode)
			}
			if err != nil {
				return fmt.Errorf("mc pass %d: %w", pass, err)
			}
			if err := checkOutputs(model, len(samples), len(logits)); err != nil {
				return err
			}
			for i, l := range logits {
				if acc[i] == nil {
					acc[i] = NewWelford(len(l.Data))
					shapes[i] = l
				} else if len(l.Data) != len(shapes[i].Data) {
					return core.Errorf(core.ModuleInference, core.ErrorCodeInternalError,
						"inference: output shape changed between passes for %q", samples[i].Key)
				}
				acc[i].Add(Softmax(l))
			}
			monitor.ObserveInferenceBatch(opts.Mode.String(), len(samples))
		}

		stats := make([]*PixelStats, len(samples))
		for i, w := range acc {
			stats[i] = &PixelStats{
				Key:      samples[i].Key,
				Classes:  shapes[i].Classes,
				Height:   shapes[i].Height,
				Width:    shapes[i].Width,
				Passes:   w.Count(),
				Mean:     w.Mean(),
				Variance: w.Variance(),
			}
		}
		log.Debug("mc batch aggregated", "images", len(samples), "passes", opts.Passes)
		return fn(&MCBatch{Samples: samples, Stats: stats})
	})
}

// Collect 对 keys 做确定性前向并收集 argmax 预测图，用于生成伪标注。
// 结果全部留在内存中，调用方应只传入需要预测图的少量图像。
func (r *Runner) Collect(ctx context.Context, model core.Model, keys []core.ImageKey) (map[core.ImageKey]*core.LabelMap, error) {
	out := make(map[core.ImageKey]*core.LabelMap, len(keys))
	err := r.Forward(ctx, model, keys, core.ModeDeterministic, func(b *Batch) error {
		for i, s := range b.Samples {
			out[s.Key] = Argmax(b.Logits[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
