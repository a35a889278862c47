package inference

import (
	"math"

	"github.com/rushteam/activeseg/core"
)

// Softmax 对 logits 逐像素做 softmax，返回 CHW 排布的概率。
func Softmax(l *core.Logits) []float32 {
	n := l.Pixels()
	out := make([]float32, len(l.Data))
	for p := 0; p < n; p++ {
		maxv := math.Inf(-1)
		for c := 0; c < l.Classes; c++ {
			maxv = math.Max(maxv, float64(l.Data[c*n+p]))
		}
		var sum float64
		for c := 0; c < l.Classes; c++ {
			e := math.Exp(float64(l.Data[c*n+p]) - maxv)
			out[c*n+p] = float32(e)
			sum += e
		}
		for c := 0; c < l.Classes; c++ {
			out[c*n+p] = float32(float64(out[c*n+p]) / sum)
		}
	}
	return out
}

// Argmax 返回逐像素的预测类别；并列时取较小的类别号。
func Argmax(l *core.Logits) *core.LabelMap {
	n := l.Pixels()
	out := core.NewLabelMap(l.Height, l.Width)
	for p := 0; p < n; p++ {
		best, bestv := 0, l.Data[p]
		for c := 1; c < l.Classes; c++ {
			if v := l.Data[c*n+p]; v > bestv {
				best, bestv = c, v
			}
		}
		out.Class[p] = int32(best)
	}
	return out
}

// Confidence 返回逐像素的最大类别概率。
func Confidence(probs []float32, classes int) []float32 {
	n := len(probs) / classes
	out := make([]float32, n)
	for p := 0; p < n; p++ {
		var best float32
		for c := 0; c < classes; c++ {
			best = max(best, probs[c*n+p])
		}
		out[p] = best
	}
	return out
}

// Margin 返回逐像素 top-1 与 top-2 概率之差；单类别时为 top-1 概率。
func Margin(probs []float32, classes int) []float32 {
	n := len(probs) / classes
	out := make([]float32, n)
	for p := 0; p < n; p++ {
		var first, second float32
		for c := 0; c < classes; c++ {
			v := probs[c*n+p]
			switch {
			case v > first:
				first, second = v, first
			case v > second:
				second = v
			}
		}
		out[p] = first - second
	}
	return out
}

// Entropy 返回逐像素的预测熵（自然对数）。
func Entropy(probs []float32, classes int) []float32 {
	n := len(probs) / classes
	out := make([]float32, n)
	for p := 0; p < n; p++ {
		var h float64
		for c := 0; c < classes; c++ {
			if v := float64(probs[c*n+p]); v > 0 {
				h -= v * math.Log(v)
			}
		}
		out[p] = float32(h)
	}
	return out
}

// Mean 返回所有像素的均值；空输入返回 NaN，由排序层处理。
func Mean(values []float32) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// Welford 以流式方式累积多次随机前向的逐元素均值与方差，只保留一份均值与 M2。
type Welford struct {
	n    int
	mean []float64
	m2   []float64
}

func NewWelford(size int) *Welford {
	return &Welford{mean: make([]float64, size), m2: make([]float64, size)}
}

// Add 加入一次观测，长度必须与 NewWelford 的 size 一致。
func (w *Welford) Add(x []float32) {
	w.n++
	for i, v := range x {
		d := float64(v) - w.mean[i]
		w.mean[i] += d / float64(w.n)
		w.m2[i] += d * (float64(v) - w.mean[i])
	}
}

func (w *Welford) Count() int { return w.n }

// Mean 返回逐元素均值。
func (w *Welford) Mean() []float32 {
	out := make([]float32, len(w.mean))
	for i, v := range w.mean {
		out[i] = float32(v)
	}
	return out
}

// Variance 返回逐元素总体方差（除以 n）；少于一次观测时全为 0。
func (w *Welford) Variance() []float32 {
	out := make([]float32, len(w.m2))
	if w.n == 0 {
		return out
	}
	for i, v := range w.m2 {
		out[i] = float32(v / float64(w.n))
	}
	return out
}

// PixelStats 是一张图像在 T 次随机前向上的逐像素逐类别统计，CHW 排布。
type PixelStats struct {
	Key      core.ImageKey
	Classes  int
	Height   int
	Width    int
	Passes   int
	Mean     []float32
	Variance []float32
}

// PixelVariance 返回逐像素的类别平均方差。
func (s *PixelStats) PixelVariance() []float32 {
	n := s.Height * s.Width
	out := make([]float32, n)
	for c := 0; c < s.Classes; c++ {
		for p := 0; p < n; p++ {
			out[p] += s.Variance[c*n+p]
		}
	}
	for p := range out {
		out[p] /= float32(s.Classes)
	}
	return out
}

// ScoreVector 把逐像素方差打包成 core.ScoreVector，Scalar 为均值，即 MC 方差策略的单图分数。
func (s *PixelStats) ScoreVector() core.ScoreVector {
	pv := s.PixelVariance()
	return core.ScoreVector{Key: s.Key, Scalar: Mean(pv), Height: s.Height, Width: s.Width, Pixels: pv}
}

// EntropyScore 把单次前向的逐像素熵打包成 core.ScoreVector，Scalar 为均值。
func EntropyScore(key core.ImageKey, l *core.Logits) core.ScoreVector {
	pe := Entropy(Softmax(l), l.Classes)
	return core.ScoreVector{Key: key, Scalar: Mean(pe), Height: l.Height, Width: l.Width, Pixels: pe}
}
