// Package fakemodel 提供确定性的分割模型替身，供测试与离线演练使用。
// 图像的第一个像素字节被当作图像 ID，模型按 ID 查表输出 logits 与特征。
package fakemodel

import (
	"context"
	"sync"

	"github.com/rushteam/activeseg/core"
)

// Model 是可编程的假模型，实现 core.Model / core.FeatureModel / core.FeatureNoiseModel。
type Model struct {
	Classes int

	// LogitsFn 根据图像、推理模式与调用序号返回 logits
	LogitsFn func(im *core.Image, mode core.InferenceMode, call int) *core.Logits

	// FeatureFn 返回特征图，为 nil 时 ForwardFeatures 返回 1x1 的零特征
	FeatureFn func(im *core.Image) *core.FeatureMap

	// NoiseFn 返回特征噪声前向的 logits，为 nil 时回退到 LogitsFn
	NoiseFn func(im *core.Image, sigma float64, seed int64) *core.Logits

	mu       sync.Mutex
	calls    int
	maxBatch int
	modes    []core.InferenceMode
}

func (m *Model) Name() string    { return "fake" }
func (m *Model) NumClasses() int { return m.Classes }

func (m *Model) record(n int, mode core.InferenceMode) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.calls
	m.calls++
	m.maxBatch = max(m.maxBatch, n)
	m.modes = append(m.modes, mode)
	return call
}

func (m *Model) Forward(ctx context.Context, images []*core.Image, mode core.InferenceMode) ([]*core.Logits, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call := m.record(len(images), mode)
	out := make([]*core.Logits, len(images))
	for i, im := range images {
		out[i] = m.LogitsFn(im, mode, call)
	}
	return out, nil
}

func (m *Model) ForwardFeatures(ctx context.Context, images []*core.Image, mode core.InferenceMode) ([]*core.Logits, []*core.FeatureMap, error) {
	logits, err := m.Forward(ctx, images, mode)
	if err != nil {
		return nil, nil, err
	}
	feats := make([]*core.FeatureMap, len(images))
	for i, im := range images {
		if m.FeatureFn != nil {
			feats[i] = m.FeatureFn(im)
		} else {
			feats[i] = &core.FeatureMap{Channels: 1, Height: 1, Width: 1, Data: []float32{0}}
		}
	}
	return logits, feats, nil
}

func (m *Model) ForwardFeatureNoise(ctx context.Context, images []*core.Image, sigma float64, seed int64) ([]*core.Logits, error) {
	if m.NoiseFn == nil {
		return m.Forward(ctx, images, core.ModeDeterministic)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.record(len(images), core.ModeDeterministic)
	out := make([]*core.Logits, len(images))
	for i, im := range images {
		out[i] = m.NoiseFn(im, sigma, seed)
	}
	return out, nil
}

// Calls 返回前向调用次数。
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MaxBatch 返回单次前向见过的最大 batch。
func (m *Model) MaxBatch() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxBatch
}

// Modes 返回每次前向使用的推理模式。
func (m *Model) Modes() []core.InferenceMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.InferenceMode(nil), m.modes...)
}

// Plain 返回只实现 core.Model 的包装，用于验证能力检测。
func (m *Model) Plain() core.Model {
	return plain{m}
}

type plain struct{ m *Model }

func (p plain) Name() string    { return "fake-plain" }
func (p plain) NumClasses() int { return p.m.Classes }
func (p plain) Forward(ctx context.Context, images []*core.Image, mode core.InferenceMode) ([]*core.Logits, error) {
	return p.m.Forward(ctx, images, mode)
}

// ID 返回图像 ID（第一个像素字节）。
func ID(im *core.Image) uint8 {
	if len(im.Pix) == 0 {
		return 0
	}
	return im.Pix[0]
}

// Image 创建 ID 为 id 的 h x w 图像。
func Image(id uint8, h, w int) *core.Image {
	im := core.NewImage(h, w)
	im.Pix[0] = id
	return im
}

// Constant 返回每个像素都相同的 logits，perClass 按类别给出取值。
func Constant(h, w int, perClass ...float32) *core.Logits {
	l := core.NewLogits(len(perClass), h, w)
	n := h * w
	for c, v := range perClass {
		for p := 0; p < n; p++ {
			l.Data[c*n+p] = v
		}
	}
	return l
}

// Table 返回按图像 ID 查表的 LogitsFn，未登记的 ID 输出全零 logits。
func Table(classes, h, w int, table map[uint8]*core.Logits) func(*core.Image, core.InferenceMode, int) *core.Logits {
	return func(im *core.Image, _ core.InferenceMode, _ int) *core.Logits {
		if l, ok := table[ID(im)]; ok {
			return l
		}
		return core.NewLogits(classes, h, w)
	}
}

// Embedding 返回按图像 ID 查表的 FeatureFn，特征图为 Cx1x1。
func Embedding(table map[uint8][]float32) func(*core.Image) *core.FeatureMap {
	return func(im *core.Image) *core.FeatureMap {
		v := table[ID(im)]
		return &core.FeatureMap{Channels: len(v), Height: 1, Width: 1, Data: append([]float32(nil), v...)}
	}
}
