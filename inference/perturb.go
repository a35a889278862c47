package inference

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/rushteam/activeseg/core"
)

// Perturbation 定义一次随机前向的扰动方式（MC noise 的三种模式）。
type Perturbation interface {
	Name() string

	// Forward 执行第 pass 次扰动前向，返回与 images 一一对应的 logits
	Forward(ctx context.Context, model core.Model, images []*core.Image, mode core.InferenceMode, pass int) ([]*core.Logits, error)
}

// ImageNoise 在输入像素上叠加高斯噪声。Sigma 以 [0,1] 归一化的像素尺度计。
type ImageNoise struct {
	Sigma float64
	Seed  uint64
}

func (n *ImageNoise) Name() string { return "image_noise" }

func (n *ImageNoise) Forward(ctx context.Context, model core.Model, images []*core.Image, mode core.InferenceMode, pass int) ([]*core.Logits, error) {
	rng := rand.New(rand.NewPCG(n.Seed, uint64(pass)))
	noisy := make([]*core.Image, len(images))
	for i, im := range images {
		noisy[i] = AddNoise(im, n.Sigma, rng)
	}
	return model.Forward(ctx, noisy, mode)
}

// AddNoise 返回叠加了高斯噪声的副本，像素值截断到 [0,255]。
func AddNoise(im *core.Image, sigma float64, rng *rand.Rand) *core.Image {
	out := im.Clone()
	if sigma <= 0 {
		return out
	}
	scale := sigma * 255
	for i, v := range out.Pix {
		x := float64(v) + rng.NormFloat64()*scale
		out.Pix[i] = uint8(math.Max(0, math.Min(255, math.Round(x))))
	}
	return out
}

// FeatureNoise 在模型中间特征上注入噪声，要求模型实现 core.FeatureNoiseModel。
type FeatureNoise struct {
	Sigma float64
	Seed  int64
}

func (n *FeatureNoise) Name() string { return "feature_noise" }

func (n *FeatureNoise) Forward(ctx context.Context, model core.Model, images []*core.Image, _ core.InferenceMode, pass int) ([]*core.Logits, error) {
	fm, ok := model.(core.FeatureNoiseModel)
	if !ok {
		return nil, core.Errorf(core.ModuleInference, core.ErrorCodeUnsupportedStrategy,
			"inference: model %s does not support feature noise", model.Name())
	}
	return fm.ForwardFeatureNoise(ctx, images, n.Sigma, n.Seed+int64(pass))
}
