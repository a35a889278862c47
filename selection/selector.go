// Package selection 实现主动选择策略：MC dropout 方差、MC noise、core-set、CEAL 系列、
// 准确率 oracle，以及区域级的 max-subset。
//
// 所有策略满足同一契约：结果长度恰为 count，无重复，且都属于候选集；
// count 超过候选数返回 INSUFFICIENT_POOL，不做截断。策略从不修改样本池。
package selection

import (
	"context"
	"log/slog"
	"time"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/inference"
	"github.com/rushteam/activeseg/monitor"
	"github.com/rushteam/activeseg/pipeline"
	"github.com/rushteam/activeseg/pkg/utils"
)

// Selector 是选择策略的统一接口。
type Selector interface {
	Name() string

	// Select 从 candidates 中选出 count 个 key，按信息量从高到低排列。
	Select(ctx context.Context, rctx *core.RoundContext, model core.Model, candidates []core.ImageKey, count int) (*core.SelectionResult, error)
}

// FusionWeights 是 ceal_fusion 中三个指标的权重。
type FusionWeights struct {
	Confidence float64 `yaml:"confidence" json:"confidence"`
	Margin     float64 `yaml:"margin" json:"margin"`
	Entropy    float64 `yaml:"entropy" json:"entropy"`
}

// WeakOptions 控制 ceal_entropy_weakly_labeled 的伪标注数量。
type WeakOptions struct {
	// Threshold 第 0 轮的熵阈值，均值熵低于阈值的未选中图像获得伪标注
	Threshold float64 `yaml:"threshold" json:"threshold"`

	// Decay 每轮阈值下降量：threshold - decay*iteration
	Decay float64 `yaml:"decay" json:"decay"`

	// Max 每轮伪标注数量上限，<= 0 表示不限
	Max int `yaml:"max" json:"max"`
}

// Options 是所有策略共享的参数，未用到的字段被忽略。
type Options struct {
	Runner *inference.Runner

	// Passes MC 随机前向次数
	Passes int

	// NoiseSigma MC noise 的噪声标准差
	NoiseSigma float64

	// Seed random 与 noise 策略的随机种子
	Seed uint64

	// RepresentativeThreshold variance_representative 的 embedding 距离阈值
	RepresentativeThreshold float64

	Fusion FusionWeights
	Weak   WeakOptions

	// AccuracyMode accuracy_prediction 如何汇总准确率头的输出，默认 softmax
	AccuracyMode AccuracyMode

	// Workers core-set 距离缓存更新的并发数，<= 0 时为 GOMAXPROCS
	Workers int

	// Post 打分排序之后、截断之前执行的后处理链（过滤、重排）
	Post *pipeline.Pipeline

	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	defaults := &core.DefaultSelectionConfig{}
	if o.Passes <= 0 {
		o.Passes = defaults.DefaultPasses()
	}
	if o.NoiseSigma <= 0 {
		o.NoiseSigma = defaults.DefaultNoiseSigma()
	}
	if o.Fusion == (FusionWeights{}) {
		o.Fusion = FusionWeights{Confidence: 1, Margin: 1, Entropy: 1}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// New 根据策略名构建 Selector。需要推理的策略要求 opts.Runner 非空。
func New(method Method, opts Options) (Selector, error) {
	opts.applyDefaults()
	if method != MethodRandom && opts.Runner == nil {
		return nil, core.Errorf(core.ModuleSelection, core.ErrorCodeInvalidInput,
			"selection: strategy %s needs an inference runner", method)
	}

	mode, err := ParseAccuracyMode(string(opts.AccuracyMode))
	if err != nil {
		return nil, err
	}
	opts.AccuracyMode = mode

	var s Selector
	switch method {
	case MethodRandom:
		s = &randomSelector{opts: opts}
	case MethodVariance, MethodVarianceRepresentative, MethodNoiseImage, MethodNoiseFeature, MethodNoiseVariance:
		s = &mcSelector{method: method, opts: opts}
	case MethodCoreSet:
		s = &coresetSelector{opts: opts}
	case MethodCEALConfidence, MethodCEALMargin, MethodCEALEntropy, MethodCEALFusion, MethodCEALEntropyWeak:
		s = &cealSelector{method: method, opts: opts}
	case MethodAccuracyLabels:
		s = &accuracySelector{opts: opts}
	case MethodAccuracyPrediction:
		s = &predictedAccuracySelector{opts: opts}
	default:
		_, err = ParseMethod(string(method))
		return nil, err
	}
	return &guarded{inner: s, method: method, logger: opts.Logger}, nil
}

// guarded 统一处理参数检查、结果校验、日志与指标。
type guarded struct {
	inner  Selector
	method Method
	logger *slog.Logger
}

func (g *guarded) Name() string { return g.inner.Name() }

func (g *guarded) Select(ctx context.Context, rctx *core.RoundContext, model core.Model, candidates []core.ImageKey, count int) (*core.SelectionResult, error) {
	if rctx == nil {
		rctx = &core.RoundContext{}
	}
	start := time.Now()
	res, err := g.selectChecked(ctx, rctx, model, candidates, count)
	if err != nil {
		code := ""
		if de := core.GetDomainError(err); de != nil {
			code = de.Code
		}
		monitor.ObserveSelectionError(string(g.method), code)
		return nil, err
	}
	monitor.ObserveSelection(string(g.method), len(res.Keys), time.Since(start))
	g.logger.Info("selection done",
		"method", g.method,
		"iteration", rctx.Iteration,
		"candidates", len(candidates),
		"selected", len(res.Keys),
		"weak_labels", len(res.WeakLabels),
		"elapsed", time.Since(start))
	return res, nil
}

func (g *guarded) selectChecked(ctx context.Context, rctx *core.RoundContext, model core.Model, candidates []core.ImageKey, count int) (*core.SelectionResult, error) {
	if count < 0 {
		return nil, core.Errorf(core.ModuleSelection, core.ErrorCodeInvalidInput, "selection: negative count %d", count)
	}
	if count > len(candidates) {
		return nil, core.Errorf(core.ModuleSelection, core.ErrorCodeInsufficientPool,
			"selection: %s asked for %d keys but only %d candidates remain", g.method, count, len(candidates))
	}
	if count == 0 {
		return &core.SelectionResult{Keys: []core.ImageKey{}}, nil
	}
	if model == nil && g.method != MethodRandom {
		return nil, core.Errorf(core.ModuleSelection, core.ErrorCodeInvalidInput, "selection: %s needs a model", g.method)
	}

	res, err := g.inner.Select(ctx, rctx, model, candidates, count)
	if err != nil {
		return nil, err
	}
	if err := res.Validate(candidates, count); err != nil {
		return nil, err
	}
	return res, nil
}

// finalize 在已排序的候选上执行后处理链并截取前 count 个。
func finalize(ctx context.Context, rctx *core.RoundContext, method Method, post *pipeline.Pipeline, ordered []*core.Candidate, count int) (*core.SelectionResult, error) {
	for _, c := range ordered {
		c.PutLabel("selection_method", utils.Label{Value: string(method), Source: "selection"})
	}
	out, err := post.Run(ctx, rctx, ordered)
	if err != nil {
		return nil, err
	}
	if len(out) < count {
		return nil, core.Errorf(core.ModuleSelection, core.ErrorCodeInsufficientPool,
			"selection: %d candidates left after post-processing, need %d", len(out), count)
	}
	out = out[:count]
	res := &core.SelectionResult{
		Keys:   make([]core.ImageKey, count),
		Scores: make([]float64, count),
	}
	for i, c := range out {
		res.Keys[i] = c.Key
		res.Scores[i] = c.Score
	}
	return res, nil
}

func unsupportedModel(method Method, model core.Model, need string) error {
	return core.Errorf(core.ModuleSelection, core.ErrorCodeUnsupportedStrategy,
		"selection: %s needs a model with %s, %s does not provide it", method, need, model.Name())
}
