// Package active 实现主动学习主循环：训练、打分选择、扩充已标注集合，直到样本池耗尽或达到轮数上限。
package active

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/dataset"
	"github.com/rushteam/activeseg/monitor"
	"github.com/rushteam/activeseg/selection"
)

// Options 配置主循环。
type Options struct {
	// SelectionCount 每轮选出的图像数（整图模式）
	SelectionCount int

	// Regions 非 nil 时启用区域模式：每轮用 max-subset 在 PixelBudget 内选区域
	Regions     *selection.MaxSubset
	PixelBudget int

	TrainMode TrainMode

	// ReplicateFactor 最近扩充样本的复制倍数，<= 0 时取 Pool.EpochReplicateFactor()
	ReplicateFactor int

	// MaxIterations 选择轮数上限，<= 0 表示直到样本池耗尽
	MaxIterations int

	// StartIteration 从持久化状态恢复时的起始轮次
	StartIteration int

	// RunID 为空时生成 uuid
	RunID string

	// Params 透传给 RoundContext，供后处理表达式引用
	Params map[string]any

	// AllowPartialFinalBatch 为 true 时剩余样本不足 SelectionCount 的最后一轮按剩余数选择；
	// 默认直接以 INSUFFICIENT_POOL 中止
	AllowPartialFinalBatch bool

	// StateStore 非 nil 时每轮扩充后把样本池状态写入 StateKey
	StateStore core.Store
	StateKey   string

	// Samples 非 nil 时每次训练前用 dataset.Loader 把训练视图逐批解析一遍，
	// 伪标注、区域掩码与尺寸不一致在调用 Trainer 之前暴露
	Samples         core.SampleSource
	VerifyBatchSize int

	Logger *slog.Logger
}

// RoundReport 是一轮的摘要。
type RoundReport struct {
	Iteration    int                `json:"iteration"`
	Mode         TrainMode          `json:"mode"`
	ResetModel   bool               `json:"reset_model"`
	TrainEntries int                `json:"train_entries"`
	TrainPixels  int                `json:"train_pixels,omitempty"`
	Loss         float64            `json:"loss"`
	Epochs       int                `json:"epochs"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Selected     []core.ImageKey    `json:"selected,omitempty"`
	Regions      int                `json:"regions,omitempty"`
	WeakLabels   int                `json:"weak_labels,omitempty"`
	Labeled      int                `json:"labeled"`
	Remaining    int                `json:"remaining"`
	Duration     time.Duration      `json:"duration"`
}

// Loop 是主动学习主循环。样本池只在本循环中被修改，且只在两次训练之间修改。
type Loop struct {
	pool     *dataset.Pool
	model    core.Model
	trainer  core.Trainer
	selector selection.Selector
	opts     Options

	runID     string
	state     State
	iteration int

	// pending 是上一轮选择产生、等待下一次训练使用的伪标注
	pending []core.WeakLabel
	reports []RoundReport
}

// NewLoop 创建主循环。整图模式需要 selector，区域模式需要 opts.Regions。
func NewLoop(pool *dataset.Pool, model core.Model, trainer core.Trainer, selector selection.Selector, opts Options) (*Loop, error) {
	if pool == nil || model == nil || trainer == nil {
		return nil, core.NewDomainError(core.ModuleActive, core.ErrorCodeInvalidInput, "active: pool, model and trainer are required")
	}
	mode, err := ParseTrainMode(string(opts.TrainMode))
	if err != nil {
		return nil, err
	}
	opts.TrainMode = mode

	if opts.Regions != nil {
		if !pool.RegionBased() {
			return nil, core.NewDomainError(core.ModuleActive, core.ErrorCodeInvalidInput, "active: region selection needs a region-based pool")
		}
		if opts.PixelBudget <= 0 {
			return nil, core.Errorf(core.ModuleActive, core.ErrorCodeInvalidInput, "active: pixel budget must be positive, got %d", opts.PixelBudget)
		}
	} else {
		if selector == nil {
			return nil, core.NewDomainError(core.ModuleActive, core.ErrorCodeInvalidInput, "active: selector is required")
		}
		if opts.SelectionCount <= 0 {
			return nil, core.Errorf(core.ModuleActive, core.ErrorCodeInvalidInput, "active: selection count must be positive, got %d", opts.SelectionCount)
		}
	}
	if opts.Samples != nil && opts.VerifyBatchSize <= 0 {
		opts.VerifyBatchSize = 1
	}
	if opts.StateStore != nil && opts.StateKey == "" {
		opts.StateKey = dataset.StateKey
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Loop{
		pool:      pool,
		model:     model,
		trainer:   trainer,
		selector:  selector,
		opts:      opts,
		runID:     runID,
		state:     StateTraining,
		iteration: max(opts.StartIteration, 0),
	}, nil
}

func (l *Loop) RunID() string { return l.runID }

func (l *Loop) State() State { return l.state }

func (l *Loop) Iteration() int { return l.iteration }

// Reports 返回已完成轮次的摘要。
func (l *Loop) Reports() []RoundReport {
	return slices.Clone(l.reports)
}

// Run 循环执行 Step 直到 DONE。任何错误都会中止循环，不跳过本轮预算。
func (l *Loop) Run(ctx context.Context) ([]RoundReport, error) {
	l.logger().Info("active loop started",
		"run_id", l.runID, "mode", l.opts.TrainMode,
		"labeled", len(l.pool.Labeled()), "remaining", len(l.pool.Remaining()),
		"expands_needed", l.pool.CountExpandsNeeded(l.opts.SelectionCount))

	for l.state != StateDone {
		if _, err := l.Step(ctx); err != nil {
			l.logger().Error("active loop aborted", "run_id", l.runID, "iteration", l.iteration, "state", l.state, "error", err)
			return l.Reports(), err
		}
	}
	l.logger().Info("active loop done", "run_id", l.runID, "rounds", len(l.reports), "labeled", len(l.pool.Labeled()))
	return l.Reports(), nil
}

// Step 执行一轮：TRAINING，然后若未终止则 SELECTING 与 EXPANDING。
// 终止条件在训练之后检查，保证最后一次扩充的样本也参与训练。
func (l *Loop) Step(ctx context.Context) (*RoundReport, error) {
	if l.state == StateDone {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	report := RoundReport{Iteration: l.iteration, Mode: l.opts.TrainMode}

	l.state = StateTraining
	if err := l.train(ctx, &report); err != nil {
		return nil, err
	}

	if l.terminal() {
		l.state = StateDone
		return l.finish(&report, start), nil
	}

	rctx := &core.RoundContext{
		RunID:     l.runID,
		Iteration: l.iteration,
		Labeled:   l.pool.Labeled(),
		Params:    l.opts.Params,
	}
	if l.pool.RegionBased() {
		rctx.Regions = l.pool.Regions()
	}

	l.state = StateSelecting
	if l.opts.Regions != nil {
		candidates := append(l.pool.Labeled(), l.pool.Remaining()...)
		regions, err := l.opts.Regions.SelectRegions(ctx, rctx, l.model, candidates, l.opts.PixelBudget)
		if err != nil {
			return nil, fmt.Errorf("active: iteration %d: select regions: %w", l.iteration, err)
		}
		if len(regions) == 0 {
			return nil, core.Errorf(core.ModuleActive, core.ErrorCodeInsufficientPool,
				"active: iteration %d: no region fits pixel budget %d", l.iteration, l.opts.PixelBudget)
		}
		l.state = StateExpanding
		if err := l.pool.ExpandRegions(regions); err != nil {
			return nil, fmt.Errorf("active: iteration %d: expand regions: %w", l.iteration, err)
		}
		report.Selected = make([]core.ImageKey, 0, len(regions))
		for _, rs := range regions {
			report.Selected = append(report.Selected, rs.Key)
			report.Regions += len(rs.Regions)
		}
	} else {
		candidates := l.pool.Remaining()
		count := l.opts.SelectionCount
		if count > len(candidates) {
			if !l.opts.AllowPartialFinalBatch {
				return nil, core.Errorf(core.ModuleActive, core.ErrorCodeInsufficientPool,
					"active: iteration %d: selection count %d exceeds %d remaining candidates", l.iteration, count, len(candidates))
			}
			// 最后一批：ceil(remaining/count) 轮中的余数
			l.logger().Info("final partial batch", "run_id", l.runID, "iteration", l.iteration, "count", len(candidates))
			count = len(candidates)
		}
		res, err := l.selector.Select(ctx, rctx, l.model, candidates, count)
		if err != nil {
			return nil, fmt.Errorf("active: iteration %d: select: %w", l.iteration, err)
		}
		l.state = StateExpanding
		if err := l.pool.ExpandTrainingSet(res.Keys); err != nil {
			return nil, fmt.Errorf("active: iteration %d: expand: %w", l.iteration, err)
		}
		l.pending = res.WeakLabels
		report.Selected = slices.Clone(res.Keys)
		report.WeakLabels = len(res.WeakLabels)
	}

	if err := l.pool.Validate(); err != nil {
		return nil, err
	}
	if l.opts.StateStore != nil {
		if err := dataset.SaveState(ctx, l.opts.StateStore, l.opts.StateKey, l.pool); err != nil {
			return nil, fmt.Errorf("active: iteration %d: save pool state: %w", l.iteration, err)
		}
	}

	l.iteration++
	l.state = StateTraining
	return l.finish(&report, start), nil
}

func (l *Loop) terminal() bool {
	if l.pool.FullyLabeled() {
		return true
	}
	return l.opts.MaxIterations > 0 && l.iteration >= l.opts.MaxIterations
}

// train 按训练模式配置样本池视图，调用 Trainer，并在返回前恢复视图、清除伪标注。
func (l *Loop) train(ctx context.Context, report *RoundReport) error {
	first := l.iteration == 0
	reset := first || l.opts.TrainMode == TrainResetModel

	viewMode, factor := dataset.ModeAllBatches, 1
	if !first {
		switch l.opts.TrainMode {
		case TrainQueryOnly:
			viewMode, factor = dataset.ModeLastAddedBatch, l.replicateFactor()
		case TrainMixed:
			factor = l.replicateFactor()
		}
	}

	l.pool.SetMode(viewMode)
	if err := l.pool.ReplicateTrainingSet(factor); err != nil {
		return err
	}
	defer func() {
		l.pool.ResetReplicatedTrainingSet()
		l.pool.SetMode(dataset.ModeAllBatches)
	}()

	if len(l.pending) > 0 {
		if err := l.pool.AddWeakLabels(l.pending); err != nil {
			return fmt.Errorf("active: iteration %d: install weak labels: %w", l.iteration, err)
		}
		defer l.pool.ClearWeakLabels()
	}
	weak := len(l.pending)
	l.pending = nil

	round := &core.TrainRound{
		RunID:      l.runID,
		Iteration:  l.iteration,
		ResetModel: reset,
		Mode:       string(l.opts.TrainMode),
	}
	for _, e := range l.pool.Entries() {
		te := core.TrainEntry{Key: e.Key, Weak: e.Weak, Regions: e.Regions}
		if e.Weak {
			te.Label, _ = l.pool.WeakLabel(e.Key)
		}
		round.Entries = append(round.Entries, te)
	}

	if l.opts.Samples != nil {
		pixels, err := l.verify(ctx)
		if err != nil {
			return fmt.Errorf("active: iteration %d: load training view: %w", l.iteration, err)
		}
		report.TrainPixels = pixels
	}

	monitor.SetPool(len(l.pool.Labeled()), len(l.pool.Remaining()), weak)
	l.logger().Info("training",
		"run_id", l.runID, "iteration", l.iteration, "reset_model", reset,
		"view", viewMode, "replicate", factor, "entries", len(round.Entries), "weak", weak)

	res, err := l.trainer.Train(ctx, round)
	if err != nil {
		return fmt.Errorf("active: iteration %d: train: %w", l.iteration, err)
	}
	if res == nil || math.IsNaN(res.Loss) || math.IsInf(res.Loss, 0) {
		loss := math.NaN()
		if res != nil {
			loss = res.Loss
		}
		return core.Errorf(core.ModuleActive, core.ErrorCodeTrainingDiverged,
			"active: iteration %d: training diverged (loss=%v)", l.iteration, loss)
	}

	monitor.SetRound(l.iteration, res.Loss)
	report.ResetModel = reset
	report.TrainEntries = len(round.Entries)
	report.Loss = res.Loss
	report.Epochs = res.Epochs
	report.Metrics = res.Metrics
	return nil
}

// verify 按训练视图逐批加载样本，返回参与训练（非忽略）的像素数。
func (l *Loop) verify(ctx context.Context) (int, error) {
	pixels := 0
	err := dataset.NewLoader(l.pool, l.opts.Samples).Epoch(ctx, l.opts.VerifyBatchSize, func(batch []*core.Sample) error {
		for _, s := range batch {
			pixels += dataset.TrainablePixels(s.Label)
		}
		return nil
	})
	return pixels, err
}

func (l *Loop) replicateFactor() int {
	if l.opts.ReplicateFactor > 0 {
		return l.opts.ReplicateFactor
	}
	return l.pool.EpochReplicateFactor()
}

func (l *Loop) finish(report *RoundReport, start time.Time) *RoundReport {
	report.Labeled = len(l.pool.Labeled())
	report.Remaining = len(l.pool.Remaining())
	report.Duration = time.Since(start)
	monitor.SetPool(report.Labeled, report.Remaining, 0)
	l.reports = append(l.reports, *report)

	l.logger().Info("round finished",
		"run_id", l.runID, "iteration", report.Iteration, "state", l.state,
		"loss", report.Loss, "selected", len(report.Selected), "regions", report.Regions,
		"weak_labels", report.WeakLabels, "labeled", report.Labeled, "remaining", report.Remaining,
		"duration", report.Duration)
	out := *report
	return &out
}

func (l *Loop) logger() *slog.Logger {
	return l.opts.Logger
}
