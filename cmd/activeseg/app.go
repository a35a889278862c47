package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rushteam/activeseg/active"
	"github.com/rushteam/activeseg/config"
	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/dataset"
	"github.com/rushteam/activeseg/inference"
	"github.com/rushteam/activeseg/model"
	"github.com/rushteam/activeseg/selection"
	"github.com/rushteam/activeseg/service"
	"github.com/rushteam/activeseg/store"
)

// app 持有一次命令执行期间共享的配置与资源。
type app struct {
	cfg     *config.RunConfig
	logger  *slog.Logger
	store   core.Store
	samples *store.SampleStore
	cache   *store.CachedSamples
}

var current app

func loadApp(cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if cmd.Flags().Changed("max-iterations") {
		cfg.Loop.MaxIterations = maxIterations
	}
	if resume {
		cfg.Loop.Resume = true
	}

	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	current = app{cfg: cfg, logger: logger}
	return nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

// openStore 打开样本库，并绑定给需要 Store 的后处理节点。
func (a *app) openStore(ctx context.Context) error {
	s, err := config.OpenStore(ctx, a.cfg.Store, a.logger)
	if err != nil {
		return err
	}
	config.BindStore(s)
	a.store = s
	a.samples = store.NewSampleStore(s, a.cfg.Data.SamplePrefix)
	return nil
}

func (a *app) close() {
	if a.cache != nil {
		hits, misses := a.cache.Stats()
		a.logger.Debug("sample cache", "hits", hits, "misses", misses)
		a.cache.Close()
	}
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", "error", err)
	}
}

// serveMetrics 在配置了地址时后台暴露 /metrics。
func (a *app) serveMetrics() {
	addr := a.cfg.Metrics.Addr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", "error", err)
		}
	}()
}

// buildPool 恢复持久化的样本池，或者用样本库全集与种子集新建。
func (a *app) buildPool(ctx context.Context) (*dataset.Pool, error) {
	cfg := a.cfg
	if cfg.Loop.Resume {
		p, err := dataset.LoadState(ctx, a.store, cfg.Data.StateKey)
		if err == nil {
			a.logger.Info("pool restored", "labeled", len(p.Labeled()), "remaining", len(p.Remaining()))
			return p, nil
		}
		if !core.IsNotFound(err) {
			return nil, err
		}
		a.logger.Warn("no persisted pool state, starting from the seed set", "key", cfg.Data.StateKey)
	}

	inventory, err := a.samples.Inventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	if len(inventory) == 0 {
		return nil, core.Errorf(core.ModuleStore, core.ErrorCodeStoreLookupFailure,
			"no samples under prefix %q in %s", cfg.Data.SamplePrefix, a.store.Name())
	}
	var seed []core.ImageKey
	if cfg.Data.SeedSet != "" {
		if seed, err = dataset.LoadSeedSet(cfg.Data.SeedSet); err != nil {
			return nil, err
		}
	}
	opt := dataset.WithImageSize(cfg.Data.Width, cfg.Data.Height)
	if cfg.Region.Enabled {
		opt = dataset.WithRegions(cfg.Data.Width, cfg.Data.Height)
	}
	return dataset.NewPool(inventory, seed, opt)
}

// runner 构建推理执行器，配置了 data.cache_size 时共享一个样本缓存。
func (a *app) runner() *inference.Runner {
	var src core.SampleSource = a.samples
	if a.cfg.Data.CacheSize > 0 {
		if a.cache == nil {
			a.cache = store.NewCachedSamples(a.samples, a.cfg.Data.CacheSize, a.cfg.Data.CacheTTL)
		}
		src = a.cache
	}
	r := inference.NewRunner(src, a.cfg.Selection.BatchSize)
	r.Workers = a.cfg.Selection.Workers
	r.Logger = a.logger
	return r
}

func (a *app) model() (*model.RPCModel, error) {
	return model.NewRPCModelFromConfig(&a.cfg.Model.ServiceConfig, a.cfg.Model.Classes)
}

func (a *app) trainer() (*service.RPCTrainer, error) {
	return service.NewTrainerFromConfig(&a.cfg.Trainer)
}

func (a *app) selector(runner *inference.Runner) (selection.Selector, error) {
	post, err := config.BuildPost(a.cfg.Post)
	if err != nil {
		return nil, err
	}
	sc := a.cfg.Selection
	return selection.New(a.cfg.SelectionMethod(), selection.Options{
		Runner:                  runner,
		Passes:                  sc.Passes,
		NoiseSigma:              sc.NoiseSigma,
		Seed:                    sc.Seed,
		RepresentativeThreshold: sc.RepresentativeThreshold,
		Fusion:                  sc.Fusion,
		Weak:                    sc.Weak,
		AccuracyMode:            selection.AccuracyMode(sc.AccuracyMode),
		Workers:                 sc.Workers,
		Post:                    post,
		Logger:                  a.logger,
	})
}

func (a *app) regions(runner *inference.Runner) *selection.MaxSubset {
	if !a.cfg.Region.Enabled {
		return nil
	}
	return &selection.MaxSubset{
		Runner:     runner,
		RegionSize: a.cfg.Region.Size,
		Passes:     a.cfg.Region.Passes,
		Logger:     a.logger,
	}
}

// loopOptions 把配置映射为主循环选项；loop.verify_entries 打开时训练前经由样本源加载训练视图。
func (a *app) loopOptions(runner *inference.Runner) active.Options {
	opts := active.Options{
		SelectionCount:         a.cfg.Selection.Count,
		Regions:                a.regions(runner),
		PixelBudget:            a.cfg.Region.PixelBudget,
		TrainMode:              active.TrainMode(a.cfg.Loop.TrainMode),
		ReplicateFactor:        a.cfg.Loop.ReplicateFactor,
		MaxIterations:          a.cfg.Loop.MaxIterations,
		AllowPartialFinalBatch: a.cfg.Loop.AllowPartialFinalBatch,
		StateStore:             a.store,
		StateKey:               a.cfg.Data.StateKey,
		Logger:                 a.logger,
	}
	if a.cfg.Loop.VerifyEntries && runner != nil {
		opts.Samples = runner.Samples
		opts.VerifyBatchSize = a.cfg.Selection.BatchSize
	}
	return opts
}

// writeJSON 把 v 写到 path，path 为空时写到 w。
func writeJSON(w io.Writer, path string, v any) error {
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
