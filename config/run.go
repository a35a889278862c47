// Package config 加载主动学习运行配置（YAML），并维护后处理 Node 的注册表。
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/activeseg/active"
	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/pipeline"
	"github.com/rushteam/activeseg/selection"
	"github.com/rushteam/activeseg/service"
)

// RunConfig 是一次主动学习运行的完整配置。
type RunConfig struct {
	Store     StoreConfig     `yaml:"store"`
	Data      DataConfig      `yaml:"data"`
	Selection SelectionConfig `yaml:"selection"`
	Loop      LoopConfig      `yaml:"loop"`
	Region    RegionConfig    `yaml:"region"`

	// Model 是推理服务，Trainer 是训练服务
	Model   ModelConfig           `yaml:"model"`
	Trainer service.ServiceConfig `yaml:"trainer"`

	// Post 是打分之后、截断之前的后处理节点
	Post []pipeline.NodeConfig `yaml:"post"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type StoreConfig struct {
	Backend  string `yaml:"backend"` // memory / redis / badger
	Path     string `yaml:"path"`    // badger 数据目录
	ReadOnly bool   `yaml:"read_only"`
	Addr     string `yaml:"addr"` // redis 地址
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DataConfig struct {
	SeedSet      string `yaml:"seed_set"`      // 种子集文件，每行一个 key
	SamplePrefix string `yaml:"sample_prefix"` // 样本 blob 的 key 前缀
	StateKey     string `yaml:"state_key"`     // 样本池状态的 key
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`

	// CacheSize 推理时缓存的解码样本数，0 表示不缓存
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type SelectionConfig struct {
	Method                  string                  `yaml:"method"`
	Count                   int                     `yaml:"count"`
	BatchSize               int                     `yaml:"batch_size"`
	Workers                 int                     `yaml:"workers"`
	Passes                  int                     `yaml:"passes"`
	NoiseSigma              float64                 `yaml:"noise_sigma"`
	Seed                    uint64                  `yaml:"seed"`
	RepresentativeThreshold float64                 `yaml:"representative_threshold"`
	Fusion                  selection.FusionWeights `yaml:"fusion"`
	Weak                    selection.WeakOptions   `yaml:"weak"`
	AccuracyMode            string                  `yaml:"accuracy_mode"` // softmax / argmax
}

type LoopConfig struct {
	TrainMode       string `yaml:"train_mode"` // reset_model / query_only / mixed
	ReplicateFactor int    `yaml:"replicate_factor"`
	MaxIterations   int    `yaml:"max_iterations"`
	Resume          bool   `yaml:"resume"`

	// AllowPartialFinalBatch 剩余样本不足 selection.count 时按剩余数选完，默认中止
	AllowPartialFinalBatch bool `yaml:"allow_partial_final_batch"`
	// VerifyEntries 每次训练前逐批加载训练视图
	VerifyEntries bool `yaml:"verify_entries"`
}

type RegionConfig struct {
	Enabled     bool `yaml:"enabled"`
	Size        int  `yaml:"size"`
	PixelBudget int  `yaml:"pixel_budget"`
	Passes      int  `yaml:"passes"`
}

// ModelConfig 是推理服务配置，额外带类别数。
type ModelConfig struct {
	service.ServiceConfig `yaml:",inline"`
	Classes               int `yaml:"classes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // text / json
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 例如 ":9100"，为空时不暴露
}

// Default 返回默认配置。
func Default() *RunConfig {
	sc := &core.DefaultSelectionConfig{}
	return &RunConfig{
		Store: StoreConfig{Backend: "badger", Path: "activeseg_data"},
		Data: DataConfig{
			SamplePrefix: "samples/",
			StateKey:     "pool/state",
			Width:        2048,
			Height:       1024,
		},
		Selection: SelectionConfig{
			Method:     string(selection.MethodVariance),
			Count:      50,
			BatchSize:  sc.DefaultBatchSize(),
			Passes:     sc.DefaultPasses(),
			NoiseSigma: sc.DefaultNoiseSigma(),
			Fusion:     selection.FusionWeights{Confidence: 1, Margin: 1, Entropy: 1},
		},
		Loop:   LoopConfig{TrainMode: string(active.TrainResetModel)},
		Region: RegionConfig{Size: sc.DefaultRegionSize()},
		Model: ModelConfig{
			ServiceConfig: service.ServiceConfig{Type: service.ServiceTypeHTTP, Endpoint: "http://localhost:8080"},
			Classes:       19,
		},
		Trainer: service.ServiceConfig{Type: service.ServiceTypeHTTP, Endpoint: "http://localhost:8081"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load 读取 YAML 配置，未出现的字段保留默认值。path 为空时依次尝试 activeseg.yaml、configs/activeseg.yaml。
func Load(path string) (*RunConfig, error) {
	cfg := Default()
	if path == "" {
		for _, p := range []string{"activeseg.yaml", "configs/activeseg.yaml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			cfg.applyDefaults()
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *RunConfig) applyDefaults() {
	sc := &core.DefaultSelectionConfig{}
	if c.Selection.BatchSize <= 0 {
		c.Selection.BatchSize = sc.DefaultBatchSize()
	}
	if c.Selection.Passes <= 0 {
		c.Selection.Passes = sc.DefaultPasses()
	}
	if c.Region.Size <= 0 {
		c.Region.Size = sc.DefaultRegionSize()
	}
	if c.Data.SamplePrefix == "" {
		c.Data.SamplePrefix = "samples/"
	}
	if c.Data.StateKey == "" {
		c.Data.StateKey = "pool/state"
	}
}

// Validate 在任何训练开始之前检查配置。未知的选择策略返回 UNSUPPORTED_STRATEGY。
func (c *RunConfig) Validate() error {
	if !c.Region.Enabled {
		if _, err := selection.ParseMethod(c.Selection.Method); err != nil {
			return err
		}
		if c.Selection.Count <= 0 {
			return invalid("selection.count must be positive, got %d", c.Selection.Count)
		}
	} else {
		if c.Region.PixelBudget <= 0 {
			return invalid("region.pixel_budget must be positive, got %d", c.Region.PixelBudget)
		}
		if c.Data.Width <= 0 || c.Data.Height <= 0 {
			return invalid("data.width and data.height are required in region mode")
		}
		if smallest := min(c.Region.Size, c.Data.Width) * min(c.Region.Size, c.Data.Height); c.Region.PixelBudget < smallest {
			return invalid("region.pixel_budget %d is smaller than one %dx%d region", c.Region.PixelBudget, c.Region.Size, c.Region.Size)
		}
	}
	if _, err := active.ParseTrainMode(c.Loop.TrainMode); err != nil {
		return err
	}
	if c.Loop.ReplicateFactor < 0 {
		return invalid("loop.replicate_factor must be >= 0, got %d", c.Loop.ReplicateFactor)
	}
	if c.Data.CacheSize < 0 {
		return invalid("data.cache_size must be >= 0, got %d", c.Data.CacheSize)
	}
	if _, err := selection.ParseAccuracyMode(c.Selection.AccuracyMode); err != nil {
		return err
	}
	if c.Selection.NoiseSigma < 0 {
		return invalid("selection.noise_sigma must be >= 0, got %v", c.Selection.NoiseSigma)
	}
	switch c.Store.Backend {
	case "memory", "redis", "badger":
	default:
		return core.Errorf(core.ModuleConfig, core.ErrorCodeNotSupported, "config: unsupported store backend %q", c.Store.Backend)
	}
	if c.Model.Classes <= 0 {
		return invalid("model.classes must be positive, got %d", c.Model.Classes)
	}
	if err := service.ValidateConfig(&c.Model.ServiceConfig); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := service.ValidateConfig(&c.Trainer); err != nil {
		return fmt.Errorf("trainer: %w", err)
	}
	return ValidateNodes(c.Post)
}

// SelectionMethod 返回解析后的策略；调用前应先 Validate。
func (c *RunConfig) SelectionMethod() selection.Method {
	m, _ := selection.ParseMethod(c.Selection.Method)
	return m
}

func invalid(format string, args ...any) error {
	return core.Errorf(core.ModuleConfig, core.ErrorCodeInvalidInput, "config: "+format, args...)
}
