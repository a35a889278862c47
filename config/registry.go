package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/pipeline"
)

// 使用配置驱动时，需在 main 或入口处 import _ "github.com/rushteam/activeseg/config/builders"
// 以触发内置 Node（filter.expr、filter.exclude、rank.score、rerank.representative 等）的 init 注册。

// NodeBuilder 与 pipeline.NodeBuilder 一致：根据 config 构建 Node。
// 各组件在 init 中调用 Register(typeName, builder) 即可被配置驱动。
type NodeBuilder = pipeline.NodeBuilder

var (
	defaultBuilders   = make(map[string]NodeBuilder)
	defaultBuildersMu sync.RWMutex

	boundStore   core.Store
	boundStoreMu sync.RWMutex
)

// Register 注册一种 Node 的构建逻辑，供 DefaultFactory 与配置驱动使用。
func Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[typeName] = builder
}

// SupportedTypes 返回当前已注册的 Node 类型列表（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory 返回基于当前注册表构建的 NodeFactory。
func DefaultFactory() *pipeline.NodeFactory {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range defaultBuilders {
		f.Register(typeName, builder)
	}
	return f
}

// ValidateNodes 校验所有 node 类型均已注册；若有未支持类型则返回包含已支持列表的错误。
func ValidateNodes(nodes []pipeline.NodeConfig) error {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	for _, nc := range nodes {
		if _, ok := defaultBuilders[nc.Type]; !ok {
			types := make([]string, 0, len(defaultBuilders))
			for t := range defaultBuilders {
				types = append(types, t)
			}
			sort.Strings(types)
			return core.Errorf(core.ModuleConfig, core.ErrorCodeNotSupported,
				"config: unsupported node type %q (supported: %v)", nc.Type, types)
		}
	}
	return nil
}

// ValidatePipelineConfig 校验独立 pipeline 配置文件中的 node 类型。
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return nil
	}
	return ValidateNodes(cfg.Pipeline.Nodes)
}

// BuildPost 校验并构建后处理链；nodes 为空时返回 nil（选择器视为无后处理）。
func BuildPost(nodes []pipeline.NodeConfig) (*pipeline.Pipeline, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	if err := ValidateNodes(nodes); err != nil {
		return nil, err
	}
	p, err := pipeline.Build(nodes, DefaultFactory())
	if err != nil {
		return nil, fmt.Errorf("config: post pipeline: %w", err)
	}
	return p, nil
}

// BindStore 绑定 filter.exclude 等需要存储的 Node 使用的 Store。
func BindStore(s core.Store) {
	boundStoreMu.Lock()
	defer boundStoreMu.Unlock()
	boundStore = s
}

// BoundStore 返回 BindStore 绑定的 Store，未绑定时为 nil。
func BoundStore() core.Store {
	boundStoreMu.RLock()
	defer boundStoreMu.RUnlock()
	return boundStore
}
