package core

import "time"

// SelectionConfig 是选择相关的配置接口，用于提供默认值。
type SelectionConfig interface {
	// DefaultBatchSize 返回推理 batch 大小
	DefaultBatchSize() int

	// DefaultPasses 返回 MC 随机前向次数
	DefaultPasses() int

	// DefaultNoiseSigma 返回 MC noise 的噪声标准差
	DefaultNoiseSigma() float64

	// DefaultRegionSize 返回 max-subset 的区域边长
	DefaultRegionSize() int

	// DefaultTimeout 返回默认的远程调用超时时间
	DefaultTimeout() time.Duration
}

// DefaultSelectionConfig 是默认的选择配置实现。
type DefaultSelectionConfig struct{}

func (c *DefaultSelectionConfig) DefaultBatchSize() int { return 4 }

func (c *DefaultSelectionConfig) DefaultPasses() int { return 20 }

func (c *DefaultSelectionConfig) DefaultNoiseSigma() float64 { return 0.1 }

func (c *DefaultSelectionConfig) DefaultRegionSize() int { return 128 }

func (c *DefaultSelectionConfig) DefaultTimeout() time.Duration { return 30 * time.Second }
