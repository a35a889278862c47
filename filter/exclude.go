package filter

import (
	"context"

	"github.com/rushteam/activeseg/core"
)

// ExcludeFilter 过滤掉排除名单中的 key（例如已知损坏或送标中的图像）。
type ExcludeFilter struct {
	// Keys 是内存中的排除名单
	Keys []core.ImageKey

	// Store 用于从存储中读取排除名单（可选）
	Store ExcludeStore

	// Key 是 Store 中的排除名单 key（可选）
	Key string

	set map[core.ImageKey]struct{}
}

// ExcludeStore 是排除名单存储接口。
type ExcludeStore interface {
	// GetExcluded 获取排除名单
	GetExcluded(ctx context.Context, key string) ([]core.ImageKey, error)
}

// NewExcludeFilter 创建一个排除名单过滤器。
func NewExcludeFilter(keys []core.ImageKey, storeAdapter *StoreAdapter, key string) *ExcludeFilter {
	var store ExcludeStore
	if storeAdapter != nil {
		store = storeAdapter
	}
	set := make(map[core.ImageKey]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return &ExcludeFilter{Keys: keys, Store: store, Key: key, set: set}
}

func (f *ExcludeFilter) Name() string {
	return "filter.exclude"
}

func (f *ExcludeFilter) ShouldFilter(
	ctx context.Context,
	_ *core.RoundContext,
	c *core.Candidate,
) (bool, error) {
	if c == nil {
		return true, nil
	}

	if _, ok := f.set[c.Key]; ok {
		return true, nil
	}

	// 从 Store 检查；名单不存在视为空
	if f.Store != nil && f.Key != "" {
		excluded, err := f.Store.GetExcluded(ctx, f.Key)
		if err != nil {
			if core.IsStoreNotFound(err) {
				return false, nil
			}
			return false, err
		}
		for _, k := range excluded {
			if c.Key == k {
				return true, nil
			}
		}
	}

	return false, nil
}
