package filter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/activeseg/core"
)

// StoreAdapter 将 core.Store 适配为过滤器所需的存储接口。
// 排除名单以 JSON 字符串数组保存。
type StoreAdapter struct {
	store core.Store
}

// NewStoreAdapter 创建一个 core.Store 适配器。
func NewStoreAdapter(s core.Store) *StoreAdapter {
	return &StoreAdapter{store: s}
}

// GetExcluded 从 Store 读取排除名单。
func (a *StoreAdapter) GetExcluded(ctx context.Context, key string) ([]core.ImageKey, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var keys []core.ImageKey
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse exclude list %s: %w", key, err)
	}
	return keys, nil
}

// PutExcluded 覆盖写入排除名单。
func (a *StoreAdapter) PutExcluded(ctx context.Context, key string, keys []core.ImageKey) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, key, data)
}
