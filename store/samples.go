package store

import (
	"context"
	"strings"

	"github.com/rushteam/activeseg/core"
)

// SampleStore 在 core.Store 之上提供 image key -> Sample 的查找。
// 缺失或损坏的样本一律返回 STORE_LOOKUP_FAILURE：缺一张标注会悄悄改变平均指标，不能跳过。
type SampleStore struct {
	Store  core.Store
	Prefix string // 样本 key 前缀，例如 "samples/"
}

func NewSampleStore(s core.Store, prefix string) *SampleStore {
	return &SampleStore{Store: s, Prefix: prefix}
}

func (s *SampleStore) blobKey(key core.ImageKey) string {
	return s.Prefix + string(key)
}

// Sample 实现 core.SampleSource。
func (s *SampleStore) Sample(ctx context.Context, key core.ImageKey) (*core.Sample, error) {
	blob, err := s.Store.Get(ctx, s.blobKey(key))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, core.Errorf(core.ModuleStore, core.ErrorCodeStoreLookupFailure,
				"store: sample %q not found in %s", key, s.Store.Name())
		}
		return nil, core.Errorf(core.ModuleStore, core.ErrorCodeStoreLookupFailure,
			"store: read sample %q: %v", key, err)
	}
	sample, err := DecodeSample(key, blob)
	if err != nil {
		return nil, core.Errorf(core.ModuleStore, core.ErrorCodeStoreLookupFailure, "store: %v", err)
	}
	return sample, nil
}

// Put 编码并写入一个样本。
func (s *SampleStore) Put(ctx context.Context, key core.ImageKey, img *core.Image, label *core.LabelMap) error {
	blob, err := EncodeSample(img, label)
	if err != nil {
		return err
	}
	return s.Store.Set(ctx, s.blobKey(key), blob)
}

// Inventory 返回存储中的全部样本 key（按字典序），作为样本池的全集。
func (s *SampleStore) Inventory(ctx context.Context) ([]core.ImageKey, error) {
	raw, err := s.Store.Keys(ctx, s.Prefix)
	if err != nil {
		return nil, err
	}
	out := make([]core.ImageKey, 0, len(raw))
	for _, k := range raw {
		out = append(out, core.ImageKey(strings.TrimPrefix(k, s.Prefix)))
	}
	return out, nil
}

var _ core.SampleSource = (*SampleStore)(nil)
