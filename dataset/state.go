package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/rushteam/activeseg/core"
)

// StateKey 是样本池快照在 Store 中的默认 key。
const StateKey = "pool/state"

// State 是样本池的可序列化快照。伪标注与复制倍数是训练轮内的临时状态，不持久化。
type State struct {
	Labeled          []core.ImageKey                 `json:"labeled"`
	Remaining        []core.ImageKey                 `json:"remaining"`
	LastAdded        []core.ImageKey                 `json:"last_added"`
	RegionBased      bool                            `json:"region_based,omitempty"`
	Width            int                             `json:"width,omitempty"`
	Height           int                             `json:"height,omitempty"`
	Regions          map[core.ImageKey][]core.Region `json:"regions,omitempty"`
	LastAddedRegions map[core.ImageKey][]core.Region `json:"last_added_regions,omitempty"`
}

// Snapshot 导出当前划分。
func (p *Pool) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := State{
		Labeled:     slices.Clone(p.labeled),
		Remaining:   slices.Clone(p.remaining),
		LastAdded:   slices.Clone(p.lastAdded),
		RegionBased: p.regionBased,
		Width:       p.width,
		Height:      p.height,
	}
	if p.regionBased {
		st.Regions = cloneRegions(p.regions)
		st.LastAddedRegions = cloneRegions(p.lastAddedRegions)
	}
	return st
}

// Restore 从快照重建样本池，快照违反不变量时返回 INVARIANT_VIOLATION。
func Restore(st State) (*Pool, error) {
	var opts []Option
	if st.RegionBased {
		opts = append(opts, WithRegions(st.Width, st.Height))
	} else {
		opts = append(opts, WithImageSize(st.Width, st.Height))
	}
	inventory := make([]core.ImageKey, 0, len(st.Labeled)+len(st.Remaining))
	inventory = append(inventory, st.Labeled...)
	inventory = append(inventory, st.Remaining...)

	p, err := NewPool(inventory, st.Labeled, opts...)
	if err != nil {
		return nil, err
	}
	if p.total != len(st.Labeled)+len(st.Remaining) || len(p.labeled) != len(st.Labeled) {
		return nil, core.NewDomainError(core.ModulePool, core.ErrorCodeInvariantViolation,
			"pool: snapshot has overlapping or duplicate keys")
	}
	for _, k := range st.LastAdded {
		if _, ok := p.labeledSet[k]; !ok {
			return nil, core.Errorf(core.ModulePool, core.ErrorCodeInvariantViolation,
				"pool: snapshot last_added key %q is not labeled", k)
		}
	}
	p.lastAdded = slices.Clone(st.LastAdded)
	if st.RegionBased {
		p.regions = cloneRegions(st.Regions)
		p.lastAddedRegions = cloneRegions(st.LastAddedRegions)
	}
	return p, nil
}

func cloneRegions(src map[core.ImageKey][]core.Region) map[core.ImageKey][]core.Region {
	out := make(map[core.ImageKey][]core.Region, len(src))
	for k, rs := range maps.All(src) {
		out[k] = slices.Clone(rs)
	}
	return out
}

// SaveState 把样本池快照写入 Store。
func SaveState(ctx context.Context, s core.Store, key string, p *Pool) error {
	data, err := json.Marshal(p.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal pool state: %w", err)
	}
	return s.Set(ctx, key, data)
}

// LoadState 从 Store 读取快照并重建样本池。快照不存在时返回 NOT_FOUND。
func LoadState(ctx context.Context, s core.Store, key string) (*Pool, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse pool state: %w", err)
	}
	return Restore(st)
}
