package selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/pkg/fakemodel"
)

// hotspot 返回 4x4 的 logits：(hx,hy) 起的 2x2 格子完全不确定，其余像素很确定。
func hotspot(hx, hy int) *core.Logits {
	l := core.NewLogits(2, 4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x >= hx && x < hx+2 && y >= hy && y < hy+2 {
				continue
			}
			l.Data[y*4+x] = 5
		}
	}
	return l
}

func TestMaxSubsetPicksUncertainRegions(t *testing.T) {
	runner, keys := newRunner(t, 4, 4, []uint8{1, 2}, nil)
	m := &fakemodel.Model{Classes: 2, LogitsFn: fakemodel.Table(2, 4, 4, map[uint8]*core.Logits{
		1: hotspot(2, 0),
		2: hotspot(0, 2),
	})}
	ms := &MaxSubset{Runner: runner, RegionSize: 2}

	got, err := ms.SelectRegions(context.Background(), nil, m, keys, 8)
	require.NoError(t, err)
	assert.Equal(t, []core.RegionSelection{
		{Key: key(1), Regions: []core.Region{{X: 2, Y: 0, W: 2, H: 2}}},
		{Key: key(2), Regions: []core.Region{{X: 0, Y: 2, W: 2, H: 2}}},
	}, got)

	// 预算 6：第二个格子放不下
	got, err = ms.SelectRegions(context.Background(), nil, m, keys, 6)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, key(1), got[0].Key)
}

func TestMaxSubsetSkipsCoveredRegions(t *testing.T) {
	runner, keys := newRunner(t, 4, 4, []uint8{1}, nil)
	m := &fakemodel.Model{Classes: 2, LogitsFn: fakemodel.Table(2, 4, 4, map[uint8]*core.Logits{1: hotspot(2, 0)})}
	ms := &MaxSubset{Runner: runner, RegionSize: 2}

	rctx := &core.RoundContext{Regions: map[core.ImageKey][]core.Region{
		key(1): {{X: 2, Y: 0, W: 2, H: 2}},
	}}
	got, err := ms.SelectRegions(context.Background(), rctx, m, keys, 4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEqual(t, core.Region{X: 2, Y: 0, W: 2, H: 2}, got[0].Regions[0])

	rctx.Regions[key(1)] = []core.Region{core.FullRegion(4, 4)}
	_, err = ms.SelectRegions(context.Background(), rctx, m, keys, 4)
	assert.True(t, core.IsInsufficientPool(err))
}

func TestMaxSubsetBudgetBelowRegionArea(t *testing.T) {
	runner, keys := newRunner(t, 4, 4, []uint8{1, 2}, nil)
	m := &fakemodel.Model{Classes: 2, LogitsFn: fakemodel.Table(2, 4, 4, map[uint8]*core.Logits{
		1: hotspot(2, 0),
		2: hotspot(0, 2),
	})}
	ms := &MaxSubset{Runner: runner, RegionSize: 2}

	got, err := ms.SelectRegions(context.Background(), nil, m, keys, 3)
	require.Error(t, err)
	assert.True(t, core.IsInsufficientPool(err))
	assert.Empty(t, got)
}

func TestMaxSubsetEdgeTilesAreClipped(t *testing.T) {
	got := tile("k", 3, 5, 2, make([]float32, 15), nil)
	var area int
	for _, rs := range got {
		area += rs.region.Area()
	}
	assert.Equal(t, 15, area)
	assert.Len(t, got, 6)
}

func TestMaxSubsetRejectsBadBudget(t *testing.T) {
	_, err := (&MaxSubset{}).SelectRegions(context.Background(), nil, nil, nil, 0)
	assert.True(t, core.IsInvalidInput(err))
}
