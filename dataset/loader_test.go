package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/store"
)

func seedSamples(t *testing.T, ks []core.ImageKey, h, w int) *store.SampleStore {
	t.Helper()
	ss := store.NewSampleStore(store.NewMemoryStore(), "samples/")
	for _, k := range ks {
		label := core.NewLabelMap(h, w)
		for i := range label.Class {
			label.Class[i] = int32(i % 3)
		}
		require.NoError(t, ss.Put(context.Background(), k, core.NewImage(h, w), label))
	}
	return ss
}

func TestMaskRegions(t *testing.T) {
	label := core.NewLabelMap(2, 3)
	copy(label.Class, []int32{0, 1, 2, 3, 4, 5})

	got := MaskRegions(label, []core.Region{{X: 1, Y: 0, W: 5, H: 1}, {X: 0, Y: 1, W: 1, H: 1}})
	ig := core.IgnoreIndex
	assert.Equal(t, []int32{ig, 1, 2, 3, ig, ig}, got.Class)
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5}, label.Class, "source label must not change")
}

func TestLoaderWeakAndRegionEntries(t *testing.T) {
	ctx := context.Background()
	inv := []core.ImageKey{"a", "b", "c"}
	p, err := NewPool(inv, []core.ImageKey{"a"}, WithRegions(2, 2))
	require.NoError(t, err)
	require.NoError(t, p.ExpandRegions([]core.RegionSelection{{Key: "b", Regions: []core.Region{{X: 0, Y: 0, W: 1, H: 1}}}}))

	weak := core.NewLabelMap(2, 2)
	copy(weak.Class, []int32{7, 7, 7, 7})
	require.NoError(t, p.AddWeakLabels([]core.WeakLabel{{Key: "c", Label: weak}}))

	l := NewLoader(p, seedSamples(t, inv, 2, 2))

	var got []*core.Sample
	err = l.Epoch(ctx, 2, func(batch []*core.Sample) error {
		assert.LessOrEqual(t, len(batch), 2)
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	ig := core.IgnoreIndex
	assert.Equal(t, []int32{0, 1, 2, 0}, got[0].Label.Class)
	assert.Equal(t, []int32{0, ig, ig, ig}, got[1].Label.Class)
	assert.Equal(t, []int32{7, 7, 7, 7}, got[2].Label.Class)
}

func TestLoaderMissingSample(t *testing.T) {
	p, err := NewPool([]core.ImageKey{"a"}, []core.ImageKey{"a"})
	require.NoError(t, err)
	l := NewLoader(p, store.NewSampleStore(store.NewMemoryStore(), "samples/"))

	err = l.Epoch(context.Background(), 1, func([]*core.Sample) error { return nil })
	assert.True(t, core.IsStoreLookupFailure(err))
}

func TestTrainablePixels(t *testing.T) {
	label := core.NewLabelMap(2, 3)
	masked := MaskRegions(label, []core.Region{{X: 1, Y: 0, W: 2, H: 1}})
	assert.Equal(t, 6, TrainablePixels(label))
	assert.Equal(t, 2, TrainablePixels(masked))
	assert.Zero(t, TrainablePixels(core.IgnoreLabelMap(2, 2)))
	assert.Zero(t, TrainablePixels(nil))
}
