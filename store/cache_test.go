package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg/core"
)

type countingSource struct {
	calls map[core.ImageKey]int
}

func (s *countingSource) Sample(ctx context.Context, key core.ImageKey) (*core.Sample, error) {
	if key == "missing" {
		return nil, core.Errorf(core.ModuleStore, core.ErrorCodeStoreLookupFailure, "store: sample %q not found", key)
	}
	s.calls[key]++
	return &core.Sample{Key: key, Image: core.NewImage(1, 1), Label: core.NewLabelMap(1, 1)}, nil
}

func TestCachedSamplesHitAndEvict(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{calls: map[core.ImageKey]int{}}
	c := NewCachedSamples(src, 2, 0)
	defer c.Close()

	for _, k := range []core.ImageKey{"a", "b", "a", "b"} {
		s, err := c.Sample(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, k, s.Key)
	}
	assert.Equal(t, 1, src.calls["a"])
	assert.Equal(t, 1, src.calls["b"])
	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(2), misses)

	// a 最近刚访问过之后再访问 b，插入 c 时淘汰 a
	time.Sleep(time.Millisecond)
	_, _ = c.Sample(ctx, "b")
	_, err := c.Sample(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	_, _ = c.Sample(ctx, "a")
	assert.Equal(t, 2, src.calls["a"])
}

func TestCachedSamplesTTLAndErrors(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{calls: map[core.ImageKey]int{}}
	c := NewCachedSamples(src, 10, 20*time.Millisecond)
	defer c.Close()

	_, err := c.Sample(ctx, "missing")
	assert.True(t, core.IsStoreLookupFailure(err))
	assert.Equal(t, 0, c.Len())

	_, _ = c.Sample(ctx, "a")
	time.Sleep(30 * time.Millisecond)
	_, _ = c.Sample(ctx, "a")
	assert.Equal(t, 2, src.calls["a"])

	c.Invalidate("a")
	_, _ = c.Sample(ctx, "a")
	assert.Equal(t, 3, src.calls["a"])
	c.Close()
}

func TestCachedSamplesDisabled(t *testing.T) {
	src := &countingSource{calls: map[core.ImageKey]int{}}
	c := NewCachedSamples(src, 0, time.Minute)
	defer c.Close()
	_, _ = c.Sample(context.Background(), "a")
	_, _ = c.Sample(context.Background(), "a")
	assert.Equal(t, 2, src.calls["a"])
	assert.Equal(t, 0, c.Len())
}
