package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg/core"
)

// 每个后端跑同一组契约测试
func backends(t *testing.T) map[string]core.Store {
	t.Helper()

	bs, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rs := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	stores := map[string]core.Store{
		"memory": NewMemoryStore(),
		"badger": bs,
		"redis":  rs,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			assert.True(t, core.IsStoreNotFound(err), "missing key should be NOT_FOUND, got %v", err)

			require.NoError(t, s.Set(ctx, "samples/b", []byte("vb")))
			require.NoError(t, s.BatchSet(ctx, map[string][]byte{
				"samples/a": []byte("va"),
				"pool/state": []byte("{}"),
			}))

			v, err := s.Get(ctx, "samples/b")
			require.NoError(t, err)
			assert.Equal(t, []byte("vb"), v)

			got, err := s.BatchGet(ctx, []string{"samples/a", "samples/zz"})
			require.NoError(t, err)
			assert.Equal(t, map[string][]byte{"samples/a": []byte("va")}, got)

			keys, err := s.Keys(ctx, "samples/")
			require.NoError(t, err)
			assert.Equal(t, []string{"samples/a", "samples/b"}, keys)

			require.NoError(t, s.Delete(ctx, "samples/a"))
			_, err = s.Get(ctx, "samples/a")
			assert.True(t, core.IsStoreNotFound(err))
		})
	}
}

func TestSampleRoundTrip(t *testing.T) {
	img := core.NewImage(2, 3)
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	label := core.NewLabelMap(2, 3)
	copy(label.Class, []int32{0, 1, 2, core.IgnoreIndex, 18, -1})

	blob, err := EncodeSample(img, label)
	require.NoError(t, err)
	assert.Len(t, blob, sampleHeaderSize+2*3*4)

	sample, err := DecodeSample("k", blob)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, sample.Image.Pix)
	// -1 不能用一个字节表示，编码为忽略值
	assert.Equal(t, []int32{0, 1, 2, 255, 18, 255}, sample.Label.Class)
}

func TestEncodeSampleRejectsMismatchedLabel(t *testing.T) {
	_, err := EncodeSample(core.NewImage(2, 2), core.NewLabelMap(3, 3))
	assert.Error(t, err)
}

func TestSampleStoreLookupFailure(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	samples := NewSampleStore(mem, "samples/")

	require.NoError(t, samples.Put(ctx, "city/a", core.NewImage(1, 1), nil))
	require.NoError(t, mem.Set(ctx, "samples/city/corrupt", []byte("garbage")))

	sample, err := samples.Sample(ctx, "city/a")
	require.NoError(t, err)
	assert.Equal(t, core.IgnoreIndex, sample.Label.Class[0])

	_, err = samples.Sample(ctx, "city/missing")
	assert.True(t, core.IsStoreLookupFailure(err))

	_, err = samples.Sample(ctx, "city/corrupt")
	assert.True(t, core.IsStoreLookupFailure(err))

	inv, err := samples.Inventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.ImageKey{"city/a", "city/corrupt"}, inv)
}
