package inference

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/pkg/fakemodel"
)

func TestSoftmaxAndReductions(t *testing.T) {
	l := core.NewLogits(3, 1, 2)
	// 像素 0：logits (0,0,0)；像素 1：logits (5,1,1)
	copy(l.Data, []float32{0, 5, 0, 1, 0, 1})

	probs := Softmax(l)
	for p := 0; p < 2; p++ {
		var sum float32
		for c := 0; c < 3; c++ {
			sum += probs[c*2+p]
		}
		assert.InDelta(t, 1, sum, 1e-6)
	}

	ent := Entropy(probs, 3)
	assert.InDelta(t, math.Log(3), ent[0], 1e-6)
	assert.Less(t, ent[1], ent[0])

	conf := Confidence(probs, 3)
	assert.InDelta(t, 1.0/3, conf[0], 1e-6)
	assert.Greater(t, conf[1], conf[0])

	margin := Margin(probs, 3)
	assert.InDelta(t, 0, margin[0], 1e-6)
	assert.Greater(t, margin[1], float32(0.9))

	assert.Equal(t, []int32{0, 0}, Argmax(l).Class)
}

func TestEntropyScore(t *testing.T) {
	l := core.NewLogits(2, 1, 2)
	copy(l.Data, []float32{0, 10, 0, 0})

	sv := EntropyScore("k", l)
	assert.Equal(t, core.ImageKey("k"), sv.Key)
	assert.Equal(t, 1, sv.Height)
	assert.Equal(t, 2, sv.Width)
	require.Len(t, sv.Pixels, 2)
	assert.InDelta(t, math.Log(2), sv.Pixels[0], 1e-6)
	assert.Less(t, sv.Pixels[1], float32(0.01))
	assert.InDelta(t, (float64(sv.Pixels[0])+float64(sv.Pixels[1]))/2, sv.Scalar, 1e-9)
}

func TestArgmaxPicksHighestClass(t *testing.T) {
	l := fakemodel.Constant(1, 2, 0.1, 0.7, 0.2)
	assert.Equal(t, []int32{1, 1}, Argmax(l).Class)
}

func TestWelfordMatchesTwoPass(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	const passes, size = 50, 4
	obs := make([][]float32, passes)
	w := NewWelford(size)
	for i := range obs {
		obs[i] = make([]float32, size)
		for j := range obs[i] {
			obs[i][j] = rng.Float32()
		}
		w.Add(obs[i])
	}

	mean, variance := w.Mean(), w.Variance()
	for j := 0; j < size; j++ {
		var m float64
		for i := range obs {
			m += float64(obs[i][j])
		}
		m /= passes
		var v float64
		for i := range obs {
			v += math.Pow(float64(obs[i][j])-m, 2)
		}
		v /= passes
		assert.InDelta(t, m, mean[j], 1e-5)
		assert.InDelta(t, v, variance[j], 1e-5)
	}
}

func TestMeanEmpty(t *testing.T) {
	assert.True(t, math.IsNaN(Mean(nil)))
}

func TestAddNoiseKeepsSource(t *testing.T) {
	im := fakemodel.Image(9, 4, 4)
	noisy := AddNoise(im, 0.5, rand.New(rand.NewPCG(7, 0)))
	assert.Equal(t, uint8(9), im.Pix[0])
	assert.NotEqual(t, im.Pix, noisy.Pix)
	assert.Equal(t, im.Pix, AddNoise(im, 0, nil).Pix)
}
