package rank

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg/core"
)

func scored(pairs ...any) []*core.Candidate {
	out := make([]*core.Candidate, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		c := core.NewCandidate(core.ImageKey(pairs[i].(string)))
		c.Score = pairs[i+1].(float64)
		out = append(out, c)
	}
	return out
}

func TestSortStableWithNaN(t *testing.T) {
	tests := []struct {
		name  string
		order Order
		want  []core.ImageKey
	}{
		{name: "desc", order: Descending, want: []core.ImageKey{"b", "a", "d", "c"}},
		{name: "asc", order: Ascending, want: []core.ImageKey{"a", "d", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := scored("a", 1.0, "b", 2.0, "c", math.NaN(), "d", 1.0)
			Sort(cands, tt.order)
			assert.Equal(t, tt.want, core.Keys(cands))
			assert.Equal(t, tt.order.Worst(), cands[3].Score)
			assert.Equal(t, "nan", cands[3].Labels["score_sanitized"].Value)
		})
	}
}

func TestParseOrder(t *testing.T) {
	for in, want := range map[string]Order{"": Descending, "desc": Descending, "ascending": Ascending, "asc": Ascending} {
		got, err := ParseOrder(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseOrder("up")
	assert.Error(t, err)
	assert.Equal(t, "asc", Ascending.String())
}

func TestScoreNode(t *testing.T) {
	n := &ScoreNode{Order: Ascending}
	out, err := n.Process(context.Background(), nil, scored("a", 3.0, "b", -1.0))
	require.NoError(t, err)
	assert.Equal(t, []core.ImageKey{"b", "a"}, core.Keys(out))
}

func TestMinMaxNormalize(t *testing.T) {
	got := MinMaxNormalize([]float64{2, 4, math.NaN(), 3, math.Inf(1)})
	assert.Equal(t, 0.0, got[0])
	assert.Equal(t, 1.0, got[1])
	assert.True(t, math.IsNaN(got[2]))
	assert.Equal(t, 0.5, got[3])
	assert.True(t, math.IsNaN(got[4]))

	assert.Equal(t, []float64{0, 0}, MinMaxNormalize([]float64{7, 7}))
}

func TestFusionNode(t *testing.T) {
	cands := scored("a", 0.0, "b", 0.0, "c", 0.0)
	cands[0].Meta["confidence"], cands[0].Meta["entropy"] = 0.9, 0.1
	cands[1].Meta["confidence"], cands[1].Meta["entropy"] = 0.5, 0.5
	cands[2].Meta["confidence"], cands[2].Meta["entropy"] = 0.1, 0.9

	n := &FusionNode{Criteria: []Criterion{
		{Key: "confidence", Weight: 1, Invert: true},
		{Key: "entropy", Weight: 1},
	}}
	out, err := n.Process(context.Background(), nil, cands)
	require.NoError(t, err)
	assert.Equal(t, []core.ImageKey{"c", "b", "a"}, core.Keys(out))
	assert.InDelta(t, 2.0, out[0].Score, 1e-9)
	assert.InDelta(t, 1.0, out[1].Score, 1e-9)
	assert.InDelta(t, 0.0, out[2].Score, 1e-9)
}

func TestFusionMissingMetricContributesNothing(t *testing.T) {
	cands := scored("a", 0.0, "b", 0.0)
	cands[0].Meta["margin"] = 0.2
	n := &FusionNode{Criteria: []Criterion{{Key: "margin", Weight: 1, Invert: true}}}
	out, err := n.Process(context.Background(), nil, cands)
	require.NoError(t, err)
	// 只有一个有限值：归一化为 0，反转后为 1；缺失的 b 贡献 0
	assert.Equal(t, []core.ImageKey{"a", "b"}, core.Keys(out))
	assert.Equal(t, 1.0, out[0].Score)
	assert.Equal(t, 0.0, out[1].Score)
}
