package builders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg/config"
	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/filter"
	"github.com/rushteam/activeseg/pipeline"
	"github.com/rushteam/activeseg/rank"
	"github.com/rushteam/activeseg/rerank"
	"github.com/rushteam/activeseg/store"
)

func candidates(scores map[core.ImageKey]float64, order ...core.ImageKey) []*core.Candidate {
	out := make([]*core.Candidate, 0, len(order))
	for _, k := range order {
		c := core.NewCandidate(k)
		c.Score = scores[k]
		out = append(out, c)
	}
	return out
}

func TestBuiltinsRegistered(t *testing.T) {
	types := config.SupportedTypes()
	for _, want := range []string{
		"filter.expr", "filter.exclude", "rank.score", "rank.fusion",
		"rerank.representative", "rerank.diversity", "rerank.topn",
	} {
		assert.Contains(t, types, want)
	}
}

func TestBuildPostPipeline(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, filter.NewStoreAdapter(s).PutExcluded(ctx, "exclude/broken", []core.ImageKey{"b"}))
	config.BindStore(s)
	defer config.BindStore(nil)

	p, err := config.BuildPost([]pipeline.NodeConfig{
		{Type: "filter.expr", Config: map[string]any{"expr": `!candidate.key.startsWith("skip/")`}},
		{Type: "filter.exclude", Config: map[string]any{"keys": []any{"c"}, "store_key": "exclude/broken"}},
		{Type: "rank.score", Config: map[string]any{"order": "asc"}},
		{Type: "rerank.topn", Config: map[string]any{"n": 2}},
	})
	require.NoError(t, err)
	require.Equal(t, 4, p.Len())

	in := candidates(map[core.ImageKey]float64{"a": 3, "b": 1, "c": 0, "d": 2, "skip/e": -1, "f": 5},
		"a", "b", "c", "d", "skip/e", "f")
	out, err := p.Run(ctx, &core.RoundContext{}, in)
	require.NoError(t, err)
	assert.Equal(t, []core.ImageKey{"d", "a"}, core.Keys(out))
}

func TestBuildNodeErrors(t *testing.T) {
	f := config.DefaultFactory()
	tests := []struct {
		typ string
		cfg map[string]any
	}{
		{typ: "filter.expr", cfg: map[string]any{}},
		{typ: "filter.expr", cfg: map[string]any{"expr": "candidate.score >"}},
		{typ: "filter.exclude", cfg: map[string]any{"store_key": "x"}},
		{typ: "rank.score", cfg: map[string]any{"order": "sideways"}},
		{typ: "rank.fusion", cfg: map[string]any{}},
		{typ: "rank.fusion", cfg: map[string]any{"criteria": []any{map[string]any{"weight": 1}}}},
		{typ: "rerank.representative", cfg: map[string]any{"threshold": -1}},
		{typ: "rerank.topn", cfg: map[string]any{"n": 0}},
	}
	for _, tt := range tests {
		_, err := f.Build(tt.typ, tt.cfg)
		assert.Error(t, err, "%s %v", tt.typ, tt.cfg)
	}
}

func TestBuildNodeTypes(t *testing.T) {
	f := config.DefaultFactory()

	n, err := f.Build("rank.fusion", map[string]any{"criteria": []any{
		map[string]any{"key": "confidence", "weight": 2, "invert": true},
		map[string]any{"key": "entropy"},
	}})
	require.NoError(t, err)
	fusion, ok := n.(*rank.FusionNode)
	require.True(t, ok)
	assert.Equal(t, []rank.Criterion{
		{Key: "confidence", Weight: 2, Invert: true},
		{Key: "entropy", Weight: 1},
	}, fusion.Criteria)

	n, err = f.Build("rerank.representative", map[string]any{"threshold": 0.5, "count": 3})
	require.NoError(t, err)
	assert.Equal(t, &rerank.Representative{Threshold: 0.5, Count: 3}, n)

	n, err = f.Build("rerank.diversity", map[string]any{"max_per_group": 2})
	require.NoError(t, err)
	assert.Equal(t, &rerank.Diversity{LabelKey: "group", MaxPerGroup: 2}, n)
}
