package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg/core"
)

type reverseNode struct{}

func (reverseNode) Name() string { return "test.reverse" }
func (reverseNode) Kind() Kind   { return KindReRank }
func (reverseNode) Process(_ context.Context, _ *core.RoundContext, in []*core.Candidate) ([]*core.Candidate, error) {
	out := make([]*core.Candidate, len(in))
	for i, c := range in {
		out[len(in)-1-i] = c
	}
	return out, nil
}

type errNode struct{}

func (errNode) Name() string { return "test.err" }
func (errNode) Kind() Kind   { return KindFilter }
func (errNode) Process(context.Context, *core.RoundContext, []*core.Candidate) ([]*core.Candidate, error) {
	return nil, errors.New("boom")
}

func candidates(keys ...core.ImageKey) []*core.Candidate {
	out := make([]*core.Candidate, len(keys))
	for i, k := range keys {
		out[i] = core.NewCandidate(k)
	}
	return out
}

func TestPipelineRun(t *testing.T) {
	var nilPipeline *Pipeline
	out, err := nilPipeline.Run(context.Background(), nil, candidates("a"))
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 0, nilPipeline.Len())

	p := &Pipeline{Nodes: []Node{reverseNode{}}}
	out, err = p.Run(context.Background(), nil, candidates("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []core.ImageKey{"c", "b", "a"}, core.Keys(out))

	p = &Pipeline{Nodes: []Node{reverseNode{}, errNode{}}}
	_, err = p.Run(context.Background(), nil, candidates("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test.err")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&Pipeline{Nodes: []Node{reverseNode{}}}).Run(ctx, nil, candidates("a"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigBuild(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "post.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
pipeline:
  name: post
  nodes:
    - type: test.reverse
      config:
        depth: 1
`), 0o644))
	jsonPath := filepath.Join(dir, "post.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"pipeline":{"name":"post","nodes":[{"type":"test.reverse"}]}}`), 0o644))

	f := NewNodeFactory()
	f.Register("test.reverse", func(cfg map[string]any) (Node, error) { return reverseNode{}, nil })
	assert.Equal(t, []string{"test.reverse"}, f.Types())

	cfg, err := LoadFromYAML(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "post", cfg.Pipeline.Name)
	assert.Equal(t, 1, cfg.Pipeline.Nodes[0].Config["depth"])
	p, err := cfg.BuildPipeline(f)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())

	cfg, err = LoadFromJSON(jsonPath)
	require.NoError(t, err)
	require.Len(t, cfg.Pipeline.Nodes, 1)

	_, err = f.Build("rank.lr", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test.reverse")

	_, err = Build([]NodeConfig{{Type: "missing"}}, f)
	assert.Error(t, err)

	_, err = LoadFromYAML(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}
