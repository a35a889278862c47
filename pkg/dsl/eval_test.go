package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/pkg/utils"
)

func TestEvaluate(t *testing.T) {
	c := core.NewCandidate("aachen/000001")
	c.Score = 0.3
	c.Meta["entropy"] = 1.2
	c.PutLabel("selection_method", utils.Label{Value: "variance", Source: "selection"})
	rctx := &core.RoundContext{
		RunID:     "r1",
		Iteration: 3,
		Labeled:   []core.ImageKey{"a", "b"},
		Params:    map[string]any{"min_score": 0.1},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{expr: `candidate.key.startsWith("aachen/")`, want: true},
		{expr: `candidate.score > 0.5`, want: false},
		{expr: `candidate.meta.entropy > 1.0`, want: true},
		{expr: `label.selection_method == "variance"`, want: true},
		{expr: `has(label.filtered)`, want: false},
		{expr: `round.iteration >= 2 && candidate.score > round.params.min_score`, want: true},
		{expr: `round.labeled == 2 && round.run_id == "r1"`, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr, c, rctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	c := core.NewCandidate("k")

	ok, err := Evaluate("", c, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Compile("candidate.score >")
	assert.Error(t, err)

	p, err := Compile(`candidate.key`)
	require.NoError(t, err)
	assert.Equal(t, "candidate.key", p.String())
	_, err = p.Evaluate(c, nil)
	assert.Error(t, err, "non-boolean result")

	_, err = Evaluate(`label.missing == "x"`, c, nil)
	assert.Error(t, err)

	ok, err = Evaluate(`round.iteration == 0`, c, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}
