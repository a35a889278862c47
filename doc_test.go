package activeseg_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg"
	"github.com/rushteam/activeseg/active"
	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/pkg/fakemodel"
	"github.com/rushteam/activeseg/selection"
)

func TestFacadeRunsLoop(t *testing.T) {
	keys := []activeseg.ImageKey{"a", "b", "c", "d"}
	pool, err := activeseg.NewPool(keys, keys[:1])
	require.NoError(t, err)

	method, err := activeseg.ParseMethod("random")
	require.NoError(t, err)
	sel, err := activeseg.NewSelector(method, selection.Options{Seed: 1})
	require.NoError(t, err)

	model := &fakemodel.Model{Classes: 2, LogitsFn: func(im *core.Image, _ core.InferenceMode, _ int) *core.Logits {
		return fakemodel.Constant(im.Height, im.Width, 1, 0)
	}}
	trainer := &fakemodel.Trainer{}
	loop, err := activeseg.NewLoop(pool, model, trainer, sel, active.Options{SelectionCount: 2, AllowPartialFinalBatch: true})
	require.NoError(t, err)

	reports, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, reports, 3)
	assert.Empty(t, pool.Remaining())
	assert.Len(t, trainer.Rounds(), 3)
}
