package main

import (
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rushteam/activeseg/core"
)

// selectOutput 是 select 子命令的输出。
type selectOutput struct {
	RunID   string                 `json:"run_id"`
	Method  string                 `json:"method"`
	Keys    []core.ImageKey        `json:"keys,omitempty"`
	Scores  []float64              `json:"scores,omitempty"`
	Weak    []core.ImageKey        `json:"weak_labels,omitempty"`
	Regions []core.RegionSelection `json:"regions,omitempty"`
}

func runSelect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := &current
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	a.cfg.Loop.Resume = true
	if err := a.openStore(ctx); err != nil {
		return err
	}
	defer a.close()

	pool, err := a.buildPool(ctx)
	if err != nil {
		return err
	}
	m, err := a.model()
	if err != nil {
		return err
	}
	runner := a.runner()
	rctx := &core.RoundContext{RunID: uuid.NewString(), Labeled: pool.Labeled(), Regions: pool.Regions()}
	out := selectOutput{RunID: rctx.RunID, Method: a.cfg.Selection.Method}

	if mx := a.regions(runner); mx != nil {
		candidates := slices.Concat(pool.Labeled(), pool.Remaining())
		out.Method = "max_subset"
		if out.Regions, err = mx.SelectRegions(ctx, rctx, m, candidates, a.cfg.Region.PixelBudget); err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), reportPath, out)
	}

	sel, err := a.selector(runner)
	if err != nil {
		return err
	}
	remaining := pool.Remaining()
	res, err := sel.Select(ctx, rctx, m, remaining, min(a.cfg.Selection.Count, len(remaining)))
	if err != nil {
		return err
	}
	out.Keys = res.Keys
	for _, w := range res.WeakLabels {
		out.Weak = append(out.Weak, w.Key)
	}
	out.Scores = res.Scores
	return writeJSON(cmd.OutOrStdout(), reportPath, out)
}
