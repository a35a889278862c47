package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/dataset"
)

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := &current
	if err := a.openStore(ctx); err != nil {
		return err
	}
	defer a.close()

	pool, err := dataset.LoadState(ctx, a.store, a.cfg.Data.StateKey)
	if err != nil {
		return fmt.Errorf("load pool state %q: %w", a.cfg.Data.StateKey, err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "store:      %s\n", a.store.Name())
	fmt.Fprintf(out, "total:      %d\n", pool.Total())
	fmt.Fprintf(out, "labeled:    %d\n", len(pool.Labeled()))
	fmt.Fprintf(out, "remaining:  %d\n", len(pool.Remaining()))
	fmt.Fprintf(out, "last added: %d\n", len(pool.LastAdded()))
	if pool.RegionBased() {
		fmt.Fprintf(out, "pixels:     %d\n", pool.LabeledPixelCount())
	}
	if !verifyEntries {
		return nil
	}
	entries, pixels, err := verifyPool(ctx, pool, a.runner().Samples, a.cfg.Selection.BatchSize)
	if err != nil {
		return fmt.Errorf("verify training entries: %w", err)
	}
	fmt.Fprintf(out, "verified:   %d entries, %d trainable pixels\n", entries, pixels)
	return nil
}

// verifyPool 经由 dataset.Loader 逐批加载训练视图中的全部 Entry。
func verifyPool(ctx context.Context, pool *dataset.Pool, samples core.SampleSource, batchSize int) (int, int, error) {
	var entries, pixels int
	err := dataset.NewLoader(pool, samples).Epoch(ctx, batchSize, func(batch []*core.Sample) error {
		entries += len(batch)
		for _, s := range batch {
			pixels += dataset.TrainablePixels(s.Label)
		}
		return nil
	})
	return entries, pixels, err
}
