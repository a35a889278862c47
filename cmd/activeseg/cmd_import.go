package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rushteam/activeseg/dataset"
	"github.com/rushteam/activeseg/ingest"
)

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := &current
	if len(resizeSize) != 0 && len(resizeSize) != 2 {
		return fmt.Errorf("--resize takes WIDTH,HEIGHT, got %v", resizeSize)
	}
	keys, err := dataset.LoadSeedSet(keyList)
	if err != nil {
		return err
	}
	a.cfg.Store.ReadOnly = false
	if err := a.openStore(ctx); err != nil {
		return err
	}
	defer a.close()

	imageDir, labelDir := ingest.VOCLayout(vocRoot)
	im := &ingest.Importer{
		Samples:  a.samples,
		ImageDir: imageDir,
		LabelDir: labelDir,
		Workers:  importJobs,
		Logger:   a.logger,
	}
	if len(resizeSize) == 2 {
		im.Width, im.Height = resizeSize[0], resizeSize[1]
	}
	n, err := im.Import(ctx, keys)
	a.logger.Info("import finished", "imported", n, "requested", len(keys), "store", a.store.Name())
	return err
}
