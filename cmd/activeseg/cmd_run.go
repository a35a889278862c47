package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rushteam/activeseg/active"
	"github.com/rushteam/activeseg/selection"
)

func runLoop(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &current
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	if err := a.openStore(ctx); err != nil {
		return err
	}
	defer a.close()
	a.serveMetrics()

	pool, err := a.buildPool(ctx)
	if err != nil {
		return err
	}
	m, err := a.model()
	if err != nil {
		return err
	}
	trainer, err := a.trainer()
	if err != nil {
		return err
	}

	runner := a.runner()
	var sel selection.Selector
	if !a.cfg.Region.Enabled {
		if sel, err = a.selector(runner); err != nil {
			return err
		}
	}

	loop, err := active.NewLoop(pool, m, trainer, sel, a.loopOptions(runner))
	if err != nil {
		return err
	}

	reports, runErr := loop.Run(ctx)
	if err := writeJSON(cmd.OutOrStdout(), reportPath, reports); err != nil {
		return err
	}
	return runErr
}
