package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"distiller/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var window windowFlags

	cmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"run-pipeline"},
		Short:   "Run the full pipeline for a window: harvest, transform, and seal",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := window.resolve()
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			client, err := ctx.sourceClient()
			if err != nil {
				return err
			}

			ledger := ctx.openLedger(cmd)
			if ledger != nil {
				defer ledger.Close()
			}

			var opts []pipeline.Option
			if ledger != nil {
				opts = append(opts, pipeline.WithLedger(ledger))
			}
			summary, err := pipeline.New(cfg, client, logger, opts...).Run(cmd.Context(), w)

			out := cmd.OutOrStdout()
			if len(summary.Outcomes) > 0 {
				fmt.Fprintln(out, renderOutcomes(summary.Outcomes))
			}
			if err != nil {
				return err
			}

			failed := 0
			for _, o := range summary.Outcomes {
				failed += o.Failed
			}
			fmt.Fprintf(out, "Package %s sealed at %s (%d articles)\n", summary.PackageID, summary.SIPPath, summary.Articles)
			if failed > 0 {
				return fmt.Errorf("%d article transformations failed; see the run ledger for details", failed)
			}
			return nil
		},
	}

	window.register(cmd)
	return cmd
}
