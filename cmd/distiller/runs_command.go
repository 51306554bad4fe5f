package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"distiller/internal/runlog"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var packageID string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent pipeline stage runs from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ledger, err := runlog.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer ledger.Close()

			var runs []runlog.StageRun
			if id := strings.TrimSpace(packageID); id != "" {
				runs, err = ledger.ForPackage(cmd.Context(), id)
			} else {
				runs, err = ledger.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No recorded runs")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				status := "ok"
				if run.Error != "" {
					status = run.Error
				}
				rows = append(rows, []string{
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					run.PackageID,
					run.Stage,
					fmt.Sprintf("%d", run.Succeeded),
					fmt.Sprintf("%d", run.Skipped),
					fmt.Sprintf("%d", run.Failed),
					status,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Package", "Stage", "Done", "Skipped", "Failed", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&packageID, "package", "", "Show every run for one package")
	return cmd
}
