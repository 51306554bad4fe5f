package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"distiller/internal/manifest"
	"distiller/internal/runlog"
	"distiller/internal/services"
	"distiller/internal/transform"
)

func newTransformCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform <html|pdf|alto|mods|image> <package-id>",
		Short: "Run one transformer stage across every article in a package",
		Long: "Materializes the SIP for the named package if it does not exist yet, " +
			"then runs the requested stage over every eligible article. Articles that " +
			"already carry the derivative are left alone, so re-running a stage is safe.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, ok := manifest.ParseStage(strings.TrimSpace(args[0]))
			if !ok {
				return fmt.Errorf("unknown stage %q (expected html, pdf, alto, mods, or image)", args[0])
			}
			packageID := strings.TrimSpace(args[1])
			if packageID == "" {
				return fmt.Errorf("package id is required")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			sip, err := transform.EnsureSIP(cfg, filepath.Join(cfg.Paths.PIPDir, packageID))
			if err != nil {
				return err
			}

			handler, err := transform.NewStageHandler(cfg, stage)
			if err != nil {
				return err
			}

			ledger := ctx.openLedger(cmd)
			if ledger != nil {
				defer ledger.Close()
			}

			runID := uuid.NewString()
			runCtx := services.WithRequestID(services.WithPackageID(cmd.Context(), packageID), runID)
			started := time.Now()
			outcome, err := transform.NewRunner(cfg, logger).Run(runCtx, handler, sip.Root())
			if ledger != nil {
				run := runlog.StageRun{
					RunID:      runID,
					PackageID:  packageID,
					Stage:      string(stage),
					StartedAt:  started,
					FinishedAt: time.Now(),
					Succeeded:  outcome.Succeeded,
					Skipped:    outcome.Skipped,
					Failed:     outcome.Failed,
				}
				if err != nil {
					run.Error = err.Error()
				}
				if recordErr := ledger.Record(runCtx, run); recordErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warn: record run ledger: %v\n", recordErr)
				}
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderOutcomes([]transform.Outcome{outcome}))
			if outcome.Failed > 0 {
				return fmt.Errorf("%d of %d articles failed stage %s", outcome.Failed, outcome.Total(), stage)
			}
			return nil
		},
	}

	return cmd
}

func renderOutcomes(outcomes []transform.Outcome) string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{
			string(o.Stage),
			fmt.Sprintf("%d", o.Succeeded),
			fmt.Sprintf("%d", o.Skipped),
			fmt.Sprintf("%d", o.Failed),
			o.Duration.Round(time.Millisecond).String(),
		})
	}
	return renderTable(
		[]string{"Stage", "Done", "Skipped", "Failed", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}
