package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"distiller/internal/aggregate"
	"distiller/internal/config"
	"distiller/internal/runlog"
	"distiller/internal/services"
)

func newHarvestCommand(ctx *commandContext) *cobra.Command {
	var window windowFlags
	var output string

	cmd := &cobra.Command{
		Use:     "harvest",
		Aliases: []string{"harvest-pip"},
		Short:   "Fetch a publication window from the content API into a sealed PIP",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := window.resolve()
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if dir := strings.TrimSpace(output); dir != "" {
				expanded, expandErr := config.ExpandPath(dir)
				if expandErr != nil {
					return fmt.Errorf("resolve output directory: %w", expandErr)
				}
				override := *cfg
				override.Paths.PIPDir = expanded
				cfg = &override
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

			runID := uuid.NewString()
			runCtx := services.WithRequestID(cmd.Context(), runID)
			started := time.Now()
			pip, err := aggregate.New(cfg, client, logger).Harvest(runCtx, w)
			if ledger != nil {
				run := runlog.StageRun{
					RunID:      runID,
					PackageID:  w.ID(),
					Stage:      "harvest",
					StartedAt:  started,
					FinishedAt: time.Now(),
				}
				if err != nil {
					run.Error = err.Error()
				} else {
					run.Succeeded = len(pip.Entries)
				}
				if recordErr := ledger.Record(runCtx, run); recordErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warn: record run ledger: %v\n", recordErr)
				}
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Harvested %d articles into %s\n", len(pip.Entries), pip.Root())
			fmt.Fprintf(out, "Package %s is sealed and ready for transformation\n", pip.ID)
			return nil
		},
	}

	window.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Directory to write the PIP under (defaults to paths.pip_dir)")
	return cmd
}
