package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"distiller/internal/manifest"
	"distiller/internal/mets"
	"distiller/internal/runlog"
	"distiller/internal/services"
)

func newCompileCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "compile <package-id>",
		Aliases: []string{"compile-sip"},
		Short:   "Compile the METS document for a SIP and seal it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			packageID := strings.TrimSpace(args[0])
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

			ledger := ctx.openLedger(cmd)
			if ledger != nil {
				defer ledger.Close()
			}

			runID := uuid.NewString()
			runCtx := services.WithRequestID(services.WithPackageID(cmd.Context(), packageID), runID)
			sipDir := filepath.Join(cfg.Paths.SIPDir, packageID)
			started := time.Now()
			sealed, err := mets.New(cfg, logger).Compile(runCtx, sipDir)
			if ledger != nil {
				run := runlog.StageRun{
					RunID:      runID,
					PackageID:  packageID,
					Stage:      "compile",
					StartedAt:  started,
					FinishedAt: time.Now(),
				}
				if err != nil {
					run.Error = err.Error()
				} else {
					run.Succeeded = len(sealed.Entries)
				}
				if recordErr := ledger.Record(runCtx, run); recordErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warn: record run ledger: %v\n", recordErr)
				}
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sealed package %s with %d articles\n", sealed.ID, len(sealed.Entries))
			fmt.Fprintf(out, "Structural metadata written to %s\n", filepath.Join(sipDir, manifest.METSName))
			return nil
		},
	}

	return cmd
}
