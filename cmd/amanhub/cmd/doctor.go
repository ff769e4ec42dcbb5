package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanhub/internal/config"
	"github.com/Aman-CERP/amanhub/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the local environment",
		Long: `Verify that the host can run the daemon: disk space, memory,
write permissions on the data directory, file descriptor limits, and a
working git binary. Exits non-zero when a required check fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flagDataDir)
			if err != nil {
				return err
			}

			checker := preflight.New(
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
			)
			results := checker.RunAll(cmd.Context(), cfg.Paths.DataDir)
			checker.PrintResults(results)

			if checker.HasCriticalFailures(results) {
				return fmt.Errorf("environment checks failed")
			}
			if err := preflight.MarkPassed(cfg.Paths.DataDir); err != nil {
				// Non-fatal: the checks passed, only the marker write failed.
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not record check result: %v\n", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for passing checks")
	return cmd
}
