// Package cmd provides the CLI commands for amanhub.
package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanhub/internal/logging"
	"github.com/Aman-CERP/amanhub/pkg/version"
)

var (
	flagDataDir string
	flagNoColor bool
	flagDebug   bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the amanhub CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amanhub",
		Short: "Golden-repository lifecycle orchestrator for code search",
		Long: `amanhub keeps a fleet of golden repository clones fresh for code-search
consumers: it refreshes them on a jittered cadence, republishes indexed
snapshots copy-on-write, and re-points repositories to new branches
without ever exposing a half-built state.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("amanhub version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default ~/.amanhub)")
	cmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRepoCmd())
	cmd.AddCommand(newBranchCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging routes structured logs to the data directory's log file.
// One-shot commands log at warn unless --debug keeps their output clean.
func setupLogging(_ *cobra.Command, _ []string) error {
	path := ""
	if flagDataDir != "" {
		path = filepath.Join(flagDataDir, "logs", "daemon.log")
	}
	cfg := logging.DefaultConfig(path)
	cfg.WriteToStderr = false
	cfg.Level = "warn"
	if flagDebug {
		cfg.Level = "debug"
		cfg.WriteToStderr = true
	}

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
