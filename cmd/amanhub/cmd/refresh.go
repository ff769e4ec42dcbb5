package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <alias>",
		Short: "Refresh one repository immediately",
		Long: `Run a single refresh cycle for the alias: detect local changes via
file mtimes and, if anything changed, rebuild the index and republish a
fresh snapshot. Does nothing when another writer holds the alias's lock.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias := args[0]

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.scheduler.RefreshAlias(cmd.Context(), alias)
			if err != nil {
				return err
			}
			app.cleanup.SweepNow()

			switch {
			case res.Skipped:
				app.out.Error("%s is locked by another writer, skipped", alias)
			case res.Changed:
				app.out.Success("%s republished in %s", alias, res.Duration.Round(time.Millisecond))
			default:
				app.out.Success("%s unchanged", alias)
			}
			return nil
		},
	}
}
