package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanhub/internal/registry"
	"github.com/Aman-CERP/amanhub/internal/ui"
)

func newRepoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage tracked golden repositories",
	}
	cmd.AddCommand(newRepoAddCmd())
	cmd.AddCommand(newRepoListCmd())
	cmd.AddCommand(newRepoRemoveCmd())
	cmd.AddCommand(newRepoStatusCmd())
	return cmd
}

func newRepoAddCmd() *cobra.Command {
	var branch string
	var noClone bool

	cmd := &cobra.Command{
		Use:   "add <alias> <source-url>",
		Short: "Register a repository and clone it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias, url := args[0], args[1]

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			clonePath := filepath.Join(app.cfg.ReposDir(), alias, "source")
			if !noClone {
				if err := app.git.Clone(url, clonePath, branch); err != nil {
					return fmt.Errorf("clone %s: %w", url, err)
				}
			}

			if err := app.registry.AddRepo(registry.TrackedRepo{
				Alias:         alias,
				SourceURL:     url,
				DefaultBranch: branch,
				ClonePath:     clonePath,
			}); err != nil {
				return err
			}

			// Seed a pending record so status reads sensibly before the
			// first refresh; next_run in the past makes it due at once.
			now := time.Now()
			if err := app.registry.SaveTracking(registry.TrackingRecord{
				Alias:   alias,
				LastRun: now,
				NextRun: now,
				Status:  registry.StatusPending,
			}); err != nil {
				return err
			}

			app.out.Success("tracked %s (%s) at %s", alias, branch, clonePath)
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "main", "Branch to track")
	cmd.Flags().BoolVar(&noClone, "no-clone", false, "Register without cloning (clone exists already)")
	return cmd
}

func newRepoListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			repos, err := app.registry.ListRepos()
			if err != nil {
				return err
			}

			rows := make([]ui.RepoRow, 0, len(repos))
			for _, repo := range repos {
				row := ui.RepoRow{Alias: repo.Alias, Branch: repo.DefaultBranch, Status: "pending"}
				if rec, err := app.registry.GetTracking(repo.Alias); err == nil && rec != nil {
					row.Status = string(rec.Status)
					row.LastRun = rec.LastRun
					row.NextRun = rec.NextRun
				}
				rows = append(rows, row)
			}
			app.out.RepoTable(rows)
			return nil
		},
	}
}

func newRepoRemoveCmd() *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "remove <alias>",
		Short: "Stop tracking a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias := args[0]

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			repo, err := app.registry.GetRepo(alias)
			if err != nil {
				return err
			}
			if err := app.registry.RemoveRepo(alias); err != nil {
				return err
			}

			if purge {
				_ = os.RemoveAll(filepath.Dir(repo.ClonePath))
				_ = os.RemoveAll(filepath.Join(app.cfg.VersionedDir(), alias))
			}

			app.out.Success("removed %s", alias)
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete the clone and all snapshots")
	return cmd
}

func newRepoStatusCmd() *cobra.Command {
	var historyLimit int

	cmd := &cobra.Command{
		Use:   "status <alias>",
		Short: "Show a repository's refresh state and recent runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias := args[0]

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			repo, err := app.registry.GetRepo(alias)
			if err != nil {
				return err
			}

			row := ui.RepoRow{Alias: repo.Alias, Branch: repo.DefaultBranch, Status: "pending"}
			var hashes map[string]string
			if rec, err := app.registry.GetTracking(alias); err == nil && rec != nil {
				row.Status = string(rec.Status)
				row.LastRun = rec.LastRun
				row.NextRun = rec.NextRun
				hashes = rec.CommitHashes
			}

			history, err := app.runs.RecentRuns(alias, historyLimit)
			if err != nil {
				return err
			}
			runs := make([]ui.RunRow, 0, len(history))
			for _, h := range history {
				runs = append(runs, ui.RunRow{
					StartedAt: h.StartedAt,
					Duration:  h.Duration,
					Changed:   h.Changed,
					Error:     h.Error,
				})
			}

			app.out.StatusDetail(row, hashes, runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&historyLimit, "history", 10, "Number of recent runs to show")
	return cmd
}
