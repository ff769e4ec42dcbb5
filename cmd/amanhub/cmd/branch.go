package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	hubErrors "github.com/Aman-CERP/amanhub/internal/errors"
	"github.com/Aman-CERP/amanhub/internal/gitops"
	"github.com/Aman-CERP/amanhub/internal/jobs"
)

func newBranchCmd() *cobra.Command {
	var async bool

	cmd := &cobra.Command{
		Use:   "branch <alias> <target-branch>",
		Short: "Re-point a repository's published snapshot to another branch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias, target := args[0], args[1]
			if !gitops.ValidBranchName(target) {
				return hubErrors.InvalidBranch(target)
			}

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			app.cleanup.Start(ctx)
			defer func() {
				app.cleanup.Stop()
				app.cleanup.SweepNow()
			}()

			if !async {
				if err := app.pipeline.ChangeBranch(ctx, alias, target); err != nil {
					return err
				}
				app.out.Success("%s now serves %s", alias, target)
				return nil
			}

			app.pool.Start(ctx)
			defer app.pool.Stop()

			res, err := app.pipeline.ChangeBranchAsync(alias, target, "cli")
			if err != nil {
				return err
			}
			if res.JobID == "" {
				app.out.Success("%s already serves %s", alias, target)
				return nil
			}
			app.out.Success("submitted job %s", res.JobID)
			return waitForJob(ctx, app, res.JobID, alias, target)
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "Run through the background job pool")
	return cmd
}

func waitForJob(ctx context.Context, app *app, jobID, alias, target string) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			job, ok := app.pool.Job(jobID)
			if !ok {
				continue
			}
			switch job.Status {
			case jobs.JobSucceeded:
				app.out.Success("%s now serves %s", alias, target)
				return nil
			case jobs.JobFailed:
				app.out.Error("branch change failed: %s", job.Error)
				return fmt.Errorf("branch change job %s failed: %s", jobID, job.Error)
			}
		}
	}
}
