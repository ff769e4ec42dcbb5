package pipeline

import "context"

// BranchChangeCommand is the job payload for one branch change. It is an
// explicit command object, not a captured closure, so the worker pool can
// report what it is running.
type BranchChangeCommand struct {
	Pipeline     *Pipeline
	Alias        string
	TargetBranch string
}

// Execute runs the synchronous pipeline.
func (c *BranchChangeCommand) Execute(ctx context.Context) error {
	return c.Pipeline.ChangeBranch(ctx, c.Alias, c.TargetBranch)
}
