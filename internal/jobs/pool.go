// Package jobs provides the background job executor used for
// externally-triggered repository operations such as branch changes.
//
// Work is submitted as an explicit Command object rather than a captured
// closure, so ownership is visible at the submission site. At most one job
// per (operation type, alias) pair may be in flight: a second submission
// fails with a duplicate-job error carrying the existing job's id.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	hubErrors "github.com/Aman-CERP/amanhub/internal/errors"
)

// Command is a unit of background work.
type Command interface {
	Execute(ctx context.Context) error
}

// JobStatus is the lifecycle state of a submitted job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is the tracked state of one submission.
type Job struct {
	ID            string
	OperationType string
	Alias         string
	Submitter     string
	Status        JobStatus
	Error         string
	SubmittedAt   time.Time
	FinishedAt    time.Time
}

// Submitter is the interface consumed by the branch-change pipeline.
type Submitter interface {
	Submit(operationType, alias, submitter string, cmd Command) (string, error)
}

type jobKey struct {
	operationType string
	alias         string
}

type queuedJob struct {
	id  string
	cmd Command
}

// Pool is a fixed-size worker pool implementing Submitter.
type Pool struct {
	workers int
	queue   chan queuedJob

	mu       sync.Mutex
	jobs     map[string]*Job
	inflight map[jobKey]string

	group  *errgroup.Group
	cancel context.CancelFunc
}

var _ Submitter = (*Pool)(nil)

// NewPool creates a pool with the given number of workers and queue depth.
func NewPool(workers, queueDepth int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	p := &Pool{
		workers:  workers,
		queue:    make(chan queuedJob, queueDepth),
		jobs:     make(map[string]*Job),
		inflight: make(map[jobKey]string),
	}
	return p
}

// Start launches the workers. Jobs submitted before Start sit in the queue.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.group, ctx = errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		p.group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case qj, ok := <-p.queue:
					if !ok {
						return nil
					}
					p.run(ctx, qj)
				}
			}
		})
	}
}

// Stop cancels the workers and waits for in-flight jobs to finish their
// current command.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.group != nil {
		_ = p.group.Wait()
	}
}

// Submit enqueues cmd under (operationType, alias). Returns the new job id,
// or a duplicate-job error naming the in-flight job.
func (p *Pool) Submit(operationType, alias, submitter string, cmd Command) (string, error) {
	key := jobKey{operationType: operationType, alias: alias}

	p.mu.Lock()
	if existing, busy := p.inflight[key]; busy {
		p.mu.Unlock()
		return "", hubErrors.DuplicateJob(operationType, alias, existing)
	}

	job := &Job{
		ID:            uuid.NewString(),
		OperationType: operationType,
		Alias:         alias,
		Submitter:     submitter,
		Status:        JobQueued,
		SubmittedAt:   time.Now(),
	}
	p.jobs[job.ID] = job
	p.inflight[key] = job.ID
	p.mu.Unlock()

	select {
	case p.queue <- queuedJob{id: job.ID, cmd: cmd}:
	default:
		// Queue full: undo the reservation so the caller can retry later.
		p.mu.Lock()
		delete(p.inflight, key)
		delete(p.jobs, job.ID)
		p.mu.Unlock()
		return "", hubErrors.InternalError("job queue is full", nil)
	}

	slog.Info("job submitted",
		slog.String("job_id", job.ID),
		slog.String("operation", operationType),
		slog.String("alias", alias),
		slog.String("submitter", submitter))
	return job.ID, nil
}

// Job returns a copy of the tracked job state.
func (p *Pool) Job(id string) (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	job, ok := p.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// run executes one job and settles its bookkeeping.
func (p *Pool) run(ctx context.Context, qj queuedJob) {
	p.mu.Lock()
	job := p.jobs[qj.id]
	job.Status = JobRunning
	key := jobKey{operationType: job.OperationType, alias: job.Alias}
	p.mu.Unlock()

	err := qj.cmd.Execute(ctx)

	p.mu.Lock()
	job.FinishedAt = time.Now()
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
	} else {
		job.Status = JobSucceeded
	}
	delete(p.inflight, key)
	p.mu.Unlock()

	if err != nil {
		slog.Error("job failed",
			slog.String("job_id", job.ID),
			slog.String("alias", job.Alias),
			slog.String("error", err.Error()))
		return
	}
	slog.Info("job finished",
		slog.String("job_id", job.ID),
		slog.String("alias", job.Alias))
}
