package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hubErrors "github.com/Aman-CERP/amanhub/internal/errors"
)

// commandFunc adapts a func to Command for tests.
type commandFunc func(ctx context.Context) error

func (f commandFunc) Execute(ctx context.Context) error { return f(ctx) }

func TestPool_RunsSubmittedCommand(t *testing.T) {
	p := NewPool(1, 8)
	p.Start(context.Background())
	defer p.Stop()

	done := make(chan struct{})
	id, err := p.Submit("change_branch", "backend", "jane", commandFunc(func(ctx context.Context) error {
		close(done)
		return nil
	}))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("command never ran")
	}

	require.Eventually(t, func() bool {
		job, ok := p.Job(id)
		return ok && job.Status == JobSucceeded
	}, time.Second, 5*time.Millisecond)
}

func TestPool_DuplicateSubmissionFails(t *testing.T) {
	p := NewPool(1, 8)
	p.Start(context.Background())
	defer p.Stop()

	release := make(chan struct{})
	first, err := p.Submit("change_branch", "backend", "jane", commandFunc(func(ctx context.Context) error {
		<-release
		return nil
	}))
	require.NoError(t, err)

	// Second submission for the same (operation, alias) while in flight.
	_, err = p.Submit("change_branch", "backend", "joe", commandFunc(func(ctx context.Context) error {
		return nil
	}))
	require.Error(t, err)
	assert.True(t, hubErrors.IsDuplicateJob(err))
	assert.Equal(t, first, hubErrors.ExistingJobID(err))

	close(release)

	// Once the first finishes, a new submission is accepted.
	require.Eventually(t, func() bool {
		_, err := p.Submit("change_branch", "backend", "joe", commandFunc(func(ctx context.Context) error {
			return nil
		}))
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestPool_DifferentAliasesRunIndependently(t *testing.T) {
	p := NewPool(2, 8)
	p.Start(context.Background())
	defer p.Stop()

	block := make(chan struct{})
	_, err := p.Submit("change_branch", "backend", "jane", commandFunc(func(ctx context.Context) error {
		<-block
		return nil
	}))
	require.NoError(t, err)

	_, err = p.Submit("change_branch", "frontend", "jane", commandFunc(func(ctx context.Context) error {
		return nil
	}))
	assert.NoError(t, err)
	close(block)
}

func TestPool_FailedJobRecordsError(t *testing.T) {
	p := NewPool(1, 8)
	p.Start(context.Background())
	defer p.Stop()

	id, err := p.Submit("change_branch", "backend", "jane", commandFunc(func(ctx context.Context) error {
		return errors.New("fetch exploded")
	}))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, ok := p.Job(id)
		return ok && job.Status == JobFailed
	}, time.Second, 5*time.Millisecond)

	job, _ := p.Job(id)
	assert.Equal(t, "fetch exploded", job.Error)
	assert.False(t, job.FinishedAt.IsZero())
}

func TestPool_JobUnknownID(t *testing.T) {
	p := NewPool(1, 8)
	_, ok := p.Job("nope")
	assert.False(t, ok)
}

func TestPool_StopWaitsForInflight(t *testing.T) {
	p := NewPool(1, 8)
	p.Start(context.Background())

	var ran atomic.Bool
	started := make(chan struct{})
	_, err := p.Submit("change_branch", "backend", "jane", commandFunc(func(ctx context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		ran.Store(true)
		return nil
	}))
	require.NoError(t, err)

	<-started
	p.Stop()
	assert.True(t, ran.Load())
}
