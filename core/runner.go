package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Runner drives a task from start to finish. Cancelling the context requests
// an orderly shutdown; Run returns once the pipeline has fully drained.
type Runner struct{}

func NewRunner() *Runner {
	return &Runner{}
}

func (r *Runner) Run(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("task is required")
	}

	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task: %w", err)
	}

	cancelHookDone := withContextCancelHook(ctx, task.End)
	defer close(cancelHookDone)

	if err := task.Wait(); err != nil && !errors.Is(err, ErrShutdownRequested) {
		return fmt.Errorf("task failed: %w", err)
	}

	return nil
}

// withContextCancelHook invokes onContextDone when the context is cancelled,
// unless the returned channel is closed first.
func withContextCancelHook(ctx context.Context, onContextDone func()) chan struct{} {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			onContextDone()
		case <-done:
		}
	}()
	return done
}
