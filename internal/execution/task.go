package execution

import "context"

// Task is a handle to a background worker started by the Actor.
// Cancellation is cooperative: the worker observes it at its next poll.
type Task struct {
	Kind string

	cancel context.CancelFunc
	done   chan struct{}
}

func newTask(kind string, cancel context.CancelFunc) *Task {
	return &Task{Kind: kind, cancel: cancel, done: make(chan struct{})}
}

// finishedTask returns a task that has already completed.
func finishedTask(kind string) *Task {
	t := newTask(kind, func() {})
	close(t.done)
	return t
}

// Cancel asks the worker to stop.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the worker has returned.
func (t *Task) Wait() {
	<-t.done
}

// Done is closed when the worker has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
