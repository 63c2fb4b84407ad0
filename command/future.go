package command

import (
	"context"
)

// Outcome is the tagged result of a one-shot call: exactly one of Result
// and Err is set.
type Outcome struct {
	Result *Result
	Err    error
}

// Future is an in-flight one-shot call. Create one with Runner.Go.
type Future struct {
	command string
	done    chan struct{}
	outcome Outcome
}

func newFuture(command string) *Future {
	return &Future{command: command, done: make(chan struct{})}
}

func (f *Future) resolve(result *Result, err error) {
	if err != nil {
		result = nil
	}
	f.outcome = Outcome{Result: result, Err: err}
	close(f.done)
}

// Command returns the backend command this future is waiting on.
func (f *Future) Command() string {
	return f.command
}

// Done is closed once the outcome is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the call completes or ctx is done. Abandoning a future
// does not cancel the call; cancel the context passed to Runner.Go for that.
func (f *Future) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-f.done:
		return f.outcome.Result, f.outcome.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Outcome returns the resolved outcome. It must only be called after Done
// is closed.
func (f *Future) Outcome() Outcome {
	return f.outcome
}

// Then calls fn with the outcome on its own goroutine once the call
// completes.
func (f *Future) Then(fn func(Outcome)) {
	go func() {
		<-f.done
		fn(f.outcome)
	}()
}
