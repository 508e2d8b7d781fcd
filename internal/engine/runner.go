package engine

import "context"

// Runner drives an engine on its own goroutine.
type Runner struct {
	engine Engine
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start runs e.Run on a new goroutine. Cancelling ctx stops the engine like
// Stop does.
func Start(ctx context.Context, e Engine) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	r := &Runner{engine: e, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		defer cancel()
		r.err = e.Run(ctx)
	}()
	return r
}

// Engine returns the engine being run.
func (r *Runner) Engine() Engine { return r.engine }

// Stop asks the engine to stop and waits for it. Batches in flight are
// resolved before it returns.
func (r *Runner) Stop() error {
	r.cancel()
	return r.Wait()
}

// Wait blocks until Run returns and reports its error.
func (r *Runner) Wait() error {
	<-r.done
	return r.err
}

// Done is closed once Run has returned.
func (r *Runner) Done() <-chan struct{} { return r.done }
