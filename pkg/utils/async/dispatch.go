package async

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/playpack/pkg/utils/errutil"
)

// Dispatcher runs handlers detached from the request that triggered them and
// keeps track of them so a shutting down server can wait for running builds.
type Dispatcher struct {
	wg sync.WaitGroup
}

// New creates a Dispatcher
func New() *Dispatcher {
	return &Dispatcher{}
}

// Dispatch executes handler in a new goroutine.
//
// The handler receives a background context that keeps the logger of ctx but
// is not cancelled with it, because the HTTP request that triggered a build
// ends long before the build does. Returned errors and panics are passed to
// errutil.Handle.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, handler func(ctx context.Context) error) {
	newCtx := newBackgroundContext(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				err := goerr.New("panic in async handler",
					goerr.V("handler", name),
					goerr.V("recover", r),
					goerr.V("stack", string(debug.Stack())),
				)
				errutil.Handle(newCtx, "async handler panicked", err)
			}
		}()

		if err := handler(newCtx); err != nil {
			errutil.Handle(newCtx, "async handler failed", goerr.Wrap(err, "async handler returned error", goerr.V("handler", name)))
		}
	}()
}

// Wait blocks until every dispatched handler returned or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "async handlers still running")
	}
}

func newBackgroundContext(ctx context.Context) context.Context {
	return ctxlog.With(context.Background(), ctxlog.From(ctx))
}
