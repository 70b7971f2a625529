package runner

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Runner runs long-lived components until one fails or the parent context
// ends. Every component receives the group context.
type Runner struct {
	g   *errgroup.Group
	ctx context.Context
}

func New(ctx context.Context) *Runner {
	g, gctx := errgroup.WithContext(ctx)

	return &Runner{
		g:   g,
		ctx: gctx,
	}
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

func (r *Runner) Go(f func(ctx context.Context) error) {
	r.g.Go(func() error {
		return f(r.ctx)
	})
}

func (r *Runner) Wait() error {
	return r.g.Wait()
}
