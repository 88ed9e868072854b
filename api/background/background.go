// Package background runs fire-and-forget work that must still finish, or
// be waited for, before the process exits.
package background

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type Background struct {
	log    logrus.FieldLogger
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	shutdown bool
}

func New(log logrus.FieldLogger) *Background {
	ctx, cancel := context.WithCancel(context.Background())
	return &Background{log: log, ctx: ctx, cancel: cancel}
}

// Go runs fn in its own goroutine. The context passed to fn is canceled
// once Shutdown starts. A panic in fn is logged and swallowed. After
// Shutdown was called, Go refuses new work and returns false.
func (b *Background) Go(fn func(ctx context.Context)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shutdown {
		return false
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				b.log.Error(fmt.Sprintf("background task panic: %v", rec))
			}
		}()

		fn(b.ctx)
	}()

	return true
}

// Shutdown stops accepting work, cancels the tasks' context and waits for
// them to return until ctx is done.
func (b *Background) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.shutdown = true
	b.mu.Unlock()
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
