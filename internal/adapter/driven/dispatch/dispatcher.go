// Package dispatch implements the TaskDispatcher port with in-process
// goroutines. Work runs asynchronously with bounded exponential-backoff
// retries; dispatches sharing a key are queued and run one at a time, so the
// same repository is never operated on concurrently and every dispatched
// task still gets its own execution.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TaskDispatcher = (*InProc)(nil)

// maxRetries bounds retry attempts after the first; a task runs at most
// maxRetries+1 times.
const maxRetries = 2

// InProc dispatches tasks onto goroutines within the current process.
type InProc struct {
	logger *slog.Logger
	keys   sync.Map // key -> *semaphore.Weighted
	wg     sync.WaitGroup

	// initialInterval overrides the backoff start for tests.
	initialInterval time.Duration
}

// New creates an in-process dispatcher.
func New(logger *slog.Logger) *InProc {
	return &InProc{logger: logger, initialInterval: backoff.DefaultInitialInterval}
}

// keyLock returns the serialization lock for a key, creating it on first use.
func (d *InProc) keyLock(key string) *semaphore.Weighted {
	if sem, ok := d.keys.Load(key); ok {
		return sem.(*semaphore.Weighted)
	}
	sem, _ := d.keys.LoadOrStore(key, semaphore.NewWeighted(1))
	return sem.(*semaphore.Weighted)
}

// Dispatch accepts fn and returns a correlation handle immediately. The work
// runs asynchronously: retryable failures are retried with exponential
// backoff, and dispatches for the same key execute strictly one after
// another. Every accepted dispatch runs; a task queued behind an in-flight
// one waits for its turn instead of being dropped.
func (d *InProc) Dispatch(ctx context.Context, key string, fn driven.TaskFunc) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	handle := uuid.NewString()
	sem := d.keyLock(key)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		// Acquire cannot fail with a background context and weight 1.
		if err := sem.Acquire(context.Background(), 1); err != nil {
			d.logger.Error("task never acquired its key", "key", key, "handle", handle, "error", err)
			return
		}
		defer sem.Release(1)

		if err := d.runWithRetry(ctx, key, handle, fn); err != nil {
			d.logger.Error("task failed", "key", key, "handle", handle, "error", err)
		}
	}()

	return handle, nil
}

// Wait blocks until all dispatched tasks have finished.
func (d *InProc) Wait() {
	d.wg.Wait()
}

func (d *InProc) runWithRetry(ctx context.Context, key, handle string, fn driven.TaskFunc) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.initialInterval

	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !driven.Retryable(err) {
			return backoff.Permanent(err)
		}
		d.logger.Warn("task attempt failed, retrying",
			"key", key, "handle", handle, "attempt", attempt, "error", err)
		return err
	}

	return backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))
}
