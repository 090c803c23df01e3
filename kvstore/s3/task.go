package s3

import (
	"context"
	"sync"
	"sync/atomic"
)

// promise tracks one task's attempt count and liveness across retries. A
// task's result travels back to its caller as an ordinary return value up
// the withRetry call stack; promise carries only the state a retry loop
// needs between attempts. resultNeeded reports whether the caller's
// context is still live, the signal every task checks between suspension
// points before doing further work.
type promise[T any] struct {
	ctx      context.Context
	attempts atomic.Int64
}

func newPromise[T any](ctx context.Context) *promise[T] {
	return &promise[T]{ctx: ctx}
}

// resultNeeded reports whether the caller is still waiting, i.e. whether
// ctx has not been cancelled.
func (p *promise[T]) resultNeeded() bool {
	return p.ctx.Err() == nil
}

// nextAttempt increments and returns the task's attempt counter. The
// counter is monotonic for the lifetime of a task and is reset to zero only
// between pages of a successful list operation.
func (p *promise[T]) nextAttempt() int {
	return int(p.attempts.Add(1))
}

func (p *promise[T]) resetAttempts() {
	p.attempts.Store(0)
}

func (p *promise[T]) attemptCount() int {
	return int(p.attempts.Load())
}

// taskSlot holds the single admission-queue release function a task owns
// for its whole lifetime; release is idempotent and must run exactly once,
// at task teardown, regardless of how many attempts (retries) occurred.
type taskSlot struct {
	once    sync.Once
	release func()
}

func (s *taskSlot) finish() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}
