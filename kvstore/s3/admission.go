package s3

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// opClass distinguishes the read and write rate-limiter lanes.
type opClass int

const (
	opRead opClass = iota
	opWrite
)

// admitter is an Admit/Finish contract: Admit blocks until a slot is
// available then returns a release function, and calling that function
// plays the role of Finish.
type admitter interface {
	Admit(ctx context.Context) (func(), error)
}

// passthroughAdmitter never blocks; used when a gate is left unconfigured.
type passthroughAdmitter struct{}

func (passthroughAdmitter) Admit(ctx context.Context) (func(), error) {
	return func() {}, nil
}

// rateLimiterAdmitter wraps a token-bucket rate.Limiter behind the Admit
// contract.
type rateLimiterAdmitter struct {
	limiter *rate.Limiter
}

func newRateLimiterAdmitter(requestsPerSecond float64, burst int) admitter {
	if requestsPerSecond <= 0 {
		return passthroughAdmitter{}
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiterAdmitter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

func (a *rateLimiterAdmitter) Admit(ctx context.Context) (func(), error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return func() {}, nil
}

// queueAdmitter wraps a bounded semaphore.Weighted behind the Admit
// contract. Unlike the rate limiter, the release function returned here
// must be called exactly once by the task at teardown, not at request
// completion — retries reuse the slot they were admitted with.
type queueAdmitter struct {
	sem *semaphore.Weighted
}

func newQueueAdmitter(maxInFlight int) admitter {
	if maxInFlight <= 0 {
		return passthroughAdmitter{}
	}
	return &queueAdmitter{sem: semaphore.NewWeighted(int64(maxInFlight))}
}

func (a *queueAdmitter) Admit(ctx context.Context) (func(), error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		a.sem.Release(1)
	}, nil
}

// admissionPipeline is the two-stage gate every task passes through once,
// before its first HTTP attempt: a per-operation-class rate limiter, then
// the shared admission queue. The queue's release is held by the task and
// invoked exactly once, at task teardown.
type admissionPipeline struct {
	readLimiter  admitter
	writeLimiter admitter
	queue        admitter
}

func newAdmissionPipeline(cfg Config) *admissionPipeline {
	return &admissionPipeline{
		readLimiter:  newRateLimiterAdmitter(cfg.RateLimiter.ReadRequestsPerSecond, cfg.RateLimiter.Burst),
		writeLimiter: newRateLimiterAdmitter(cfg.RateLimiter.WriteRequestsPerSecond, cfg.RateLimiter.Burst),
		queue:        newQueueAdmitter(cfg.RequestConcurrency),
	}
}

// admit runs a task through both gates, returning a single release function
// that tears down the queue slot. The rate-limiter slot is released
// immediately once the queue admits the task: a task releases the rate
// limiter and admits to the queue before dispatching its body.
func (p *admissionPipeline) admit(ctx context.Context, class opClass) (func(), error) {
	limiter := p.readLimiter
	if class == opWrite {
		limiter = p.writeLimiter
	}
	releaseRate, err := limiter.Admit(ctx)
	if err != nil {
		return nil, err
	}
	releaseQueue, err := p.queue.Admit(ctx)
	releaseRate()
	if err != nil {
		return nil, err
	}
	return releaseQueue, nil
}
