package s3

import (
	"context"
	"testing"
	"time"
)

func TestPassthroughAdmitterNeverBlocks(t *testing.T) {
	a := passthroughAdmitter{}
	release, err := a.Admit(context.Background())
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	release()
}

func TestNewRateLimiterAdmitterZeroIsPassthrough(t *testing.T) {
	a := newRateLimiterAdmitter(0, 0)
	if _, ok := a.(passthroughAdmitter); !ok {
		t.Fatalf("expected a zero rate to yield passthroughAdmitter, got %T", a)
	}
}

func TestQueueAdmitterBoundsConcurrency(t *testing.T) {
	a := newQueueAdmitter(1)

	release1, err := a.Admit(context.Background())
	if err != nil {
		t.Fatalf("first Admit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := a.Admit(ctx); err == nil {
		t.Fatal("expected the second Admit to block until the context deadline, got no error")
	}

	release1()

	release2, err := a.Admit(context.Background())
	if err != nil {
		t.Fatalf("Admit after release: %v", err)
	}
	release2()
}

func TestQueueAdmitterReleaseIsIdempotent(t *testing.T) {
	a := newQueueAdmitter(1)
	release, err := a.Admit(context.Background())
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	release()
	release()

	if _, err := a.Admit(context.Background()); err != nil {
		t.Fatalf("expected the slot to be free after a double release, got %v", err)
	}
}

func TestAdmissionPipelineReleasesRateLimiterImmediately(t *testing.T) {
	cfg := Config{RequestConcurrency: 1}
	p := newAdmissionPipeline(cfg)

	release, err := p.admit(context.Background(), opRead)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.readLimiter.Admit(ctx); err != nil {
		t.Fatalf("expected the read rate limiter to already be free, got %v", err)
	}
}
