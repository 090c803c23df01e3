package s3

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
	"testing"

	smithy "github.com/aws/smithy-go"
)

type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string   { return "timeout" }
func (fakeTimeoutErr) Timeout() bool   { return true }
func (fakeTimeoutErr) Temporary() bool { return true }

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "context deadline", err: context.DeadlineExceeded, expected: true},
		{name: "net timeout", err: &net.OpError{Err: fakeTimeoutErr{}}, expected: true},
		{name: "connection reset", err: syscall.ECONNRESET, expected: true},
		{name: "connection refused", err: syscall.ECONNREFUSED, expected: true},
		{name: "io EOF", err: io.EOF, expected: true},
		{name: "io unexpected EOF", err: io.ErrUnexpectedEOF, expected: true},
		{name: "status 500", err: &httpStatusError{Status: http.StatusInternalServerError}, expected: true},
		{name: "status 503", err: &httpStatusError{Status: http.StatusServiceUnavailable}, expected: true},
		{name: "status 429", err: &httpStatusError{Status: http.StatusTooManyRequests}, expected: true},
		{name: "status 408", err: &httpStatusError{Status: http.StatusRequestTimeout}, expected: true},
		{name: "status 404", err: &httpStatusError{Status: http.StatusNotFound}, expected: false},
		{name: "status 412", err: &httpStatusError{Status: http.StatusPreconditionFailed}, expected: false},
		{name: "clock skew", err: &smithy.GenericAPIError{Code: "RequestTimeTooSkewed"}, expected: true},
		{name: "other api error", err: &smithy.GenericAPIError{Code: "AccessDenied"}, expected: false},
		{name: "non retryable", err: errors.New("boom"), expected: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := isRetriable(tc.err)
			if got != tc.expected {
				t.Fatalf("expected %v, got %v for %v", tc.expected, got, tc.err)
			}
		})
	}
}

func TestHTTPStatusCode(t *testing.T) {
	status, ok := httpStatusCode(&httpStatusError{Status: 503})
	if !ok || status != 503 {
		t.Fatalf("expected (503, true), got (%d, %v)", status, ok)
	}
	if _, ok := httpStatusCode(errors.New("boom")); ok {
		t.Fatalf("expected ok=false for a plain error")
	}
}

func TestWithRetrySucceedsAfterTransientErrors(t *testing.T) {
	ctx := context.Background()
	prom := newPromise[int](ctx)
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: 0, MaxDelay: 0}
	m := newMetrics(nil)

	attempts := 0
	result, err := withRetry(ctx, prom, policy, m, "test", func(ctx context.Context, attempt int) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, &httpStatusError{Status: http.StatusServiceUnavailable}
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryGivesUpOnNonRetriableError(t *testing.T) {
	ctx := context.Background()
	prom := newPromise[int](ctx)
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: 0, MaxDelay: 0}
	m := newMetrics(nil)

	wantErr := &httpStatusError{Status: http.StatusPreconditionFailed}
	attempts := 0
	_, err := withRetry(ctx, prom, policy, m, "test", func(ctx context.Context, attempt int) (int, error) {
		attempts++
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the non-retriable error to surface unwrapped, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one attempt, got %d", attempts)
	}
}

func TestWithRetryAbortsAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	prom := newPromise[int](ctx)
	policy := RetryPolicy{MaxRetries: 2, InitialDelay: 0, MaxDelay: 0}
	m := newMetrics(nil)

	attempts := 0
	_, err := withRetry(ctx, prom, policy, m, "test", func(ctx context.Context, attempt int) (int, error) {
		attempts++
		return 0, &httpStatusError{Status: http.StatusServiceUnavailable}
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if attempts != policy.MaxRetries+1 {
		t.Fatalf("expected %d attempts, got %d", policy.MaxRetries+1, attempts)
	}
}
