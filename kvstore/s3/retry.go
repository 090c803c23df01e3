package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	smithy "github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v5"

	"github.com/code4manishk/tensorstore/kvstore"
)

// backoffForPolicy builds the exponential-with-jitter policy: jitter =
// min(1s, initial_delay).
func backoffForPolicy(p RetryPolicy) *backoff.ExponentialBackOff {
	jitter := p.InitialDelay
	if jitter > time.Second {
		jitter = time.Second
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialDelay
	bo.MaxInterval = p.MaxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = jitterFraction(p.InitialDelay, jitter)
	return bo
}

// jitterFraction expresses an absolute jitter duration as the fraction
// backoff.ExponentialBackOff wants (jitter / initial delay).
func jitterFraction(initial, jitter time.Duration) float64 {
	if initial <= 0 {
		return 0
	}
	return float64(jitter) / float64(initial)
}

// isRetriable classifies an error: network-transient failures, 5xx, 429,
// request-timeout, and signing clock skew are retriable; other 4xx are not.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if isNetworkConnectionError(err) {
		return true
	}
	if isClockSkewError(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if status, ok := httpStatusCode(err); ok {
		if status >= http.StatusInternalServerError {
			return true
		}
		switch status {
		case http.StatusTooManyRequests, http.StatusRequestTimeout:
			return true
		}
	}
	return false
}

// isClockSkewError reports whether err is S3's RequestTimeTooSkewed
// response, surfaced as a 403 with a distinct error code rather than a
// retriable HTTP status — the local clock drifted relative to S3's and the
// next attempt's timestamp may land back inside the accepted window.
func isClockSkewError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "RequestTimeTooSkewed"
	}
	return false
}

func isNetworkConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return isNetworkConnectionError(opErr.Err)
	}
	return false
}

func httpStatusCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) {
		return statusErr.HTTPStatusCode(), true
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode(), true
	}
	return 0, false
}

func isNotFoundAPIErr(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}

// httpStatusError wraps an unexpected response status so isRetriable and
// httpStatusCode can classify it the same way they classify an SDK error.
type httpStatusError struct {
	Status int
	Body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("s3: unexpected status %d %s", e.Status, http.StatusText(e.Status))
}

func (e *httpStatusError) HTTPStatusCode() int { return e.Status }

// statusFromResponse maps an HTTP status that was not handled as a normal
// completion (precondition codes, 2xx) into a Go error, classified via
// isRetriable/httpStatusCode just like an SDK-originated error would be.
func statusFromResponse(resp *http.Response, body string) error {
	return &httpStatusError{Status: resp.StatusCode, Body: body}
}

// aborted wraps the last error from an exhausted retry loop as
// kvstore.Aborted, annotated with the attempt count.
func aborted(op string, attempts int, lastErr error) error {
	return kvstore.Aborted(op, fmt.Errorf("exhausted after %d attempts: %w", attempts, lastErr))
}

// withRetry drives one task's attempt function to completion: it checks
// resultNeeded before each attempt, classifies any error via isRetriable,
// and schedules backoff between attempts. The admission-queue slot for the
// task is acquired once by the caller, outside this loop, and released at
// task teardown — retries here reuse that single slot, never re-admitting.
func withRetry[T any](ctx context.Context, prom *promise[T], policy RetryPolicy, m *metrics, op string, attempt func(ctx context.Context, attemptNum int) (T, error)) (T, error) {
	bo := backoffForPolicy(policy)
	bo.Reset()
	var zero T
	for {
		if !prom.resultNeeded() {
			return zero, kvstore.Cancelled(op, ctx.Err())
		}
		n := prom.nextAttempt()
		result, err := attempt(ctx, n)
		if err == nil {
			return result, nil
		}
		if !isRetriable(err) {
			return zero, err
		}
		if n > policy.MaxRetries {
			return zero, aborted(op, n, err)
		}
		d := bo.NextBackOff()
		if d == backoff.Stop {
			return zero, aborted(op, n, err)
		}
		m.incRetries(op)
		select {
		case <-ctx.Done():
			return zero, kvstore.Cancelled(op, ctx.Err())
		case <-time.After(d):
		}
	}
}
