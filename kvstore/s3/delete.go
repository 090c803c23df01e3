package s3

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/code4manishk/tensorstore/kvstore"
	"pkt.systems/pslog"
)

// delete implements kvstore.Driver.Delete. Same peek-then-act emulation as
// write, since S3 has no conditional DELETE either.
func (d *Driver) delete(ctx context.Context, key string, opts kvstore.WriteOptions) (kvstore.TimestampedGeneration, error) {
	logger := pslog.LoggerFromContext(ctx)
	prom := newPromise[kvstore.TimestampedGeneration](ctx)
	d.rc.metrics.incCall("delete")
	callStart := time.Now()

	if err := validateObjectKey(key); err != nil {
		return kvstore.TimestampedGeneration{}, err
	}

	release, err := d.rc.admission.admit(ctx, opWrite)
	if err != nil {
		return kvstore.TimestampedGeneration{}, kvstore.Unavailable("delete", err)
	}
	slot := &taskSlot{release: release}
	defer slot.finish()

	result, err := withRetry(ctx, prom, d.rc.retry, d.rc.metrics, "delete", func(ctx context.Context, attempt int) (kvstore.TimestampedGeneration, error) {
		return d.deleteAttempt(ctx, key, opts, logger)
	})
	d.rc.metrics.observeLatency("delete", time.Since(callStart))
	if err != nil {
		return kvstore.TimestampedGeneration{}, classify("delete", err)
	}
	return result, nil
}

func (d *Driver) deleteAttempt(ctx context.Context, key string, opts kvstore.WriteOptions, logger pslog.Logger) (kvstore.TimestampedGeneration, error) {
	if !opts.IfEqual.IsUnknown() {
		failed, peekErr := d.peekPrecondition(ctx, key, opts.IfEqual, logger)
		if peekErr != nil {
			return kvstore.TimestampedGeneration{}, peekErr
		}
		if failed {
			return kvstore.TimestampedGeneration{Generation: kvstore.Unknown, Timestamp: time.Now()}, nil
		}
	}
	return d.doDelete(ctx, key, opts, logger)
}

func (d *Driver) doDelete(ctx context.Context, key string, opts kvstore.WriteOptions, logger pslog.Logger) (kvstore.TimestampedGeneration, error) {
	startTime := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, d.rc.objectURL(key), nil)
	if err != nil {
		return kvstore.TimestampedGeneration{}, kvstore.InvalidArgument("delete", err)
	}
	if d.rc.cfg.RequesterPays {
		req.Header.Set("x-amz-request-payer", "requester")
	}
	if err := signRequest(ctx, d.rc, req, emptyBodySHA256); err != nil {
		return kvstore.TimestampedGeneration{}, kvstore.Unavailable("delete", err)
	}

	logger.Trace("s3.delete.issue", "key", key)
	resp, err := d.rc.httpClient.Do(req)
	if err != nil {
		return kvstore.TimestampedGeneration{}, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return kvstore.TimestampedGeneration{Generation: kvstore.NoValue, Timestamp: startTime}, nil
	case http.StatusNotFound:
		if !opts.IfEqual.IsUnknown() && !opts.IfEqual.IsNoValue() {
			return kvstore.TimestampedGeneration{Generation: kvstore.Unknown, Timestamp: startTime}, nil
		}
		return kvstore.TimestampedGeneration{Generation: kvstore.NoValue, Timestamp: startTime}, nil
	default:
		return kvstore.TimestampedGeneration{}, statusFromResponse(resp, "")
	}
}
