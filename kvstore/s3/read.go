package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/code4manishk/tensorstore/kvstore"
	"pkt.systems/pslog"
)

// read implements kvstore.Driver.Read: it admits the task once, then drives
// attempts through withRetry.
func (d *Driver) read(ctx context.Context, key string, opts kvstore.ReadOptions) (kvstore.ReadResult, error) {
	logger := pslog.LoggerFromContext(ctx)
	prom := newPromise[kvstore.ReadResult](ctx)
	d.rc.metrics.incCall("read")
	callStart := time.Now()

	if err := validateObjectKey(key); err != nil {
		return kvstore.ReadResult{}, err
	}

	release, err := d.rc.admission.admit(ctx, opRead)
	if err != nil {
		return kvstore.ReadResult{}, kvstore.Unavailable("read", err)
	}
	slot := &taskSlot{release: release}
	defer slot.finish()

	result, err := withRetry(ctx, prom, d.rc.retry, d.rc.metrics, "read", func(ctx context.Context, attempt int) (kvstore.ReadResult, error) {
		return d.readAttempt(ctx, key, opts, logger)
	})
	d.rc.metrics.observeLatency("read", time.Since(callStart))
	if err != nil {
		return kvstore.ReadResult{}, classify("read", err)
	}
	d.rc.metrics.addBytesRead(len(result.Value))
	return result, nil
}

func (d *Driver) readAttempt(ctx context.Context, key string, opts kvstore.ReadOptions, logger pslog.Logger) (kvstore.ReadResult, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.rc.objectURL(key), nil)
	if err != nil {
		return kvstore.ReadResult{}, kvstore.InvalidArgument("read", err)
	}
	if v, ok := ifNoneMatchHeader(opts.IfNotEqual); ok {
		req.Header.Set("If-None-Match", v)
	}
	if v, ok := ifMatchHeader(opts.IfEqual); ok {
		req.Header.Set("If-Match", v)
	}
	req.Header.Set("Accept-Encoding", "gzip")
	if d.rc.cfg.RequesterPays {
		req.Header.Set("x-amz-request-payer", "requester")
	}
	if !opts.Range.IsFull() {
		req.Header.Set("Range", formatRangeHeader(opts.Range))
	}

	if err := signRequest(ctx, d.rc, req, emptyBodySHA256); err != nil {
		return kvstore.ReadResult{}, kvstore.Unavailable("read", err)
	}

	logger.Trace("s3.read.attempt", "key", key, "range", opts.Range)
	resp, err := d.rc.httpClient.Do(req)
	if err != nil {
		return kvstore.ReadResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusNoContent:
		io.Copy(io.Discard, resp.Body)
		logger.Debug("s3.read.missing", "key", key)
		return kvstore.ReadResult{Kind: kvstore.ReadMissing, Generation: kvstore.NoValue, Timestamp: startTime}, nil
	case http.StatusPreconditionFailed:
		io.Copy(io.Discard, resp.Body)
		return kvstore.ReadResult{Kind: kvstore.ReadConditionUnsatisfied, Generation: kvstore.Unknown, Timestamp: startTime}, nil
	case http.StatusNotModified:
		io.Copy(io.Discard, resp.Body)
		return kvstore.ReadResult{Kind: kvstore.ReadUnchanged, Generation: opts.IfNotEqual, Timestamp: startTime}, nil
	case http.StatusPartialContent:
		return d.finishPartialRead(resp, opts, startTime)
	case http.StatusOK:
		return d.finishFullRead(resp, opts, startTime)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return kvstore.ReadResult{}, statusFromResponse(resp, string(body))
	}
}

func (d *Driver) finishPartialRead(resp *http.Response, opts kvstore.ReadOptions, startTime time.Time) (kvstore.ReadResult, error) {
	if opts.Range.IsFull() {
		io.Copy(io.Discard, resp.Body)
		return kvstore.ReadResult{}, kvstore.OutOfRange("read", fmt.Errorf("unsolicited 206 Partial Content for an unranged read"))
	}
	start, _, size, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		io.Copy(io.Discard, resp.Body)
		return kvstore.ReadResult{}, kvstore.OutOfRange("read", err)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return kvstore.ReadResult{}, err
	}
	if opts.Range.InclusiveMin >= 0 && start != opts.Range.InclusiveMin {
		return kvstore.ReadResult{}, kvstore.OutOfRange("read", fmt.Errorf("requested range starting at %d, server returned start %d", opts.Range.InclusiveMin, start))
	}
	if want := opts.Range.Size(); want >= 0 && int64(len(payload)) != want {
		return kvstore.ReadResult{}, kvstore.OutOfRange("read", fmt.Errorf("requested %d bytes, server returned %d of %d total", want, len(payload), size))
	}
	return kvstore.ReadResult{
		Kind:       kvstore.ReadValue,
		Value:      payload,
		Generation: generationFromETag(resp.Header.Get("ETag")),
		Timestamp:  startTime,
	}, nil
}

func (d *Driver) finishFullRead(resp *http.Response, opts kvstore.ReadOptions, startTime time.Time) (kvstore.ReadResult, error) {
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return kvstore.ReadResult{}, err
	}
	if !opts.Range.IsFull() {
		min := opts.Range.InclusiveMin
		if min < 0 {
			min = 0
		}
		max := opts.Range.ExclusiveMax
		if max < 0 || max > int64(len(payload)) {
			max = int64(len(payload))
		}
		if min > int64(len(payload)) {
			min = int64(len(payload))
		}
		payload = payload[min:max]
	}
	return kvstore.ReadResult{
		Kind:       kvstore.ReadValue,
		Value:      payload,
		Generation: generationFromETag(resp.Header.Get("ETag")),
		Timestamp:  startTime,
	}, nil
}

func formatRangeHeader(r kvstore.ByteRange) string {
	min := r.InclusiveMin
	max := r.ExclusiveMax
	switch {
	case min >= 0 && max >= 0:
		return fmt.Sprintf("bytes=%d-%d", min, max-1)
	case min >= 0:
		return fmt.Sprintf("bytes=%d-", min)
	case max >= 0:
		return fmt.Sprintf("bytes=0-%d", max-1)
	default:
		return ""
	}
}

// parseContentRange parses a "bytes start-end/size" Content-Range value.
func parseContentRange(header string) (start, end, size int64, err error) {
	header = strings.TrimPrefix(header, "bytes ")
	parts := strings.SplitN(header, "/", 2)
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	rangePart, sizePart := parts[0], parts[1]
	rangeBounds := strings.SplitN(rangePart, "-", 2)
	if len(rangeBounds) != 2 {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	start, err = strconv.ParseInt(rangeBounds[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q: %w", header, err)
	}
	end, err = strconv.ParseInt(rangeBounds[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q: %w", header, err)
	}
	if sizePart == "*" {
		size = -1
	} else {
		size, err = strconv.ParseInt(sizePart, 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("malformed Content-Range %q: %w", header, err)
		}
	}
	return start, end, size, nil
}
