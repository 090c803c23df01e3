package s3

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/code4manishk/tensorstore/kvstore"
	"pkt.systems/pslog"
)

// listBucketResult mirrors the XML shape ListObjectsV2 returns, matching
// the tag style S3-compatible response structs in the retrieved reference
// pack use for the same document.
type listBucketResult struct {
	XMLName               xml.Name         `xml:"ListBucketResult"`
	KeyCount              string           `xml:"KeyCount"`
	IsTruncated           bool             `xml:"IsTruncated"`
	NextContinuationToken string           `xml:"NextContinuationToken"`
	Contents              []listBucketItem `xml:"Contents"`
}

type listBucketItem struct {
	Key          string `xml:"Key"`
	ETag         string `xml:"ETag"`
	LastModified string `xml:"LastModified"`
}

// list implements kvstore.Driver.List: it streams matching keys to the
// returned Stream following the starting/value/done-or-error/stopping
// protocol, cancellable via ctx.
func (d *Driver) list(ctx context.Context, r kvstore.KeyRange, opts kvstore.ListOptions) kvstore.Stream {
	d.rc.metrics.incCall("list")
	if err := validateKeyPrefix(r.InclusiveMin); err != nil {
		return kvstore.NewStream(ctx, func(ctx context.Context, entries chan<- kvstore.ListEntry, setErr func(error)) {
			setErr(err)
		})
	}
	if r.Empty() {
		return kvstore.NewStream(ctx, func(ctx context.Context, entries chan<- kvstore.ListEntry, setErr func(error)) {})
	}
	return kvstore.NewStream(ctx, func(ctx context.Context, entries chan<- kvstore.ListEntry, setErr func(error)) {
		d.runList(ctx, r, opts, entries, setErr)
	})
}

func (d *Driver) runList(ctx context.Context, r kvstore.KeyRange, opts kvstore.ListOptions, entries chan<- kvstore.ListEntry, setErr func(error)) {
	logger := pslog.LoggerFromContext(ctx)
	prom := newPromise[*listBucketResult](ctx)

	prefix := r.InclusiveMin
	if opts.StripPrefixLength > 0 && opts.StripPrefixLength < len(prefix) {
		prefix = prefix[:opts.StripPrefixLength]
	}

	continuationToken := ""
	for {
		if ctx.Err() != nil || !prom.resultNeeded() {
			setErr(kvstore.Cancelled("list", ctx.Err()))
			return
		}
		page, err := withRetry(ctx, prom, d.rc.retry, d.rc.metrics, "list", func(ctx context.Context, attempt int) (*listBucketResult, error) {
			return d.listPage(ctx, prefix, continuationToken, logger)
		})
		if err != nil {
			setErr(classify("list", err))
			return
		}
		prom.resetAttempts()

		for _, item := range page.Contents {
			if ctx.Err() != nil {
				setErr(kvstore.Cancelled("list", ctx.Err()))
				return
			}
			if !r.Contains(item.Key) {
				continue
			}
			key := item.Key
			if opts.StripPrefixLength > 0 && opts.StripPrefixLength <= len(key) {
				key = key[opts.StripPrefixLength:]
			}
			entry := kvstore.ListEntry{
				Key:        key,
				Generation: generationFromETag(item.ETag),
				Timestamp:  parseLastModified(item.LastModified),
			}
			select {
			case entries <- entry:
			case <-ctx.Done():
				setErr(kvstore.Cancelled("list", ctx.Err()))
				return
			}
		}

		if !page.IsTruncated {
			return
		}
		continuationToken = page.NextContinuationToken
	}
}

func (d *Driver) listPage(ctx context.Context, prefix, continuationToken string, logger pslog.Logger) (*listBucketResult, error) {
	q := url.Values{}
	q.Set("list-type", "2")
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	if continuationToken != "" {
		q.Set("continuation-token", continuationToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.rc.bucketURL()+"?"+q.Encode(), nil)
	if err != nil {
		return nil, kvstore.InvalidArgument("list", err)
	}
	if d.rc.cfg.RequesterPays {
		req.Header.Set("x-amz-request-payer", "requester")
	}
	if err := signRequest(ctx, d.rc, req, emptyBodySHA256); err != nil {
		return nil, kvstore.Unavailable("list", err)
	}

	logger.Trace("s3.list.page", "prefix", prefix, "continuation_token", continuationToken)
	resp, err := d.rc.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusFromResponse(resp, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var result listBucketResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("s3: decode list response: %w", err)
	}
	if _, err := strconv.ParseUint(result.KeyCount, 10, 32); err != nil && result.KeyCount != "" {
		return nil, fmt.Errorf("s3: invalid KeyCount %q in list response: %w", result.KeyCount, err)
	}
	return &result, nil
}

func parseLastModified(v string) time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
