// Package s3 implements a kvstore.Driver backed by the S3 HTTP API: manual
// SigV4 signing, an admission pipeline in front of every attempt, and
// conditional read/write/delete state machines that emulate compare-and-swap
// on top of S3's limited native conditional support.
package s3

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/code4manishk/tensorstore/kvstore"
)

// RetryPolicy configures the exponential backoff applied between attempts.
type RetryPolicy struct {
	MaxRetries   int           `json:"max_retries"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
}

// DefaultRetryPolicy is a conservative default for a backend whose upstream
// is a managed HTTP API.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// RateLimits configures the optional per-class token-bucket rate limiters.
// A zero RequestsPerSecond disables that limiter (pass-through admission).
type RateLimits struct {
	ReadRequestsPerSecond  float64 `json:"read_requests_per_second"`
	WriteRequestsPerSecond float64 `json:"write_requests_per_second"`
	Burst                  int     `json:"burst"`
}

// Config is the JSON-bindable record describing a driver instance.
type Config struct {
	Bucket             string      `json:"bucket"`
	RequesterPays      bool        `json:"requester_pays"`
	Host               string      `json:"host,omitempty"`
	Endpoint           string      `json:"endpoint,omitempty"`
	Profile            string      `json:"profile,omitempty"`
	Region             string      `json:"aws_region,omitempty"`
	RequestConcurrency int         `json:"s3_request_concurrency"`
	RateLimiter        RateLimits  `json:"s3_rate_limiter"`
	Retries            RetryPolicy `json:"s3_request_retries"`
	Insecure           bool        `json:"insecure,omitempty"`
}

// withDefaults fills in the zero-value fields a driver cannot run without.
func (c Config) withDefaults() Config {
	if c.Profile == "" {
		c.Profile = "default"
	}
	if c.RequestConcurrency <= 0 {
		c.RequestConcurrency = 64
	}
	if c.Retries.MaxRetries <= 0 && c.Retries.InitialDelay == 0 && c.Retries.MaxDelay == 0 {
		c.Retries = DefaultRetryPolicy()
	}
	return c
}

// ParseURL parses an `s3://{bucket}/{object-key}` URL, percent-decoding the
// key and rejecting any query string or fragment.
func ParseURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", kvstore.InvalidArgument("parse_url", fmt.Errorf("parse %q: %w", raw, err))
	}
	if u.Scheme != "s3" {
		return "", "", kvstore.InvalidArgument("parse_url", fmt.Errorf("unsupported scheme %q, want s3", u.Scheme))
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", "", kvstore.InvalidArgument("parse_url", fmt.Errorf("s3 URL %q must not carry a query string or fragment", raw))
	}
	bucket = u.Host
	if bucket == "" {
		return "", "", kvstore.InvalidArgument("parse_url", fmt.Errorf("s3 URL %q missing bucket", raw))
	}
	if err := validateBucketName(bucket); err != nil {
		return "", "", err
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", kvstore.InvalidArgument("parse_url", fmt.Errorf("s3 URL %q missing object key", raw))
	}
	if err := validateObjectKey(key); err != nil {
		return "", "", err
	}
	return bucket, key, nil
}
