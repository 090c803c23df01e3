package s3

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"pkt.systems/pslog"

	"github.com/code4manishk/tensorstore/kvstore"
)

// Driver is the S3-backed kvstore.Driver implementation.
type Driver struct {
	rc *requestContext
}

var _ kvstore.Driver = (*Driver)(nil)

// Open resolves the endpoint and region, wires up the admission pipeline
// and metrics, and returns a ready-to-use Driver. Discovery runs eagerly
// here rather than being deferred to first use, so a missing bucket
// surfaces before the caller issues any operation.
func Open(ctx context.Context, cfg Config, reg *prometheus.Registry) (*Driver, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, kvstore.InvalidArgument("open", fmt.Errorf("bucket is required"))
	}
	if err := validateBucketName(cfg.Bucket); err != nil {
		return nil, err
	}
	logger := pslog.LoggerFromContext(ctx)

	httpClient := &http.Client{Transport: defaultTransport(cfg.Insecure)}

	endpoint, host, region, err := resolveEndpoint(ctx, cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("s3.open.resolved", "bucket", cfg.Bucket, "endpoint", endpoint, "host", host, "region", region)

	rc := &requestContext{
		cfg:        cfg,
		endpoint:   endpoint,
		host:       host,
		region:     region,
		httpClient: httpClient,
		retry:      cfg.Retries,
		admission:  newAdmissionPipeline(cfg),
		metrics:    newMetrics(reg),
	}
	return &Driver{rc: rc}, nil
}

func defaultTransport(insecure bool) http.RoundTripper {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport
	}
	clone := base.Clone()
	if clone.MaxIdleConns == 0 {
		clone.MaxIdleConns = 256
	}
	if clone.MaxIdleConnsPerHost == 0 {
		clone.MaxIdleConnsPerHost = 64
	}
	if clone.IdleConnTimeout == 0 {
		clone.IdleConnTimeout = 90 * time.Second
	}
	if insecure {
		clone.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return clone
}

// Read satisfies kvstore.Driver.
func (d *Driver) Read(ctx context.Context, key string, opts kvstore.ReadOptions) (kvstore.ReadResult, error) {
	return d.read(ctx, key, opts)
}

// Write satisfies kvstore.Driver.
func (d *Driver) Write(ctx context.Context, key string, value []byte, opts kvstore.WriteOptions) (kvstore.TimestampedGeneration, error) {
	return d.write(ctx, key, value, opts)
}

// Delete satisfies kvstore.Driver.
func (d *Driver) Delete(ctx context.Context, key string, opts kvstore.WriteOptions) (kvstore.TimestampedGeneration, error) {
	return d.delete(ctx, key, opts)
}

// List satisfies kvstore.Driver.
func (d *Driver) List(ctx context.Context, r kvstore.KeyRange, opts kvstore.ListOptions) kvstore.Stream {
	return d.list(ctx, r, opts)
}

// DeleteRange satisfies kvstore.Driver.
func (d *Driver) DeleteRange(ctx context.Context, r kvstore.KeyRange) <-chan error {
	return d.deleteRange(ctx, r)
}

// Close releases the driver's idle HTTP connections. There is no other
// owned resource to tear down.
func (d *Driver) Close() error {
	d.rc.httpClient.CloseIdleConnections()
	return nil
}
