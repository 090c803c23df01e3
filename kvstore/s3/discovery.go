package s3

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/code4manishk/tensorstore/kvstore"
	"pkt.systems/pslog"
)

const discoveryTimeout = 10 * time.Second

// resolveEndpoint implements the three-tier endpoint/region resolution: an
// explicit endpoint wins, else a region synthesizes a virtual-hosted
// endpoint, else an unsigned HEAD probes the bucket's home region.
func resolveEndpoint(ctx context.Context, cfg Config, httpClient *http.Client, logger pslog.Logger) (endpoint, host, region string, err error) {
	if strings.TrimSpace(cfg.Endpoint) != "" {
		return resolveExplicitEndpoint(cfg)
	}
	if strings.TrimSpace(cfg.Region) != "" {
		endpoint := virtualHostedEndpoint(cfg.Bucket, cfg.Region)
		return endpoint, cfg.Bucket + ".s3." + cfg.Region + ".amazonaws.com", cfg.Region, nil
	}
	return probeBucketRegion(ctx, cfg, httpClient, logger)
}

func resolveExplicitEndpoint(cfg Config) (endpoint, host, region string, err error) {
	u, perr := url.Parse(cfg.Endpoint)
	if perr != nil {
		return "", "", "", kvstore.InvalidArgument("resolve_endpoint", fmt.Errorf("parse endpoint %q: %w", cfg.Endpoint, perr))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", "", kvstore.InvalidArgument("resolve_endpoint", fmt.Errorf("endpoint %q must be http or https", cfg.Endpoint))
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", "", "", kvstore.InvalidArgument("resolve_endpoint", fmt.Errorf("endpoint %q must not carry a query string or fragment", cfg.Endpoint))
	}
	host = cfg.Host
	if host == "" {
		host = u.Host
	}
	endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return endpoint, host, cfg.Region, nil
}

func virtualHostedEndpoint(bucket, region string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
}

// probeBucketRegion issues an unsigned HEAD against the us-east-1-rooted
// virtual-hosted endpoint and reads the x-amz-bucket-region header S3
// returns even for unauthenticated requests.
func probeBucketRegion(ctx context.Context, cfg Config, httpClient *http.Client, logger pslog.Logger) (endpoint, host, region string, err error) {
	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	probeURL := fmt.Sprintf("https://%s.s3.amazonaws.com", cfg.Bucket)
	req, rerr := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
	if rerr != nil {
		return "", "", "", kvstore.FailedPrecondition("discover_region", rerr)
	}
	logger.Trace("s3.discover.probe_begin", "bucket", cfg.Bucket, "url", probeURL)
	resp, rerr := httpClient.Do(req)
	if rerr != nil {
		return "", "", "", kvstore.FailedPrecondition("discover_region", fmt.Errorf("probe bucket region: %w", rerr))
	}
	defer resp.Body.Close()
	region = resp.Header.Get("x-amz-bucket-region")
	if region == "" {
		logger.Warn("s3.discover.bucket_not_found", "bucket", cfg.Bucket, "status", resp.StatusCode)
		return "", "", "", kvstore.FailedPrecondition("discover_region", fmt.Errorf("bucket %q not found: no x-amz-bucket-region header in probe response", cfg.Bucket))
	}
	logger.Debug("s3.discover.probe_resolved", "bucket", cfg.Bucket, "region", region)
	return virtualHostedEndpoint(cfg.Bucket, region), cfg.Bucket + ".s3." + region + ".amazonaws.com", region, nil
}
