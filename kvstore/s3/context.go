package s3

import (
	"context"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// requestContext is the immutable per-driver state every task consults:
// resolved endpoint/host/region, the bucket, the requester-pays flag, the
// retry policy, the admission pipeline, and the (lazily resolved) credential
// provider. It is built once by Open and shared, read-only, by every task.
type requestContext struct {
	cfg      Config
	endpoint string
	host     string
	region   string

	httpClient *http.Client
	retry      RetryPolicy
	admission  *admissionPipeline
	metrics    *metrics

	credOnce sync.Once
	credErr  error
	creds    aws.CredentialsProvider
}

// credentials resolves and caches the credential provider on first use, per
// the driver-wide "at most once" invariant. A resolution failure is cached
// too and returned to every later caller without retrying the lookup.
func (rc *requestContext) credentials(ctx context.Context) (aws.CredentialsProvider, error) {
	rc.credOnce.Do(func() {
		rc.creds, rc.credErr = newCredentialProvider(ctx, rc.cfg)
	})
	return rc.creds, rc.credErr
}

// objectURL builds the fully-qualified URL for a single object key.
func (rc *requestContext) objectURL(key string) string {
	return rc.endpoint + "/" + encodeObjectKey(key)
}

// bucketURL builds the fully-qualified URL for bucket-level operations
// (LIST).
func (rc *requestContext) bucketURL() string {
	return rc.endpoint + "/"
}
