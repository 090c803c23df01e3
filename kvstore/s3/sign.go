package s3

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// emptyBodySHA256 is the constant SHA256 of a zero-length payload, used as
// x-amz-content-sha256 for every request with no body (GET, HEAD, DELETE).
const emptyBodySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

var signer = v4.NewSigner()

// signRequest signs req in place with SigV4, using bodySHA256 as the
// x-amz-content-sha256 value (emptyBodySHA256 for bodiless verbs).
func signRequest(ctx context.Context, rc *requestContext, req *http.Request, bodySHA256 string) error {
	creds, err := rc.credentials(ctx)
	if err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}
	cv, err := creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieve credentials: %w", err)
	}
	req.Header.Set("x-amz-content-sha256", bodySHA256)
	signingTime := time.Now()
	return signer.SignHTTP(ctx, cv, req, bodySHA256, "s3", regionOrDefault(rc.region), signingTime)
}

func regionOrDefault(region string) string {
	if region == "" {
		return "us-east-1"
	}
	return region
}

func sha256Hex(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// encodeObjectKey percent-encodes key per S3 object-key URL rules, keeping
// the path separators ("/") unescaped since a key legitimately contains
// them and S3 treats each segment as already-delimited.
func encodeObjectKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
