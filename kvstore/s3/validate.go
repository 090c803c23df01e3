package s3

import (
	"fmt"
	"net"
	"strings"

	"github.com/code4manishk/tensorstore/kvstore"
)

// maxObjectKeyBytes is S3's documented limit on an object key's UTF-8
// encoded length.
const maxObjectKeyBytes = 1024

// validateObjectKey rejects a key before it is ever percent-encoded and
// sent to S3: empty, over-length, containing a control byte, or carrying a
// path-traversal segment ("." or "..").
func validateObjectKey(key string) error {
	if key == "" {
		return kvstore.InvalidArgument("validate_key", fmt.Errorf("key must not be empty"))
	}
	if len(key) > maxObjectKeyBytes {
		return kvstore.InvalidArgument("validate_key", fmt.Errorf("key length %d exceeds the %d byte limit", len(key), maxObjectKeyBytes))
	}
	if err := validateKeyBytes(key); err != nil {
		return err
	}
	if err := validateNoPathTraversal(key); err != nil {
		return err
	}
	return nil
}

// validateKeyPrefix applies the same checks as validateObjectKey except
// that an empty prefix (list everything) is allowed.
func validateKeyPrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	if len(prefix) > maxObjectKeyBytes {
		return kvstore.InvalidArgument("validate_key", fmt.Errorf("key prefix length %d exceeds the %d byte limit", len(prefix), maxObjectKeyBytes))
	}
	if err := validateKeyBytes(prefix); err != nil {
		return err
	}
	return validateNoPathTraversal(prefix)
}

func validateKeyBytes(key string) error {
	for i := 0; i < len(key); i++ {
		b := key[i]
		if b < 0x20 || b == 0x7f {
			return kvstore.InvalidArgument("validate_key", fmt.Errorf("key contains control byte 0x%02x", b))
		}
	}
	return nil
}

func validateNoPathTraversal(key string) error {
	for _, segment := range strings.Split(key, "/") {
		if segment == "." || segment == ".." {
			return kvstore.InvalidArgument("validate_key", fmt.Errorf("key %q contains a path-traversal segment %q", key, segment))
		}
	}
	return nil
}

// validateBucketName enforces S3's bucket-naming rules: 3-63 characters,
// lowercase letters/digits/hyphens/dots, must start and end with a letter
// or digit, no adjacent dots, and not formatted as an IPv4 address.
func validateBucketName(bucket string) error {
	if len(bucket) < 3 || len(bucket) > 63 {
		return kvstore.InvalidArgument("validate_bucket", fmt.Errorf("bucket name %q must be 3-63 characters, got %d", bucket, len(bucket)))
	}
	if net.ParseIP(bucket) != nil {
		return kvstore.InvalidArgument("validate_bucket", fmt.Errorf("bucket name %q must not be formatted as an IP address", bucket))
	}
	prev := byte(0)
	for i := 0; i < len(bucket); i++ {
		b := bucket[i]
		switch {
		case b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		case b == '-' || b == '.':
			if prev == '.' && b == '.' {
				return kvstore.InvalidArgument("validate_bucket", fmt.Errorf("bucket name %q must not contain adjacent dots", bucket))
			}
		default:
			return kvstore.InvalidArgument("validate_bucket", fmt.Errorf("bucket name %q contains disallowed byte %q", bucket, string(b)))
		}
		prev = b
	}
	first, last := bucket[0], bucket[len(bucket)-1]
	if !isAlphanumeric(first) || !isAlphanumeric(last) {
		return kvstore.InvalidArgument("validate_bucket", fmt.Errorf("bucket name %q must start and end with a letter or digit", bucket))
	}
	return nil
}

func isAlphanumeric(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
