package s3

import "github.com/code4manishk/tensorstore/kvstore"

// classify wraps a terminal error in the kvstore.ErrorKind vocabulary if it
// isn't already one: anything that reaches here is either a non-retriable
// HTTP failure or a retry-budget exhaustion (already wrapped by aborted),
// so the remaining case maps to Unavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if kvstore.KindOf(err) != kvstore.Unknown_ {
		return err
	}
	return kvstore.Unavailable(op, err)
}
