package s3

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/code4manishk/tensorstore/kvstore"
)

// deleteRange implements kvstore.Driver.DeleteRange: it fans a List stream
// of the range into concurrent per-key Delete calls and reports one outer
// result: the listing's error if it failed, else the first sub-delete error
// (later sub-delete errors are dropped), else nil. There is intentionally no
// back-pressure between the listing and the deletes — a documented
// limitation, not an oversight.
func (d *Driver) deleteRange(ctx context.Context, r kvstore.KeyRange) <-chan error {
	out := make(chan error, 1)
	if r.Empty() {
		out <- nil
		close(out)
		return out
	}
	d.rc.metrics.incCall("delete_range")

	go func() {
		defer close(out)
		group, groupCtx := errgroup.WithContext(ctx)
		stream := d.list(groupCtx, r, kvstore.ListOptions{})
		for entry := range stream.Entries {
			key := entry.Key
			group.Go(func() error {
				_, err := d.delete(groupCtx, key, kvstore.WriteOptions{})
				return err
			})
		}
		if err := stream.Err(); err != nil {
			out <- err
			return
		}
		out <- group.Wait()
	}()
	return out
}
