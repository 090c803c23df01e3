package kvstore

import (
	"context"
	"time"
)

// ListEntry is a single key yielded by a List call.
type ListEntry struct {
	Key        string
	Generation Generation
	Timestamp  time.Time
}

// Stream is what List returns: a channel-based flow-receiver. A driver
// starts producing when the Stream is created and hands entries over one at
// a time as the caller ranges over Entries; Entries is closed once the
// producer returns, whether it finished, failed, or observed ctx cancelled. Err is only meaningful after Entries is
// closed; a nil Err after closure means the list completed successfully.
type Stream struct {
	// Entries yields one ListEntry per key in range, in ascending key order.
	// It is closed when the list finishes, succeeds, or fails.
	Entries <-chan ListEntry
	// Err reports the terminal error, if any, after Entries closes. Reading
	// it before Entries closes is a race; callers should drain Entries
	// first.
	Err func() error
}

// NewStream wires up a Stream backed by the channel produce uses to emit
// entries. produce must not close entries: NewStream closes it once produce
// returns. produce is expected to return once ctx is done or it has emitted
// everything in range, and to record any terminal error via setErr before
// returning.
func NewStream(ctx context.Context, produce func(ctx context.Context, entries chan<- ListEntry, setErr func(error))) Stream {
	entries := make(chan ListEntry)
	var errVal error
	var errSet bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		produce(ctx, entries, func(err error) {
			errVal = err
			errSet = true
		})
	}()
	go func() {
		<-done
		close(entries)
	}()
	return Stream{
		Entries: entries,
		Err: func() error {
			if !errSet {
				return nil
			}
			return errVal
		},
	}
}
