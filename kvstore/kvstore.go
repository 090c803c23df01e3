// Package kvstore defines the generic key-value contract that backend
// drivers implement. It plays the role the surrounding storage fabric
// contributes in a larger system: a uniform Read/Write/Delete/List surface,
// an opaque storage-generation type for compare-and-swap semantics, and the
// error-kind vocabulary callers can match against regardless of which
// backend answered the call.
package kvstore

import (
	"context"
	"time"
)

// Driver is the uniform surface every backend (S3, memory, disk, ...)
// exposes to callers. A driver owns its own connection pooling, retry
// policy, and admission control; Close releases those resources.
type Driver interface {
	Read(ctx context.Context, key string, opts ReadOptions) (ReadResult, error)
	Write(ctx context.Context, key string, value []byte, opts WriteOptions) (TimestampedGeneration, error)
	Delete(ctx context.Context, key string, opts WriteOptions) (TimestampedGeneration, error)
	List(ctx context.Context, r KeyRange, opts ListOptions) Stream
	DeleteRange(ctx context.Context, r KeyRange) <-chan error
	Close() error
}

// KeyRange is an inclusive-min, exclusive-max range of keys. An empty
// ExclusiveMax means "no upper bound".
type KeyRange struct {
	InclusiveMin string
	ExclusiveMax string
}

// Empty reports whether the range can contain no keys.
func (r KeyRange) Empty() bool {
	return r.ExclusiveMax != "" && r.InclusiveMin >= r.ExclusiveMax
}

// Contains reports whether key falls within the range.
func (r KeyRange) Contains(key string) bool {
	if key < r.InclusiveMin {
		return false
	}
	if r.ExclusiveMax != "" && key >= r.ExclusiveMax {
		return false
	}
	return true
}

// ByteRange constrains a Read to a sub-span of the stored value. Either
// bound may be left unconstrained with -1; FullRange {-1, -1} and the zero
// value {0, 0} both mean "whole value".
type ByteRange struct {
	// InclusiveMin is the first byte to read, or -1 for "from the start".
	InclusiveMin int64
	// ExclusiveMax is one past the last byte to read, or -1 for "to the end".
	ExclusiveMax int64
}

// FullRange is the unconstrained ByteRange value. ByteRange's zero value
// {0, 0} is treated the same way by IsFull, so a ReadOptions left with its
// Range field unset reads the whole object rather than a degenerate
// zero-length span.
var FullRange = ByteRange{InclusiveMin: -1, ExclusiveMax: -1}

// IsFull reports whether r constrains neither endpoint. The zero value
// {0, 0} counts as full too, since that is what an unset Range field holds.
func (r ByteRange) IsFull() bool {
	return r.InclusiveMin <= 0 && r.ExclusiveMax <= 0
}

// Size returns the requested span's length, or -1 if the upper bound is open.
func (r ByteRange) Size() int64 {
	if r.ExclusiveMax < 0 {
		return -1
	}
	min := r.InclusiveMin
	if min < 0 {
		min = 0
	}
	return r.ExclusiveMax - min
}

// ReadOptions parameterizes Read.
type ReadOptions struct {
	Range      ByteRange
	IfEqual    Generation
	IfNotEqual Generation
}

// WriteOptions parameterizes Write and Delete.
type WriteOptions struct {
	IfEqual Generation
}

// ListOptions parameterizes List.
type ListOptions struct {
	StripPrefixLength int
}

// ReadResultKind enumerates the four possible shapes of a ReadResult.
type ReadResultKind int

const (
	// ReadValue means the object was found and its bytes are in ReadResult.Value.
	ReadValue ReadResultKind = iota
	// ReadMissing means the object does not exist.
	ReadMissing
	// ReadConditionUnsatisfied means an IfEqual precondition failed.
	ReadConditionUnsatisfied
	// ReadUnchanged means IfNotEqual matched (the object still has that generation).
	ReadUnchanged
)

// ReadResult is the outcome of a Read call.
type ReadResult struct {
	Kind       ReadResultKind
	Value      []byte
	Generation Generation
	Timestamp  time.Time
}

// TimestampedGeneration pairs a generation with the time it was observed,
// the outcome shape for Write/Delete.
type TimestampedGeneration struct {
	Generation Generation
	Timestamp  time.Time
}
