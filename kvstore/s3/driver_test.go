package s3

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/code4manishk/tensorstore/kvstore"
)

func newTestDriver(t *testing.T, server *httptest.Server) *Driver {
	t.Helper()
	os.Setenv("AWS_ACCESS_KEY_ID", "test")
	os.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	cfg := Config{
		Bucket:   "kvstore-test",
		Endpoint: server.URL,
		Region:   "us-east-1",
		Insecure: true,
		Retries:  RetryPolicy{MaxRetries: 2, InitialDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond},
	}
	d, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open driver: %v", err)
	}
	return d
}

func TestOpenRejectsInvalidBucketName(t *testing.T) {
	cfg := Config{Bucket: "UPPER_case", Region: "us-east-1"}
	if _, err := Open(context.Background(), cfg, nil); !kvstore.Is(err, kvstore.InvalidArgumentKind) {
		t.Fatalf("expected InvalidArgumentKind, got %v", err)
	}
}

func TestOperationsRejectInvalidKeys(t *testing.T) {
	fake := newFakeS3()
	server := fake.server(t)
	defer server.Close()
	d := newTestDriver(t, server)
	ctx := context.Background()

	badKeys := []string{"", "a/../b", ".."}
	for _, key := range badKeys {
		if _, err := d.Read(ctx, key, kvstore.ReadOptions{}); !kvstore.Is(err, kvstore.InvalidArgumentKind) {
			t.Fatalf("Read(%q): expected InvalidArgumentKind, got %v", key, err)
		}
		if _, err := d.Write(ctx, key, []byte("v"), kvstore.WriteOptions{}); !kvstore.Is(err, kvstore.InvalidArgumentKind) {
			t.Fatalf("Write(%q): expected InvalidArgumentKind, got %v", key, err)
		}
		if _, err := d.Delete(ctx, key, kvstore.WriteOptions{}); !kvstore.Is(err, kvstore.InvalidArgumentKind) {
			t.Fatalf("Delete(%q): expected InvalidArgumentKind, got %v", key, err)
		}
	}
	if len(fake.requests) != 0 {
		t.Fatalf("expected no HTTP requests for rejected keys, got %d", len(fake.requests))
	}
}

func TestListRejectsInvalidPrefix(t *testing.T) {
	fake := newFakeS3()
	server := fake.server(t)
	defer server.Close()
	d := newTestDriver(t, server)

	stream := d.List(context.Background(), kvstore.KeyRange{InclusiveMin: "a/../b"}, kvstore.ListOptions{})
	for range stream.Entries {
	}
	if err := stream.Err(); !kvstore.Is(err, kvstore.InvalidArgumentKind) {
		t.Fatalf("expected InvalidArgumentKind, got %v", err)
	}
}

func TestBasicPutGet(t *testing.T) {
	fake := newFakeS3()
	server := fake.server(t)
	defer server.Close()
	d := newTestDriver(t, server)
	ctx := context.Background()

	wr, err := d.Write(ctx, "a/b", []byte("hello"), kvstore.WriteOptions{})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if wr.Generation.IsUnknown() {
		t.Fatalf("expected a non-unknown generation after write")
	}

	rr, err := d.Read(ctx, "a/b", kvstore.ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rr.Kind != kvstore.ReadValue || string(rr.Value) != "hello" {
		t.Fatalf("expected Value(hello), got kind=%v value=%q", rr.Kind, rr.Value)
	}
	if !rr.Generation.Equal(wr.Generation) {
		t.Fatalf("expected read generation to equal write generation")
	}
}

func TestConditionalPutObjectExists(t *testing.T) {
	fake := newFakeS3()
	server := fake.server(t)
	defer server.Close()
	d := newTestDriver(t, server)
	ctx := context.Background()

	if _, err := d.Write(ctx, "k", []byte("x"), kvstore.WriteOptions{}); err != nil {
		t.Fatalf("initial write: %v", err)
	}

	result, err := d.Write(ctx, "k", []byte("y"), kvstore.WriteOptions{IfEqual: kvstore.NoValue})
	if err != nil {
		t.Fatalf("conditional write: %v", err)
	}
	if !result.Generation.IsUnknown() {
		t.Fatalf("expected Unknown generation on precondition failure, got %v", result.Generation)
	}

	rr, err := d.Read(ctx, "k", kvstore.ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(rr.Value) != "x" {
		t.Fatalf("expected the original value to survive, got %q", rr.Value)
	}
}

func TestConditionalPutObjectAbsent(t *testing.T) {
	fake := newFakeS3()
	server := fake.server(t)
	defer server.Close()
	d := newTestDriver(t, server)
	ctx := context.Background()

	if _, err := d.Delete(ctx, "k", kvstore.WriteOptions{}); err != nil {
		t.Fatalf("pre-delete: %v", err)
	}

	wr, err := d.Write(ctx, "k", []byte("z"), kvstore.WriteOptions{IfEqual: kvstore.NoValue})
	if err != nil {
		t.Fatalf("conditional write on absent key: %v", err)
	}
	if wr.Generation.IsUnknown() {
		t.Fatalf("expected a concrete generation, got Unknown")
	}

	rr, err := d.Read(ctx, "k", kvstore.ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(rr.Value) != "z" {
		t.Fatalf("expected value z, got %q", rr.Value)
	}
}

func TestReadIfNoneMatchUnchanged(t *testing.T) {
	fake := newFakeS3()
	server := fake.server(t)
	defer server.Close()
	d := newTestDriver(t, server)
	ctx := context.Background()

	wr, err := d.Write(ctx, "k", []byte("q"), kvstore.WriteOptions{})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	rr, err := d.Read(ctx, "k", kvstore.ReadOptions{IfNotEqual: wr.Generation})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rr.Kind != kvstore.ReadUnchanged {
		t.Fatalf("expected Unchanged, got kind=%v", rr.Kind)
	}
	if !rr.Generation.Equal(wr.Generation) {
		t.Fatalf("expected returned generation to equal the write generation")
	}
}

func TestRetryThenSucceed(t *testing.T) {
	fake := newFakeS3()
	server := fake.server(t)
	defer server.Close()
	d := newTestDriver(t, server)
	ctx := context.Background()

	if _, err := d.Write(ctx, "k", []byte("v"), kvstore.WriteOptions{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	fake.queueStatus("GET", "/k", 503)
	fake.queueStatus("GET", "/k", 503)

	before := testutil.ToFloat64(d.rc.metrics.retries.WithLabelValues("read"))
	rr, err := d.Read(ctx, "k", kvstore.ReadOptions{})
	if err != nil {
		t.Fatalf("read after transient failures: %v", err)
	}
	if rr.Kind != kvstore.ReadValue || string(rr.Value) != "v" {
		t.Fatalf("expected Value(v), got kind=%v value=%q", rr.Kind, rr.Value)
	}
	after := testutil.ToFloat64(d.rc.metrics.retries.WithLabelValues("read"))
	if after-before != 2 {
		t.Fatalf("expected the retries counter to increment by 2, got %v", after-before)
	}
}

func TestRangeDelete(t *testing.T) {
	fake := newFakeS3()
	server := fake.server(t)
	defer server.Close()
	d := newTestDriver(t, server)
	ctx := context.Background()

	for _, k := range []string{"p/1", "p/2", "p/3", "q/1"} {
		if _, err := d.Write(ctx, k, []byte(k), kvstore.WriteOptions{}); err != nil {
			t.Fatalf("seed write %s: %v", k, err)
		}
	}

	if err := <-d.DeleteRange(ctx, kvstore.KeyRange{InclusiveMin: "p/", ExclusiveMax: "p/~"}); err != nil {
		t.Fatalf("delete range: %v", err)
	}

	remaining := collectKeys(t, d, kvstore.KeyRange{InclusiveMin: "p/", ExclusiveMax: "p/~"})
	if len(remaining) != 0 {
		t.Fatalf("expected no keys left under p/, got %v", remaining)
	}
	survivors := collectKeys(t, d, kvstore.KeyRange{InclusiveMin: "q/", ExclusiveMax: "q/~"})
	if len(survivors) != 1 || survivors[0] != "q/1" {
		t.Fatalf("expected q/1 to survive, got %v", survivors)
	}
}

func TestListEmptyRangeCompletesWithoutHTTP(t *testing.T) {
	fake := newFakeS3()
	server := fake.server(t)
	defer server.Close()
	d := newTestDriver(t, server)

	before := len(fake.requests)
	keys := collectKeys(t, d, kvstore.KeyRange{InclusiveMin: "z", ExclusiveMax: "a"})
	if len(keys) != 0 {
		t.Fatalf("expected no keys, got %v", keys)
	}
	if len(fake.requests) != before {
		t.Fatalf("expected no HTTP requests for an empty range, got %d new requests", len(fake.requests)-before)
	}
}

func TestListPagination(t *testing.T) {
	fake := newFakeS3()
	server := fake.server(t)
	defer server.Close()
	d := newTestDriver(t, server)
	ctx := context.Background()

	seeded := []string{"n/1", "n/2", "n/3", "n/4", "n/5"}
	for _, k := range seeded {
		if _, err := d.Write(ctx, k, []byte(k), kvstore.WriteOptions{}); err != nil {
			t.Fatalf("seed write %s: %v", k, err)
		}
	}

	keys := collectKeys(t, d, kvstore.KeyRange{InclusiveMin: "n/", ExclusiveMax: "n/~"})
	if len(keys) != len(seeded) {
		t.Fatalf("expected %d keys across multiple pages, got %v", len(seeded), keys)
	}
	for i, want := range seeded {
		if keys[i] != want {
			t.Fatalf("expected keys in order %v, got %v", seeded, keys)
		}
	}
}

func TestListStripsPrefix(t *testing.T) {
	fake := newFakeS3()
	server := fake.server(t)
	defer server.Close()
	d := newTestDriver(t, server)
	ctx := context.Background()

	if _, err := d.Write(ctx, "ns/key-a", []byte("v"), kvstore.WriteOptions{}); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	stream := d.List(ctx, kvstore.KeyRange{InclusiveMin: "ns/", ExclusiveMax: "ns/~"}, kvstore.ListOptions{StripPrefixLength: len("ns/")})
	var got []string
	for entry := range stream.Entries {
		got = append(got, entry.Key)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0] != "key-a" {
		t.Fatalf("expected [key-a], got %v", got)
	}
}

func collectKeys(t *testing.T, d *Driver, r kvstore.KeyRange) []string {
	t.Helper()
	stream := d.List(context.Background(), r, kvstore.ListOptions{})
	var keys []string
	for entry := range stream.Entries {
		keys = append(keys, entry.Key)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("list: %v", err)
	}
	return keys
}
