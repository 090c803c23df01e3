package s3

import (
	"strings"

	"github.com/code4manishk/tensorstore/kvstore"
)

// stripETag removes the surrounding quotes S3 always sends on an ETag
// header value.
func stripETag(etag string) string {
	return strings.Trim(etag, "\"")
}

// generationFromETag builds a concrete Generation from a response's raw ETag
// header, stripping its quotes; an empty header yields Unknown.
func generationFromETag(etag string) kvstore.Generation {
	if etag == "" {
		return kvstore.Unknown
	}
	return kvstore.FromValue(stripETag(etag))
}

// ifMatchHeader encodes g as an If-Match value, per the wire rule: concrete
// -> quoted ETag, NoValue -> `""`, Unknown -> header omitted (ok=false).
func ifMatchHeader(g kvstore.Generation) (value string, ok bool) {
	return conditionalHeader(g)
}

// ifNoneMatchHeader encodes g as an If-None-Match value under the same wire
// rule as ifMatchHeader.
func ifNoneMatchHeader(g kvstore.Generation) (value string, ok bool) {
	return conditionalHeader(g)
}

func conditionalHeader(g kvstore.Generation) (value string, ok bool) {
	if g.IsUnknown() {
		return "", false
	}
	if g.IsNoValue() {
		return `""`, true
	}
	v, _ := g.Value()
	return `"` + v + `"`, true
}
