// Package tracer provides a lightweight tracing abstraction for outbound calls.
//
// The search index client and the streaming proxy emit spans through this interface
// without depending directly on OpenTelemetry APIs.
//
// Implementations:
//   - NoopTracer: for tests
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording any error that occurred.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans for distributed tracing.
// Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span with the given name and attributes.
	//
	// Example:
	//   ctx, span := tr.Start(ctx, tracer.SpanSearchScroll,
	//       tracer.String(tracer.AttrIndex, "meny-stores"),
	//   )
	//   defer span.End(err)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an int attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashMemberID returns a short SHA-256 prefix of a member id so traces can be
// correlated without carrying the id itself.
func HashMemberID(memberID string) string {
	if memberID == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(memberID))
	return hex.EncodeToString(hash[:8])
}

// Span names.
const (
	SpanSearchGet     = "search.get"
	SpanSearchMget    = "search.mget"
	SpanSearchSearch  = "search.search"
	SpanSearchScroll  = "search.scroll"
	SpanSearchSuggest = "search.suggest"
	SpanSearchWrite   = "search.write"
	SpanSearchHealth  = "search.health"
	SpanProxyCall     = "proxy.call"
	SpanStoreStatus   = "stores.status"
)

// Attribute keys.
const (
	AttrIndex       = "search.index"
	AttrDocID       = "search.doc_id"
	AttrHits        = "search.hits"
	AttrPages       = "search.pages"
	AttrTotal       = "search.total"
	AttrMethod      = "http.method"
	AttrTarget      = "proxy.target"
	AttrAuthzClass  = "proxy.authorization_class"
	AttrStatus      = "http.status_code"
	AttrMemberHash  = "member.hash"
	AttrStatusCode  = "store.status_code"
	AttrBytesCopied = "proxy.bytes"
)

// Event names.
const (
	EventScrollPage    = "scroll.page"
	EventScrollCleared = "scroll.cleared"
)
