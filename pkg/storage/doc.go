// Package storage persists snippets for the demo service.
//
// The Store interface keeps callers independent of the backing engine;
// BoltStore is the BoltDB implementation, holding JSON-encoded
// snippets in a single bucket. Instrumentation lives one layer up in
// pkg/dbtrack, which wraps any Store.
package storage
