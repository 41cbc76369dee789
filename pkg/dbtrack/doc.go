// Package dbtrack instruments a storage.Store.
//
// Every call is bracketed with database-category events carrying the
// redacted parameters and duration, counted against the current trace,
// and checked against the slow-query threshold. Not-found results are
// normal outcomes, not errors; real failures are logged once at error
// level and returned unchanged.
package dbtrack
