// Package redact sanitizes field values before they reach any sink.
//
// Sanitization runs on the caller's goroutine so that sensitive data
// never crosses into the async pipeline. Three rule kinds are
// supported:
//
//   - field-name substring matches (case-insensitive)
//   - field-name regular expressions
//   - content regular expressions scanned over string values
//
// Field-name rules take precedence over content rules; the first
// matching field-name rule wins. Matched values are fully masked,
// partially masked keeping the last four characters, or dropped from
// the output.
//
// Redact also normalizes values for JSON encoding: structs become maps
// of their exported fields, cycles are replaced with a "<cycle>"
// marker, byte slices are summarized by length, and long strings are
// truncated to a fixed bound. The output is stable: redacting an
// already redacted value returns it unchanged.
package redact
