/*
Package types defines the core data structures shared across Scribe.

This package contains the fundamental types of the observability pipeline:
severity levels, event categories, the LogEvent record delivered to sinks,
sink and rotation configuration, and performance samples. Every other
package depends on types; types depends on nothing but the standard
library.

# Core Types

Events:
  - Level: debug, info, warning, error (ordered, filterable)
  - Category: request, database, performance, security, exceptions, general
  - LogEvent: the immutable record routed to sinks

Sinks:
  - SinkConfig: name, category filter, minimum level, path, format
  - Format: line-oriented text or one JSON object per line
  - RotationPolicy: size trigger, retention count, compression flag

Performance:
  - PerformanceSample: one measured duration compared to its threshold

# Usage

	cfg := types.SinkConfig{
		Name:     "errors",
		MinLevel: types.LevelWarning,
		Path:     "/var/log/app/error.log",
		Format:   types.FormatLine,
		Rotation: types.RotationPolicy{MaxBytes: 10 << 20, BackupCount: 20, Compress: true},
	}
	if cfg.Matches(ev) {
		// deliver ev to this sink
	}

LogEvent.Fields must be sanitized before construction; see the redact
package. Sinks treat events as read-only.
*/
package types
