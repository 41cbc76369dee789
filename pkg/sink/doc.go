/*
Package sink moves log events from the emitting goroutine to their
destinations without blocking the caller.

# Architecture

	┌───────────────────── EVENT PIPELINE ─────────────────────┐
	│                                                            │
	│  Emit ──► Router.Publish (non-blocking)                    │
	│             │                                              │
	│             ├──► queue ──► writer ──► FileSink  scribe.log │
	│             ├──► queue ──► writer ──► FileSink  error.log  │
	│             ├──► queue ──► writer ──► FileSink  *.json.log │
	│             └──► queue ──► writer ──► StderrSink (fallback)│
	│                                                            │
	│  Rotator (background): gzip rotated backups, prune old     │
	│                                                            │
	└────────────────────────────────────────────────────────────┘

Every sink has a bounded queue and a dedicated writer goroutine. A full
queue never blocks the application: events below warning are dropped,
warning and above evict the oldest queued event instead. Drops and
write failures are counted in the perf package and reported on the
fallback channel, so the pipeline can degrade without ever feeding its
own failures back through itself.

FileSink rotates the live file inline by renaming it to the next
numbered backup; compression and pruning of backups run on the
Rotator's timer, off the write path.

MemorySink captures events for tests; StderrSink is the destination of
last resort when the log directory is unusable.
*/
package sink
