/*
Package perf provides Prometheus metrics and in-memory performance
aggregation for the logging pipeline.

Two complementary views are maintained:

	┌──────────────── PERFORMANCE TRACKING ────────────────┐
	│                                                        │
	│  ┌──────────────────────────────────────┐            │
	│  │      Prometheus Registry              │            │
	│  │  - Global DefaultRegistry             │            │
	│  │  - MustRegister at package init       │            │
	│  │  - Scraped via Handler()              │            │
	│  └──────────────────┬───────────────────┘            │
	│                     │                                  │
	│  ┌──────────────────▼───────────────────┐            │
	│  │          Stats (in-memory)            │            │
	│  │  - Per-operation count/min/max/avg    │            │
	│  │  - p95 from a bounded sample ring     │            │
	│  │  - Snapshot + Reset per stats window  │            │
	│  └──────────────────────────────────────┘            │
	│                                                        │
	└────────────────────────────────────────────────────────┘

Prometheus gives the long-term externally scraped view; Stats feeds the
periodic human-readable summary events written to the performance log.
Every Record call updates both.

# Usage

	stats := perf.NewStats()
	timer := perf.NewTimer()
	doWork()
	stats.Record("process_order", timer.Duration(), false)

	for _, op := range stats.Snapshot() {
		fmt.Printf("%s: n=%d p95=%v\n", op.Operation, op.Count, op.P95)
	}
	stats.Reset()
*/
package perf
