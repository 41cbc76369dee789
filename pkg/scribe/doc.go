/*
Package scribe is the entry point of the logging pipeline: it builds
events, redacts them, stamps trace and process identity on them, and
hands them to the sink router.

# Architecture

	┌─────────────────────── ENGINE ────────────────────────┐
	│                                                         │
	│  caller goroutine                 background            │
	│                                                         │
	│  Func / Block / Emit                                    │
	│     │                                                   │
	│     ├─ level gate                                       │
	│     ├─ redaction (pkg/redact)                           │
	│     ├─ trace stamp (pkg/trace)                          │
	│     ├─ goroutine + process id                           │
	│     │                                                   │
	│     └─► Router.Publish ──► sink queues ──► log files    │
	│                                                         │
	│  statsLoop: per-window performance summaries            │
	│  Rotator:   compress + prune rotated backups            │
	│                                                         │
	└─────────────────────────────────────────────────────────┘

Everything sensitive happens on the caller's goroutine before the
event crosses into the async pipeline; everything slow happens after.

# Usage

	cfg := config.Default()
	eng, err := scribe.New(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	tc := eng.Trace()
	ctx := trace.NewContext(context.Background(), tc)

	err = scribe.Func(ctx, eng, "process_order", func(ctx context.Context) error {
		eng.Info(ctx, "orders", "processing", map[string]any{"order_id": 42})
		return nil
	})

A disabled engine (Enabled: false) accepts every call and does
nothing, so instrumentation can stay in place in production builds.
*/
package scribe
