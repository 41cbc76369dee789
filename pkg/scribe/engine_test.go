package scribe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/scribe/pkg/config"
	"github.com/cuemby/scribe/pkg/redact"
	"github.com/cuemby/scribe/pkg/sink"
	"github.com/cuemby/scribe/pkg/trace"
	"github.com/cuemby/scribe/pkg/types"
)

// newTestEngine builds an engine over a memory sink. Closing the
// engine drains the pipeline, so tests emit, close, then assert.
func newTestEngine(t *testing.T, mutate func(*config.Config)) (*Engine, *sink.MemorySink) {
	t.Helper()
	cfg := config.Default()
	cfg.LogVariableChanges = true
	if mutate != nil {
		mutate(cfg)
	}
	mem := sink.NewMemorySink(types.SinkConfig{Name: "mem"})
	e, err := NewWithSinks(cfg, mem)
	require.NoError(t, err)
	return e, mem
}

func TestEmitDelivers(t *testing.T) {
	e, mem := newTestEngine(t, nil)

	e.Info(context.Background(), "orders", "created", map[string]any{"order_id": 42})
	require.NoError(t, e.Close())

	events := mem.Events()
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, types.LevelInfo, ev.Level)
	assert.Equal(t, types.CategoryGeneral, ev.Category)
	assert.Equal(t, "orders", ev.Logger)
	assert.Equal(t, "created", ev.Message)
	assert.False(t, ev.Timestamp.IsZero())
	assert.NotZero(t, ev.ThreadID)
	assert.NotZero(t, ev.ProcessID)
}

func TestEmitRedactsFields(t *testing.T) {
	e, mem := newTestEngine(t, nil)

	e.Info(context.Background(), "auth", "login", map[string]any{
		"user":     "alice",
		"password": "hunter2",
	})
	require.NoError(t, e.Close())

	events := mem.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Fields["user"])
	assert.Equal(t, redact.Mask, events[0].Fields["password"])
}

func TestEmitRedactsMessage(t *testing.T) {
	e, mem := newTestEngine(t, nil)

	e.Info(context.Background(), "mail", "sent to bob@example.com", nil)
	require.NoError(t, e.Close())

	events := mem.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "sent to ***.com", events[0].Message)
}

func TestLevelGate(t *testing.T) {
	e, mem := newTestEngine(t, func(c *config.Config) { c.Level = "warning" })

	ctx := context.Background()
	e.Debug(ctx, "x", "debug msg", nil)
	e.Info(ctx, "x", "info msg", nil)
	e.Warning(ctx, "x", "warn msg", nil)
	require.NoError(t, e.Close())

	events := mem.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "warn msg", events[0].Message)
}

func TestTraceStamping(t *testing.T) {
	e, mem := newTestEngine(t, nil)

	tc := e.Trace()
	span := tc.BeginSpan("handler")
	ctx := trace.NewContext(context.Background(), tc)

	e.Info(ctx, "handler", "working", nil)
	tc.EndSpan(span, nil)
	require.NoError(t, e.Close())

	events := mem.Events()
	require.Len(t, events, 1)
	assert.Equal(t, tc.TraceID(), events[0].TraceID)
	assert.Equal(t, span.ID, events[0].SpanID)
}

func TestErrorAddsField(t *testing.T) {
	e, mem := newTestEngine(t, nil)

	e.Error(context.Background(), "db", "query failed", assert.AnError, nil)
	require.NoError(t, e.Close())

	events := mem.Events()
	require.Len(t, events, 1)
	assert.Equal(t, types.LevelError, events[0].Level)
	assert.Contains(t, events[0].Fields["error"], "assert.AnError")
}

func TestNewWritesDefaultFiles(t *testing.T) {
	cfg := config.Default()
	cfg.LogDir = t.TempDir()

	e, err := New(cfg)
	require.NoError(t, err)

	e.Info(context.Background(), "orders", "created", nil)
	e.Warning(context.Background(), "orders", "inventory low", nil)
	require.NoError(t, e.Close())

	main, err := os.ReadFile(filepath.Join(cfg.LogDir, "scribe.log"))
	require.NoError(t, err)
	assert.Contains(t, string(main), "logging initialized")
	assert.Contains(t, string(main), "created")
	assert.Contains(t, string(main), "logging shutting down")

	dbg, err := os.ReadFile(filepath.Join(cfg.LogDir, "debug.log"))
	require.NoError(t, err)
	assert.Contains(t, string(dbg), "created")

	// error.log starts at warning, not error.
	errlog, err := os.ReadFile(filepath.Join(cfg.LogDir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errlog), "inventory low")
	assert.NotContains(t, string(errlog), "created")
}

func TestDisabledEngine(t *testing.T) {
	cfg := config.Default()
	cfg.Enabled = false

	e, err := New(cfg)
	require.NoError(t, err)

	e.Info(context.Background(), "x", "ignored", nil)
	assert.NoError(t, e.Close())
}

func TestEmitAfterClose(t *testing.T) {
	e, mem := newTestEngine(t, nil)
	require.NoError(t, e.Close())

	e.Info(context.Background(), "x", "late", nil)
	assert.Equal(t, 0, mem.Len())
}

func TestStrictTraceFromEngine(t *testing.T) {
	e, _ := newTestEngine(t, func(c *config.Config) { c.Strict = true })
	defer e.Close()

	tc := e.Trace()
	tc.BeginSpan("open")

	assert.Panics(t, func() {
		tc.EndSpan(&trace.Span{ID: "bogus"}, nil)
	})
}

func TestGid(t *testing.T) {
	if gid() == 0 {
		t.Error("gid() = 0, want the current goroutine id")
	}

	a := gid()
	ch := make(chan uint64)
	go func() { ch <- gid() }()
	if b := <-ch; a == b {
		t.Error("two goroutines reported the same id")
	}
}
