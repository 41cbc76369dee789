package dbtrack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/scribe/pkg/perf"
	"github.com/cuemby/scribe/pkg/scribe"
	"github.com/cuemby/scribe/pkg/storage"
	"github.com/cuemby/scribe/pkg/trace"
	"github.com/cuemby/scribe/pkg/types"
)

// Tracked wraps a storage.Store so every call lands in the database
// log: start and end events, duration, redacted parameters, and a
// warning when a call crosses the slow-query threshold. Failed calls
// are reported but never retried.
type Tracked struct {
	inner  storage.Store
	engine *scribe.Engine
}

// Wrap decorates store with instrumentation through engine.
func Wrap(store storage.Store, engine *scribe.Engine) *Tracked {
	return &Tracked{inner: store, engine: engine}
}

func (t *Tracked) CreateSnippet(ctx context.Context, s *storage.Snippet) error {
	return t.track(ctx, "create_snippet", map[string]any{"snippet": s}, func() (int, error) {
		return 1, t.inner.CreateSnippet(ctx, s)
	})
}

func (t *Tracked) GetSnippet(ctx context.Context, id string) (*storage.Snippet, error) {
	var out *storage.Snippet
	err := t.track(ctx, "get_snippet", map[string]any{"id": id}, func() (int, error) {
		var err error
		out, err = t.inner.GetSnippet(ctx, id)
		return 1, err
	})
	return out, err
}

func (t *Tracked) ListSnippets(ctx context.Context) ([]*storage.Snippet, error) {
	var out []*storage.Snippet
	err := t.track(ctx, "list_snippets", nil, func() (int, error) {
		var err error
		out, err = t.inner.ListSnippets(ctx)
		return len(out), err
	})
	return out, err
}

func (t *Tracked) DeleteSnippet(ctx context.Context, id string) error {
	return t.track(ctx, "delete_snippet", map[string]any{"id": id}, func() (int, error) {
		return 1, t.inner.DeleteSnippet(ctx, id)
	})
}

// Close closes the underlying store. Shutdown is not a query; it is
// not logged as one.
func (t *Tracked) Close() error {
	return t.inner.Close()
}

func (t *Tracked) track(ctx context.Context, op string, params map[string]any, fn func() (int, error)) error {
	t.engine.Emit(ctx, types.LogEvent{
		Level:    types.LevelDebug,
		Category: types.CategoryDatabase,
		Logger:   "store",
		Message:  "BEGIN " + op,
		Fields:   params,
	})

	start := time.Now()
	rows, err := fn()
	elapsed := time.Since(start)

	perf.QueryDuration.Observe(elapsed.Seconds())
	if tc, ok := trace.FromContext(ctx); ok {
		tc.RecordQuery(elapsed)
	}

	threshold := t.engine.Config().SlowQueryThreshold()
	slow := threshold > 0 && elapsed >= threshold
	t.engine.Stats().Record("db."+op, elapsed, slow)

	fields := map[string]any{
		"operation":   op,
		"duration_ms": elapsed.Milliseconds(),
	}
	if err == nil {
		fields["rows"] = rows
	}

	switch {
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		fields["error"] = err.Error()
		t.engine.Emit(ctx, types.LogEvent{
			Level:    types.LevelError,
			Category: types.CategoryDatabase,
			Logger:   "store",
			Message:  fmt.Sprintf("FAILED %s: %v", op, err),
			Fields:   fields,
		})
	case slow:
		fields["threshold_ms"] = threshold.Milliseconds()
		t.engine.Emit(ctx, types.LogEvent{
			Level:    types.LevelWarning,
			Category: types.CategoryDatabase,
			Logger:   "store",
			Message:  fmt.Sprintf("SLOW %s took %v", op, elapsed),
			Fields:   fields,
		})
	default:
		if err != nil {
			fields["result"] = "not_found"
		}
		t.engine.Emit(ctx, types.LogEvent{
			Level:    types.LevelDebug,
			Category: types.CategoryDatabase,
			Logger:   "store",
			Message:  "END " + op,
			Fields:   fields,
		})
	}

	return err
}
