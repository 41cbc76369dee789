package dbtrack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/scribe/pkg/config"
	"github.com/cuemby/scribe/pkg/scribe"
	"github.com/cuemby/scribe/pkg/sink"
	"github.com/cuemby/scribe/pkg/storage"
	"github.com/cuemby/scribe/pkg/trace"
	"github.com/cuemby/scribe/pkg/types"
)

func newTracked(t *testing.T) (*Tracked, *sink.MemorySink, *scribe.Engine) {
	t.Helper()
	mem := sink.NewMemorySink(types.SinkConfig{Name: "mem"})
	engine, err := scribe.NewWithSinks(config.Default(), mem)
	require.NoError(t, err)

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)

	tracked := Wrap(store, engine)
	t.Cleanup(func() { tracked.Close() })
	return tracked, mem, engine
}

func TestTrackedRoundTrip(t *testing.T) {
	tracked, mem, engine := newTracked(t)
	ctx := context.Background()

	err := tracked.CreateSnippet(ctx, &storage.Snippet{ID: "s1", Title: "hello"})
	require.NoError(t, err)

	got, err := tracked.GetSnippet(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Title)

	require.NoError(t, engine.Close())

	var begins, ends int
	for _, ev := range mem.Events() {
		require.Equal(t, types.CategoryDatabase, ev.Category)
		switch {
		case ev.Message == "BEGIN create_snippet" || ev.Message == "BEGIN get_snippet":
			begins++
		case ev.Message == "END create_snippet" || ev.Message == "END get_snippet":
			ends++
			assert.Contains(t, ev.Fields, "duration_ms")
		}
	}
	assert.Equal(t, 2, begins)
	assert.Equal(t, 2, ends)
}

func TestTrackedListReportsRowCount(t *testing.T) {
	tracked, mem, engine := newTracked(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, tracked.CreateSnippet(ctx, &storage.Snippet{ID: id}))
	}
	_, err := tracked.ListSnippets(ctx)
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	var found bool
	for _, ev := range mem.Events() {
		if ev.Message == "END list_snippets" {
			found = true
			assert.Equal(t, 3, ev.Fields["rows"])
		}
	}
	assert.True(t, found, "no END list_snippets event")
}

func TestTrackedRecordsQueriesOnTrace(t *testing.T) {
	tracked, _, engine := newTracked(t)
	defer engine.Close()

	tc := engine.Trace()
	ctx := trace.NewContext(context.Background(), tc)

	_ = tracked.CreateSnippet(ctx, &storage.Snippet{ID: "q1"})
	_, _ = tracked.GetSnippet(ctx, "q1")

	count, total := tc.QueryStats()
	assert.Equal(t, 2, count)
	assert.Greater(t, total, time.Duration(0))
}

func TestTrackedNotFoundIsNotAnError(t *testing.T) {
	tracked, mem, engine := newTracked(t)

	_, err := tracked.GetSnippet(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, engine.Close())

	for _, ev := range mem.Events() {
		assert.NotEqual(t, types.LevelError, ev.Level,
			"not-found logged as error: %s", ev.Message)
		if ev.Message == "END get_snippet" {
			assert.Equal(t, "not_found", ev.Fields["result"])
		}
	}
}

func TestTrackedSlowQueryWarning(t *testing.T) {
	mem := sink.NewMemorySink(types.SinkConfig{Name: "mem"})
	cfg := config.Default()
	cfg.SlowQueryThresholdMs = 1
	engine, err := scribe.NewWithSinks(cfg, mem)
	require.NoError(t, err)

	tracked := Wrap(&stubStore{delay: 5 * time.Millisecond}, engine)

	_, _ = tracked.ListSnippets(context.Background())
	require.NoError(t, engine.Close())

	var warned bool
	for _, ev := range mem.Events() {
		if ev.Level == types.LevelWarning && ev.Category == types.CategoryDatabase {
			warned = true
			assert.Contains(t, ev.Message, "SLOW list_snippets")
		}
	}
	assert.True(t, warned, "no slow-query warning emitted")
}

func TestTrackedFailureLoggedOnce(t *testing.T) {
	mem := sink.NewMemorySink(types.SinkConfig{Name: "mem"})
	engine, err := scribe.NewWithSinks(config.Default(), mem)
	require.NoError(t, err)

	boom := errors.New("disk full")
	tracked := Wrap(&stubStore{err: boom}, engine)

	err = tracked.CreateSnippet(context.Background(), &storage.Snippet{ID: "x"})
	require.ErrorIs(t, err, boom)
	require.NoError(t, engine.Close())

	var failures int
	for _, ev := range mem.Events() {
		if ev.Level == types.LevelError {
			failures++
			assert.Contains(t, ev.Message, "FAILED create_snippet")
		}
	}
	assert.Equal(t, 1, failures)
}

// stubStore fails or delays on demand.
type stubStore struct {
	delay time.Duration
	err   error
}

func (s *stubStore) CreateSnippet(ctx context.Context, sn *storage.Snippet) error {
	time.Sleep(s.delay)
	return s.err
}

func (s *stubStore) GetSnippet(ctx context.Context, id string) (*storage.Snippet, error) {
	time.Sleep(s.delay)
	return nil, s.err
}

func (s *stubStore) ListSnippets(ctx context.Context) ([]*storage.Snippet, error) {
	time.Sleep(s.delay)
	return nil, s.err
}

func (s *stubStore) DeleteSnippet(ctx context.Context, id string) error {
	time.Sleep(s.delay)
	return s.err
}

func (s *stubStore) Close() error { return nil }
