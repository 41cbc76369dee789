package httpmw

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/scribe/pkg/config"
	"github.com/cuemby/scribe/pkg/scribe"
	"github.com/cuemby/scribe/pkg/sink"
	"github.com/cuemby/scribe/pkg/trace"
	"github.com/cuemby/scribe/pkg/types"
)

func newStack(t *testing.T, mutate func(*config.Config), handler http.Handler) (*scribe.Engine, *sink.MemorySink, http.Handler) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	mem := sink.NewMemorySink(types.SinkConfig{Name: "mem"})
	engine, err := scribe.NewWithSinks(cfg, mem)
	require.NoError(t, err)
	return engine, mem, Middleware(engine)(handler)
}

func requestEvents(events []types.LogEvent) []types.LogEvent {
	var out []types.LogEvent
	for _, ev := range events {
		if ev.Category == types.CategoryRequest {
			out = append(out, ev)
		}
	}
	return out
}

func TestMiddlewareHeadersAndEvents(t *testing.T) {
	engine, mem, h := newStack(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snippets?page=2", nil))
	require.NoError(t, engine.Close())

	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Response-Time"))
	assert.Equal(t, http.StatusOK, rec.Code)

	reqs := requestEvents(mem.Events())
	require.Len(t, reqs, 2)
	assert.Equal(t, "--> GET /snippets", reqs[0].Message)
	assert.Equal(t, "page=2", reqs[0].Fields["query"])
	assert.Contains(t, reqs[1].Message, "<-- GET /snippets 200")
	assert.Equal(t, types.LevelInfo, reqs[1].Level)
	assert.EqualValues(t, 5, reqs[1].Fields["bytes"])

	// Both events the same trace.
	assert.NotEmpty(t, reqs[0].TraceID)
	assert.Equal(t, reqs[0].TraceID, reqs[1].TraceID)
	assert.Equal(t, rec.Header().Get("X-Trace-ID"), reqs[0].TraceID)
}

func TestMiddlewareStatusLevels(t *testing.T) {
	tests := []struct {
		status int
		want   types.Level
	}{
		{200, types.LevelInfo},
		{302, types.LevelInfo},
		{404, types.LevelWarning},
		{500, types.LevelError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			engine, mem, h := newStack(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
			require.NoError(t, engine.Close())

			reqs := requestEvents(mem.Events())
			require.Len(t, reqs, 2)
			assert.Equal(t, tt.want, reqs[1].Level)
			assert.EqualValues(t, tt.status, reqs[1].Fields["status"])
		})
	}
}

func TestMiddlewarePanic(t *testing.T) {
	engine, mem, h := newStack(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, engine.Close())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var exceptions, errEnds int
	for _, ev := range mem.Events() {
		if ev.Category == types.CategoryExceptions {
			exceptions++
			assert.Contains(t, ev.Fields["cause"], "handler exploded")
			assert.Contains(t, ev.Fields["stack"], "goroutine")
		}
		if ev.Category == types.CategoryRequest && ev.Level == types.LevelError {
			errEnds++
		}
	}
	assert.Equal(t, 1, exceptions)
	assert.Equal(t, 1, errEnds)
}

func TestMiddlewareSlowRequest(t *testing.T) {
	engine, mem, h := newStack(t,
		func(c *config.Config) { c.SlowRequestThresholdMs = 1 },
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(5 * time.Millisecond)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	require.NoError(t, engine.Close())

	var slow bool
	for _, ev := range mem.Events() {
		if ev.Category == types.CategoryPerformance {
			slow = true
			assert.Contains(t, ev.Message, "slow request GET /slow")
		}
	}
	assert.True(t, slow, "no slow-request event")
}

func TestMiddlewareOrphanSpans(t *testing.T) {
	engine, mem, h := newStack(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, ok := trace.FromContext(r.Context())
		if !ok {
			t.Error("no trace on request context")
			return
		}
		tc.BeginSpan("leaked")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leak", nil))
	require.NoError(t, engine.Close())

	var warned bool
	for _, ev := range mem.Events() {
		if ev.Message == "spans left open at end of request" {
			warned = true
		}
	}
	assert.True(t, warned, "leaked span not reported")
}

func TestMiddlewareCanceledRequestClosesSpans(t *testing.T) {
	var leaked *trace.Span
	engine, mem, h := newStack(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, _ := trace.FromContext(r.Context())
		leaked = tc.BeginSpan("work")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/canceled", nil).WithContext(ctx)
	cancel()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.NoError(t, engine.Close())

	require.NotNil(t, leaked)
	assert.Equal(t, trace.StatusError, leaked.Status)
	assert.ErrorIs(t, leaked.Err, context.Canceled)

	var warned bool
	for _, ev := range mem.Events() {
		if ev.Message == "spans left open at end of request" {
			warned = true
		}
	}
	assert.True(t, warned, "leaked span not reported")
}

func TestMiddlewareTraceAvailableToHandler(t *testing.T) {
	var seen string
	engine, _, h := newStack(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tc, ok := trace.FromContext(r.Context()); ok {
			seen = tc.TraceID()
		}
	}))
	defer engine.Close()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen, "handler saw no trace context")
	assert.Equal(t, rec.Header().Get("X-Trace-ID"), seen)
}
