package httpmw

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/cuemby/scribe/pkg/perf"
	"github.com/cuemby/scribe/pkg/scribe"
	"github.com/cuemby/scribe/pkg/trace"
	"github.com/cuemby/scribe/pkg/types"
)

// responseWriter captures the status code and body size, and stamps
// the response-time header at the last moment it is still possible.
type responseWriter struct {
	http.ResponseWriter
	start        time.Time
	status       int
	bytesWritten int64
	wroteHeader  bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status
	w.Header().Set("X-Response-Time", time.Since(w.start).String())
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

// Middleware instruments every request: a trace with a root span, the
// X-Trace-ID response header, start and end events in the request log,
// panic capture, and a performance event when the request runs past
// the slow-request threshold.
func Middleware(engine *scribe.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc := engine.Trace()
			ctx := trace.NewContext(r.Context(), tc)
			span := tc.BeginSpan(r.Method + " " + r.URL.Path)

			w.Header().Set("X-Trace-ID", tc.TraceID())
			rw := &responseWriter{ResponseWriter: w, start: time.Now(), status: http.StatusOK}

			engine.Emit(ctx, types.LogEvent{
				Level:    types.LevelInfo,
				Category: types.CategoryRequest,
				Logger:   "http",
				Message:  fmt.Sprintf("--> %s %s", r.Method, r.URL.Path),
				Fields: map[string]any{
					"method":     r.Method,
					"path":       r.URL.Path,
					"query":      r.URL.RawQuery,
					"remote":     r.RemoteAddr,
					"user_agent": r.UserAgent(),
				},
			})

			defer func() {
				elapsed := time.Since(rw.start)

				// Spans the handler forgot to close; EndSpan on the
				// root abandons them, so record names first. When the
				// client went away, close them with the cancellation
				// cause instead, innermost first.
				var leaked []string
				open := tc.OpenSpans()
				for _, s := range open {
					if s != span {
						leaked = append(leaked, s.Name)
					}
				}
				if cause := context.Cause(r.Context()); cause != nil {
					for i := len(open) - 1; i >= 0; i-- {
						if open[i] != span {
							tc.EndSpan(open[i], cause)
						}
					}
				}

				if rec := recover(); rec != nil {
					engine.Exception(ctx, "http",
						fmt.Sprintf("panic handling %s %s", r.Method, r.URL.Path),
						rec, debug.Stack())
					tc.EndSpan(span, fmt.Errorf("panic: %v", rec))
					finish(engine, ctx, tc, r, http.StatusInternalServerError, rw.bytesWritten, elapsed, leaked)
					if !rw.wroteHeader {
						http.Error(w, "internal server error", http.StatusInternalServerError)
					}
					return
				}

				tc.EndSpan(span, statusErr(rw.status))
				finish(engine, ctx, tc, r, rw.status, rw.bytesWritten, elapsed, leaked)
			}()

			next.ServeHTTP(rw, r.WithContext(ctx))
		})
	}
}

// finish emits the request-end event, the slow-request report, and the
// Prometheus observation, then closes the trace.
func finish(engine *scribe.Engine, ctx context.Context, tc *trace.Context, r *http.Request, status int, bytes int64, elapsed time.Duration, leaked []string) {
	queries, queryTime := tc.QueryStats()

	fields := map[string]any{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status":      status,
		"bytes":       bytes,
		"duration_ms": elapsed.Milliseconds(),
		"queries":     queries,
		"query_ms":    queryTime.Milliseconds(),
	}

	engine.Emit(ctx, types.LogEvent{
		Level:    levelFor(status),
		Category: types.CategoryRequest,
		Logger:   "http",
		Message:  fmt.Sprintf("<-- %s %s %d (%v)", r.Method, r.URL.Path, status, elapsed),
		Fields:   fields,
	})

	threshold := engine.Config().SlowRequestThreshold()
	if threshold > 0 && elapsed >= threshold {
		engine.Emit(ctx, types.LogEvent{
			Level:    types.LevelWarning,
			Category: types.CategoryPerformance,
			Logger:   "http",
			Message:  fmt.Sprintf("slow request %s %s took %v (threshold %v)", r.Method, r.URL.Path, elapsed, threshold),
			Fields:   fields,
		})
	}

	engine.Stats().Record("http."+r.Method+" "+r.URL.Path, elapsed, threshold > 0 && elapsed >= threshold)
	perf.RequestDuration.WithLabelValues(r.Method, strconv.Itoa(status)).Observe(elapsed.Seconds())

	for _, s := range tc.End() {
		leaked = append(leaked, s.Name)
	}
	if len(leaked) > 0 {
		engine.Warning(ctx, "http", "spans left open at end of request", map[string]any{
			"spans": leaked,
		})
	}
}

func levelFor(status int) types.Level {
	switch {
	case status >= 500:
		return types.LevelError
	case status >= 400:
		return types.LevelWarning
	default:
		return types.LevelInfo
	}
}

// statusErr maps an HTTP status onto the span result.
func statusErr(status int) error {
	if status >= 500 {
		return fmt.Errorf("http %d", status)
	}
	return nil
}
