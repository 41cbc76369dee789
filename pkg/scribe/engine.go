package scribe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cuemby/scribe/pkg/config"
	"github.com/cuemby/scribe/pkg/log"
	"github.com/cuemby/scribe/pkg/perf"
	"github.com/cuemby/scribe/pkg/redact"
	"github.com/cuemby/scribe/pkg/sink"
	"github.com/cuemby/scribe/pkg/trace"
	"github.com/cuemby/scribe/pkg/types"
)

// Engine is the heart of the pipeline: it builds events, sanitizes
// them, stamps trace identity, and hands them to the router. One
// Engine serves the whole process.
type Engine struct {
	cfg      *config.Config
	minLevel types.Level
	redactor *redact.Redactor
	router   *sink.Router
	rotator  *sink.Rotator
	stats    *perf.Stats
	pid      int

	stopCh chan struct{}
	doneCh chan struct{}
	closed atomic.Bool

	// counter values at the last pipeline-health report, read only
	// from statsLoop.
	lastDropped  uint64
	lastFailures uint64

	banner bool // emit lifecycle events on startup and Close
}

// New builds an engine from cfg with the standard sink set under
// cfg.LogDir. If the log directory cannot be created the engine falls
// back to a stderr sink instead of failing, so the application never
// loses its logging because of a bad mount.
func New(cfg *config.Config) (*Engine, error) {
	level, err := cfg.ParsedLevel()
	if err != nil {
		return nil, err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		minLevel: level,
		redactor: redact.New(rules),
		stats:    perf.NewStats(),
		pid:      os.Getpid(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if !cfg.Enabled {
		e.closed.Store(true)
		close(e.doneCh)
		return e, nil
	}

	var sinks []sink.Sink
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		log.Fault("engine", err, "log dir unavailable, falling back to stderr")
		sinks = []sink.Sink{sink.NewStderrSink(types.SinkConfig{
			Name:     "stderr",
			MinLevel: level,
		})}
	} else {
		sinks = defaultSinks(cfg, level)
		var fileCfgs []types.SinkConfig
		for _, s := range sinks {
			fileCfgs = append(fileCfgs, s.Config())
		}
		e.rotator = sink.NewRotator(fileCfgs, time.Minute)
		e.rotator.Start()
	}

	e.router = sink.NewRouter(sinks...)
	e.banner = true
	go e.statsLoop()

	// Startup banner with the effective, redacted configuration.
	e.Info(context.Background(), "scribe", "logging initialized", map[string]any{
		"level":   cfg.Level,
		"log_dir": cfg.LogDir,
		"config":  cfg,
	})
	return e, nil
}

// NewWithSinks builds an engine over an explicit sink set, bypassing
// the log directory, rotator, periodic summary, and lifecycle banner
// events. Tests use it with memory sinks.
func NewWithSinks(cfg *config.Config, sinks ...sink.Sink) (*Engine, error) {
	level, err := cfg.ParsedLevel()
	if err != nil {
		return nil, err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		minLevel: level,
		redactor: redact.New(rules),
		router:   sink.NewRouter(sinks...),
		stats:    perf.NewStats(),
		pid:      os.Getpid(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	close(e.doneCh) // no stats loop to stop
	return e, nil
}

// defaultSinks builds the standard per-category file layout:
//
//	scribe.log            everything at the configured level
//	debug.log             everything, down to debug
//	error.log             warnings and errors from any category
//	structured.json.log   machine-readable stream (when structured)
//	request.log           HTTP traffic
//	database.log          queries
//	performance.log       slow operations and summaries
//	security.log          auth and access events
//	exceptions.log        panics and failures
func defaultSinks(cfg *config.Config, level types.Level) []sink.Sink {
	rot := types.RotationPolicy{
		MaxBytes:    cfg.RotationMaxBytes,
		BackupCount: cfg.RotationBackupCount,
		Compress:    cfg.RotationCompress,
	}
	file := func(name string, cat types.Category, min types.Level, format types.Format) sink.Sink {
		return sink.NewFileSink(types.SinkConfig{
			Name:     name,
			Category: cat,
			MinLevel: min,
			Path:     filepath.Join(cfg.LogDir, name),
			Format:   format,
			Rotation: rot,
		})
	}

	sinks := []sink.Sink{
		file("scribe.log", "", level, types.FormatLine),
		file("debug.log", "", types.LevelDebug, types.FormatLine),
		file("error.log", "", types.LevelWarning, types.FormatLine),
		file("request.log", types.CategoryRequest, level, types.FormatLine),
		file("database.log", types.CategoryDatabase, level, types.FormatLine),
		file("performance.log", types.CategoryPerformance, level, types.FormatLine),
		file("security.log", types.CategorySecurity, level, types.FormatLine),
		file("exceptions.log", types.CategoryExceptions, level, types.FormatLine),
	}
	if cfg.Structured {
		sinks = append(sinks, file("structured.json.log", "", level, types.FormatJSON))
	}
	return sinks
}

// Emit sanitizes ev, fills in process identity and timing, and routes
// it. Emit never blocks and never panics into the caller.
func (e *Engine) Emit(ctx context.Context, ev types.LogEvent) {
	if e.closed.Load() || ev.Level < e.minLevel {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Fault("engine", fmt.Errorf("%v", r), "emit panicked")
		}
	}()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Category == "" {
		ev.Category = types.CategoryGeneral
	}
	ev.ThreadID = gid()
	ev.ProcessID = e.pid

	if tc, ok := trace.FromContext(ctx); ok && ev.TraceID == "" {
		ev.TraceID = tc.TraceID()
		if s := tc.Current(); s != nil {
			ev.SpanID = s.ID
		}
	}

	if msg, ok := e.redactor.Redact(ev.Message).(string); ok {
		ev.Message = msg
	}
	if len(ev.Fields) > 0 {
		if fields, ok := e.redactor.Redact(ev.Fields).(map[string]any); ok {
			ev.Fields = fields
		}
	}

	perf.EventsEmitted.WithLabelValues(string(ev.Category)).Inc()
	e.router.Publish(ev)
}

// Log emits a general event at the given level.
func (e *Engine) Log(ctx context.Context, level types.Level, logger, msg string, fields map[string]any) {
	e.Emit(ctx, types.LogEvent{Level: level, Logger: logger, Message: msg, Fields: fields})
}

// Debug emits a debug event in the general category.
func (e *Engine) Debug(ctx context.Context, logger, msg string, fields map[string]any) {
	e.Log(ctx, types.LevelDebug, logger, msg, fields)
}

// Info emits an info event in the general category.
func (e *Engine) Info(ctx context.Context, logger, msg string, fields map[string]any) {
	e.Log(ctx, types.LevelInfo, logger, msg, fields)
}

// Warning emits a warning event in the general category.
func (e *Engine) Warning(ctx context.Context, logger, msg string, fields map[string]any) {
	e.Log(ctx, types.LevelWarning, logger, msg, fields)
}

// Error emits an error event in the general category.
func (e *Engine) Error(ctx context.Context, logger, msg string, err error, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	e.Log(ctx, types.LevelError, logger, msg, fields)
}

// Security emits an event in the security category. Auth decisions and
// access denials go here.
func (e *Engine) Security(ctx context.Context, level types.Level, logger, msg string, fields map[string]any) {
	e.Emit(ctx, types.LogEvent{
		Level:    level,
		Category: types.CategorySecurity,
		Logger:   logger,
		Message:  msg,
		Fields:   fields,
	})
}

// Exception emits an exceptions-category error event carrying the
// failure and, for panics, the stack.
func (e *Engine) Exception(ctx context.Context, logger, msg string, cause any, stack []byte) {
	fields := map[string]any{"cause": fmt.Sprint(cause)}
	if len(stack) > 0 {
		fields["stack"] = string(stack)
	}
	e.Emit(ctx, types.LogEvent{
		Level:    types.LevelError,
		Category: types.CategoryExceptions,
		Logger:   logger,
		Message:  msg,
		Fields:   fields,
	})
}

// Config returns the engine's configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Stats returns the in-memory performance aggregator.
func (e *Engine) Stats() *perf.Stats { return e.stats }

// Redact sanitizes v with the engine's rule set. Callers that build
// fields ahead of an Emit do not need this; Emit redacts on its own.
func (e *Engine) Redact(v any) any { return e.redactor.Redact(v) }

// Trace begins a new trace, in strict mode when configured.
func (e *Engine) Trace() *trace.Context {
	tc := trace.Begin()
	tc.SetStrict(e.cfg.Strict)
	return tc
}

// Close drains the pipeline and shuts the background loops down. After
// Close, Emit is a no-op. Close is idempotent.
func (e *Engine) Close() error {
	if e.closed.Load() {
		return nil
	}
	if e.banner {
		e.Info(context.Background(), "scribe", "logging shutting down", nil)
	}
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(e.stopCh)
	<-e.doneCh
	if e.rotator != nil {
		e.rotator.Stop()
	}
	if e.router != nil {
		return e.router.Close()
	}
	return nil
}

// statsLoop periodically writes a performance summary and starts a
// fresh window.
func (e *Engine) statsLoop() {
	defer close(e.doneCh)

	window := e.cfg.StatsWindow()
	if window <= 0 {
		return
	}
	ticker := time.NewTicker(window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.emitSummary()
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) emitSummary() {
	e.emitPipelineHealth()

	snaps := e.stats.Snapshot()
	if len(snaps) == 0 {
		return
	}
	for _, op := range snaps {
		e.Emit(context.Background(), types.LogEvent{
			Level:    types.LevelInfo,
			Category: types.CategoryPerformance,
			Logger:   "stats",
			Message:  fmt.Sprintf("window summary for %s", op.Operation),
			Fields: map[string]any{
				"operation": op.Operation,
				"count":     op.Count,
				"slow":      op.SlowCount,
				"total_ms":  op.Total.Milliseconds(),
				"avg_ms":    op.Avg.Milliseconds(),
				"min_ms":    op.Min.Milliseconds(),
				"max_ms":    op.Max.Milliseconds(),
				"p95_ms":    op.P95.Milliseconds(),
			},
		})
	}
	e.stats.Reset()
}

// emitPipelineHealth reports dropped events and sink write failures
// once per window instead of per occurrence.
func (e *Engine) emitPipelineHealth() {
	if e.router == nil {
		return
	}
	dropped, failures := e.router.Counters()
	dd := dropped - e.lastDropped
	df := failures - e.lastFailures
	e.lastDropped, e.lastFailures = dropped, failures
	if dd == 0 && df == 0 {
		return
	}
	e.Emit(context.Background(), types.LogEvent{
		Level:    types.LevelWarning,
		Category: types.CategoryPerformance,
		Logger:   "stats",
		Message:  fmt.Sprintf("log pipeline under pressure: %d dropped, %d write failures this window", dd, df),
		Fields: map[string]any{
			"dropped":        dd,
			"write_failures": df,
		},
	})
}

// gid extracts the current goroutine's id from the runtime stack
// header. It fills the thread_id slot of the wire format; nothing in
// the pipeline keys off it.
func gid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:"
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
