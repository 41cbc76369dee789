package scribe

import (
	"context"
	"fmt"
	"iter"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/cuemby/scribe/pkg/trace"
	"github.com/cuemby/scribe/pkg/types"
)

// Options tunes the instrumentation of one wrapped function or block.
// The zero value inherits the engine's configuration.
type Options struct {
	// Level of the enter and exit events. Defaults to debug.
	Level types.Level
	// LogParams includes Params with the enter event, after redaction.
	LogParams bool
	// LogResult includes the (redacted) return value of a Call in the
	// exit event.
	LogResult bool
	// Params are the named arguments of the wrapped operation.
	Params map[string]any
	// Threshold overrides the engine's slow-function threshold.
	Threshold time.Duration
	// Vars are block-local variables whose final values are compared
	// against these starting values when variable logging is on.
	Vars map[string]any
}

// Func runs fn as a named, traced operation: a span wraps it, enter
// and exit events bracket it, a panic becomes an exceptions event
// before re-raising, a returned error is reported once, and slow runs
// land in the performance log. The returned error is fn's, unchanged.
func Func(ctx context.Context, e *Engine, name string, fn func(context.Context) error) error {
	_, err := run(ctx, e, name, Options{}, noResult(fn), 3)
	return err
}

// FuncOpts is Func with explicit options.
func FuncOpts(ctx context.Context, e *Engine, name string, opts Options, fn func(context.Context) error) error {
	_, err := run(ctx, e, name, opts, noResult(fn), 3)
	return err
}

// Call is Func for operations that return a value. With LogResult set
// the redacted value is attached to the exit event.
func Call[T any](ctx context.Context, e *Engine, name string, opts Options, fn func(context.Context) (T, error)) (T, error) {
	return run(ctx, e, name, opts, fn, 3)
}

func noResult(fn func(context.Context) error) func(context.Context) (struct{}, error) {
	return func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}
}

func run[T any](ctx context.Context, e *Engine, name string, opts Options, fn func(context.Context) (T, error), skip int) (result T, err error) {
	tc, traced := trace.FromContext(ctx)
	var span *trace.Span
	if traced {
		span = tc.BeginSpan(name)
	}

	start := time.Now()
	caller := callerLocation(skip)

	if e.cfg.LogFunctionCalls {
		fields := map[string]any{"caller": caller}
		if opts.LogParams && len(opts.Params) > 0 {
			fields["params"] = opts.Params
		}
		e.Log(ctx, enterLevel(opts), name, "ENTER "+name, fields)
	}

	defer func() {
		elapsed := time.Since(start)

		if r := recover(); r != nil {
			e.Exception(ctx, name, fmt.Sprintf("panic in %s", name), r, debug.Stack())
			if traced {
				tc.EndSpan(span, fmt.Errorf("panic: %v", r))
			}
			panic(r)
		}

		threshold := opts.Threshold
		if threshold <= 0 {
			threshold = e.cfg.SlowFuncThreshold()
		}
		slow := threshold > 0 && elapsed >= threshold
		e.stats.Record(name, elapsed, slow)

		if slow {
			e.Emit(ctx, types.LogEvent{
				Level:    types.LevelWarning,
				Category: types.CategoryPerformance,
				Logger:   name,
				Message:  fmt.Sprintf("%s took %v (threshold %v)", name, elapsed, threshold),
				Fields: map[string]any{
					"operation":    name,
					"duration_ms":  elapsed.Milliseconds(),
					"threshold_ms": threshold.Milliseconds(),
				},
			})
		}

		if err != nil {
			e.Exception(ctx, name, fmt.Sprintf("%s failed: %v", name, err), err, nil)
		}

		if e.cfg.LogFunctionCalls {
			status := "ok"
			if err != nil {
				status = "error"
			}
			fields := map[string]any{
				"duration_ms": elapsed.Milliseconds(),
				"status":      status,
			}
			if opts.LogResult && err == nil {
				fields["result"] = result
			}
			e.Log(ctx, enterLevel(opts), name, "EXIT "+name, fields)
		}

		if traced {
			tc.EndSpan(span, err)
		}
	}()

	return fn(ctx)
}

func enterLevel(opts Options) types.Level {
	if opts.Level > types.LevelDebug {
		return opts.Level
	}
	return types.LevelDebug
}

// Block instruments an inline region of code the way Func instruments
// a whole function. Start one with StartBlock and close it with a
// deferred End.
type Block struct {
	e     *Engine
	ctx   context.Context
	tc    *trace.Context
	span  *trace.Span
	name  string
	start time.Time
	opts  Options
	done  bool
}

// StartBlock opens a named block under the current trace.
func StartBlock(ctx context.Context, e *Engine, name string, opts Options) *Block {
	b := &Block{
		e:     e,
		ctx:   ctx,
		name:  name,
		start: time.Now(),
		opts:  opts,
	}
	if tc, ok := trace.FromContext(ctx); ok {
		b.tc = tc
		b.span = tc.BeginSpan(name)
	}
	if e.cfg.LogFunctionCalls {
		fields := map[string]any{}
		if opts.LogParams && len(opts.Params) > 0 {
			fields["params"] = opts.Params
		}
		e.Log(ctx, enterLevel(opts), name, "ENTER "+name, fields)
	}
	return b
}

// End closes the block. Call it deferred with a pointer to the
// function's named error so failures are attributed:
//
//	func load(ctx context.Context) (err error) {
//		b := scribe.StartBlock(ctx, eng, "load", scribe.Options{})
//		defer b.End(&err)
//		...
//	}
func (b *Block) End(errp *error) {
	b.finish(errp, nil)
}

// EndWithVars closes the block and, when variable logging is enabled,
// reports which of the starting Vars changed.
func (b *Block) EndWithVars(errp *error, vars map[string]any) {
	b.finish(errp, vars)
}

func (b *Block) finish(errp *error, vars map[string]any) {
	if b.done {
		return
	}
	b.done = true

	var err error
	if errp != nil {
		err = *errp
	}
	elapsed := time.Since(b.start)

	threshold := b.opts.Threshold
	if threshold <= 0 {
		threshold = b.e.cfg.SlowFuncThreshold()
	}
	slow := threshold > 0 && elapsed >= threshold
	b.e.stats.Record(b.name, elapsed, slow)

	if slow {
		b.e.Emit(b.ctx, types.LogEvent{
			Level:    types.LevelWarning,
			Category: types.CategoryPerformance,
			Logger:   b.name,
			Message:  fmt.Sprintf("%s took %v (threshold %v)", b.name, elapsed, threshold),
			Fields: map[string]any{
				"operation":    b.name,
				"duration_ms":  elapsed.Milliseconds(),
				"threshold_ms": threshold.Milliseconds(),
			},
		})
	}

	if err != nil {
		b.e.Exception(b.ctx, b.name, fmt.Sprintf("%s failed: %v", b.name, err), err, nil)
	}

	if b.e.cfg.LogFunctionCalls {
		fields := map[string]any{
			"duration_ms": elapsed.Milliseconds(),
		}
		if err != nil {
			fields["status"] = "error"
		} else {
			fields["status"] = "ok"
		}
		if b.e.cfg.LogVariableChanges && vars != nil {
			if changed := diffVars(b.opts.Vars, vars); len(changed) > 0 {
				fields["changed"] = changed
			}
		}
		b.e.Log(b.ctx, enterLevel(b.opts), b.name, "EXIT "+b.name, fields)
	}

	if b.tc != nil {
		b.tc.EndSpan(b.span, err)
	}
}

// diffVars reports final values for variables that differ from their
// starting snapshot, plus any that appeared.
func diffVars(before, after map[string]any) map[string]any {
	changed := map[string]any{}
	for k, v := range after {
		if old, ok := before[k]; !ok || fmt.Sprint(old) != fmt.Sprint(v) {
			changed[k] = v
		}
	}
	return changed
}

// Items instruments iteration over seq: every nth item is logged at
// debug, and a count summary is emitted when the loop finishes or
// breaks. The values themselves pass through untouched.
func Items[T any](ctx context.Context, e *Engine, name string, every int, seq iter.Seq[T]) iter.Seq[T] {
	if every <= 0 {
		every = 1
	}
	return func(yield func(T) bool) {
		count := 0
		start := time.Now()
		for v := range seq {
			count++
			if e.cfg.LogFunctionCalls && count%every == 0 {
				e.Debug(ctx, name, fmt.Sprintf("%s: item %d", name, count), map[string]any{
					"index":      count,
					"item":       e.Redact(v),
					"elapsed_ms": time.Since(start).Milliseconds(),
				})
			}
			if !yield(v) {
				break
			}
		}
		e.Debug(ctx, name, fmt.Sprintf("%s: finished after %d items", name, count), map[string]any{
			"count":       count,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// Condition records the outcome of a boolean expression and hands the
// value back, so it can sit inline in an if statement:
//
//	if scribe.Condition(ctx, eng, "cache", "len(entries) > max", len(entries) > max) {
//		evict()
//	}
func Condition(ctx context.Context, e *Engine, logger, expr string, value bool) bool {
	e.Debug(ctx, logger, fmt.Sprintf("condition %s = %v", expr, value), map[string]any{
		"expr":   expr,
		"result": value,
	})
	return value
}

// callerLocation returns "file.go:123" for the caller skip frames up.
func callerLocation(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	return fmt.Sprintf("%s:%d", short, line)
}
