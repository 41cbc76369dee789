package trace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/scribe/pkg/log"
)

// Span status values.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusAbandoned = "abandoned"
)

// Span is one timed unit of work inside a trace. Spans form a stack:
// the most recently begun open span is the parent of the next one.
type Span struct {
	ID       string
	ParentID string
	Name     string
	Start    time.Time
	End      time.Time
	Status   string
	Err      error
}

// Duration returns the span's elapsed time, using the current time for
// spans that are still open.
func (s *Span) Duration() time.Duration {
	if s.End.IsZero() {
		return time.Since(s.Start)
	}
	return s.End.Sub(s.Start)
}

// Context carries the trace identity and open-span stack for one unit
// of work, typically a single request. A Context is owned by the
// goroutine that created it; use Fork to hand work to another
// goroutine under the same trace ID.
type Context struct {
	mu      sync.Mutex
	traceID string
	strict  bool
	stack   []*Span

	queryCount int
	queryTime  time.Duration
}

// Begin starts a new trace with a fresh trace ID.
func Begin() *Context {
	return &Context{traceID: uuid.NewString()}
}

// SetStrict switches the context into strict mode, where span misuse
// panics instead of being repaired.
func (c *Context) SetStrict(strict bool) {
	c.mu.Lock()
	c.strict = strict
	c.mu.Unlock()
}

// TraceID returns the identifier shared by every span and event in
// this trace.
func (c *Context) TraceID() string {
	return c.traceID
}

// Fork creates a sibling context carrying only the trace ID, rooted at
// a fresh parentless span named name. The fork has its own span stack
// and query counters; callers pass it to the goroutine doing the
// forked work and close it there with End.
func (c *Context) Fork(name string) *Context {
	c.mu.Lock()
	strict := c.strict
	c.mu.Unlock()

	f := &Context{traceID: c.traceID, strict: strict}
	f.stack = append(f.stack, &Span{
		ID:    spanID(),
		Name:  name,
		Start: time.Now(),
	})
	return f
}

// BeginSpan opens a span named name as a child of the current span and
// makes it current.
func (c *Context) BeginSpan(name string) *Span {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Span{
		ID:    spanID(),
		Name:  name,
		Start: time.Now(),
	}
	if n := len(c.stack); n > 0 {
		s.ParentID = c.stack[n-1].ID
	}
	c.stack = append(c.stack, s)
	return s
}

// EndSpan closes s with err determining its status. Closing a span
// that is not the current one closes every span above it as abandoned
// first; in strict mode any out-of-order or unknown close panics.
// Closing a span that is not on the stack drains the whole stack.
func (c *Context) EndSpan(s *Span, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i] == s {
			idx = i
			break
		}
	}

	if c.strict {
		if idx == -1 {
			panic(fmt.Sprintf("trace: EndSpan(%q): span not on stack", s.Name))
		}
		if idx != len(c.stack)-1 {
			panic(fmt.Sprintf("trace: EndSpan(%q): %d spans still open above it",
				s.Name, len(c.stack)-1-idx))
		}
	}

	if idx == -1 {
		// Unknown span: the stack is in an undefined state, drain it.
		log.Warnf("trace", "EndSpan(%q): span not on stack, draining %d open spans", s.Name, len(c.stack))
		for _, open := range c.stack {
			closeSpan(open, StatusAbandoned, nil)
		}
		c.stack = c.stack[:0]
		closeSpan(s, statusFor(err), err)
		return
	}

	if idx != len(c.stack)-1 {
		log.Warnf("trace", "EndSpan(%q): abandoning %d spans opened inside it", s.Name, len(c.stack)-1-idx)
	}
	for i := len(c.stack) - 1; i > idx; i-- {
		closeSpan(c.stack[i], StatusAbandoned, nil)
	}
	closeSpan(s, statusFor(err), err)
	c.stack = c.stack[:idx]
}

// End closes the trace. Any spans still open are closed as abandoned
// and returned so the caller can report the leak.
func (c *Context) End() []*Span {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.stack) == 0 {
		return nil
	}
	orphans := make([]*Span, len(c.stack))
	for i := len(c.stack) - 1; i >= 0; i-- {
		closeSpan(c.stack[i], StatusAbandoned, nil)
		orphans[len(c.stack)-1-i] = c.stack[i]
	}
	c.stack = c.stack[:0]
	return orphans
}

// OpenSpans returns a snapshot of the open spans, outermost first.
func (c *Context) OpenSpans() []*Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Span, len(c.stack))
	copy(out, c.stack)
	return out
}

// Current returns the innermost open span, or nil outside any span.
func (c *Context) Current() *Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.stack); n > 0 {
		return c.stack[n-1]
	}
	return nil
}

// Depth returns the number of open spans.
func (c *Context) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stack)
}

// RecordQuery accumulates one database query against this trace.
func (c *Context) RecordQuery(d time.Duration) {
	c.mu.Lock()
	c.queryCount++
	c.queryTime += d
	c.mu.Unlock()
}

// QueryStats returns the number of queries recorded on this trace and
// their combined duration.
func (c *Context) QueryStats() (count int, total time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryCount, c.queryTime
}

func closeSpan(s *Span, status string, err error) {
	if !s.End.IsZero() {
		return
	}
	s.End = time.Now()
	s.Status = status
	s.Err = err
}

func statusFor(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

func spanID() string {
	u := uuid.New()
	return fmt.Sprintf("%x", u[:8])
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying tc.
func NewContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext extracts the trace context from ctx, if one is carried.
func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(*Context)
	return tc, ok
}
