package sink

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/scribe/pkg/log"
	"github.com/cuemby/scribe/pkg/perf"
	"github.com/cuemby/scribe/pkg/types"
)

// queueSize is the per-sink buffer between the emitting goroutine and
// the sink's writer goroutine.
const queueSize = 1024

// Router fans events out to every sink whose configuration matches.
// Each sink gets its own bounded queue and a single writer goroutine,
// so a slow or failing sink cannot stall the caller or the other
// sinks.
type Router struct {
	routes []*route
	wg     sync.WaitGroup
	closed atomic.Bool

	dropped  atomic.Uint64
	failures atomic.Uint64
}

type route struct {
	sink Sink
	ch   chan types.LogEvent

	mu sync.Mutex // serializes enqueue with make-room eviction
}

// NewRouter starts a writer goroutine per sink. The router owns the
// sinks from here on; Close shuts the writers down and closes them.
func NewRouter(sinks ...Sink) *Router {
	r := &Router{}
	for _, s := range sinks {
		rt := &route{sink: s, ch: make(chan types.LogEvent, queueSize)}
		r.routes = append(r.routes, rt)
		r.wg.Add(1)
		go r.run(rt)
	}
	return r
}

func (r *Router) run(rt *route) {
	defer r.wg.Done()
	for ev := range rt.ch {
		if err := rt.sink.Write(ev); err != nil {
			r.failures.Add(1)
			perf.SinkWriteFailures.WithLabelValues(rt.sink.Name()).Inc()
			log.Fault("sink", err, "write failed")
		}
	}
}

// Publish enqueues ev on every matching sink without blocking. When a
// queue is full, a warning-or-worse event evicts the oldest queued
// sub-warning event to make room; anything below warning is dropped
// instead. Publish after Close is a no-op.
func (r *Router) Publish(ev types.LogEvent) {
	if r.closed.Load() {
		return
	}
	for _, rt := range r.routes {
		if !rt.sink.Config().Matches(ev) {
			continue
		}
		r.enqueue(rt, ev)
	}
}

func (r *Router) enqueue(rt *route, ev types.LogEvent) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	// Close may have won the race since the caller's check; the lock
	// makes this re-check reliable.
	if r.closed.Load() {
		return
	}

	select {
	case rt.ch <- ev:
		return
	default:
	}

	if ev.Level < types.LevelWarning {
		r.dropped.Add(1)
		perf.EventsDropped.WithLabelValues(rt.sink.Name()).Inc()
		return
	}

	// Important event, full queue: evict the oldest sub-warning entry,
	// or the oldest entry outright when everything queued is itself
	// warning or worse. Overflow is rare, so draining the queue under
	// the lock is acceptable; the writer keeps consuming concurrently,
	// which only makes room.
	queued := make([]types.LogEvent, 0, len(rt.ch))
drain:
	for {
		select {
		case q := <-rt.ch:
			queued = append(queued, q)
		default:
			break drain
		}
	}

	victim := 0
	for i, q := range queued {
		if q.Level < types.LevelWarning {
			victim = i
			break
		}
	}
	if len(queued) > 0 {
		queued = append(queued[:victim], queued[victim+1:]...)
		r.dropped.Add(1)
		perf.EventsDropped.WithLabelValues(rt.sink.Name()).Inc()
	}

	for _, q := range append(queued, ev) {
		select {
		case rt.ch <- q:
		default:
			r.dropped.Add(1)
			perf.EventsDropped.WithLabelValues(rt.sink.Name()).Inc()
		}
	}
}

// Close stops accepting events, drains every queue, and closes the
// sinks. It is safe to call more than once.
func (r *Router) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, rt := range r.routes {
		rt.mu.Lock()
		close(rt.ch)
		rt.mu.Unlock()
	}
	r.wg.Wait()

	var firstErr error
	for _, rt := range r.routes {
		if err := rt.sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Counters returns the cumulative dropped-event and write-failure
// counts across all sinks.
func (r *Router) Counters() (dropped, failures uint64) {
	return r.dropped.Load(), r.failures.Load()
}

// Sinks returns the sinks the router was built with.
func (r *Router) Sinks() []Sink {
	out := make([]Sink, len(r.routes))
	for i, rt := range r.routes {
		out[i] = rt.sink
	}
	return out
}
