package perf

import (
	"sort"
	"sync"
	"time"
)

// sampleRingSize bounds the per-operation sample buffer used for
// percentile estimates. Older samples are overwritten once full.
const sampleRingSize = 512

// OpSnapshot is the aggregated view of one operation over the current
// stats window.
type OpSnapshot struct {
	Operation string
	Count     int64
	SlowCount int64
	Total     time.Duration
	Min       time.Duration
	Max       time.Duration
	Avg       time.Duration
	P95       time.Duration
}

type opStats struct {
	mu        sync.Mutex
	count     int64
	slowCount int64
	total     time.Duration
	min       time.Duration
	max       time.Duration
	samples   [sampleRingSize]time.Duration
	filled    int
	next      int
}

func (o *opStats) record(d time.Duration, slow bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.count++
	if slow {
		o.slowCount++
	}
	o.total += d
	if o.count == 1 || d < o.min {
		o.min = d
	}
	if d > o.max {
		o.max = d
	}
	o.samples[o.next] = d
	o.next = (o.next + 1) % sampleRingSize
	if o.filled < sampleRingSize {
		o.filled++
	}
}

func (o *opStats) snapshot(name string) OpSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := OpSnapshot{
		Operation: name,
		Count:     o.count,
		SlowCount: o.slowCount,
		Total:     o.total,
		Min:       o.min,
		Max:       o.max,
	}
	if o.count > 0 {
		snap.Avg = o.total / time.Duration(o.count)
	}
	if o.filled > 0 {
		buf := make([]time.Duration, o.filled)
		copy(buf, o.samples[:o.filled])
		sort.Slice(buf, func(i, j int) bool { return buf[i] < buf[j] })
		idx := (len(buf) * 95) / 100
		if idx >= len(buf) {
			idx = len(buf) - 1
		}
		snap.P95 = buf[idx]
	}
	return snap
}

// Stats aggregates operation timings in memory for periodic summaries.
// It is safe for concurrent use; recording on different operations
// does not contend.
type Stats struct {
	ops sync.Map // operation name -> *opStats
}

// NewStats creates an empty aggregator.
func NewStats() *Stats {
	return &Stats{}
}

// Record adds one timed occurrence of operation. slow marks it as
// having exceeded its threshold.
func (s *Stats) Record(operation string, d time.Duration, slow bool) {
	v, ok := s.ops.Load(operation)
	if !ok {
		v, _ = s.ops.LoadOrStore(operation, &opStats{})
	}
	v.(*opStats).record(d, slow)

	OperationDuration.WithLabelValues(operation).Observe(d.Seconds())
	if slow {
		SlowOperations.WithLabelValues(operation).Inc()
	}
}

// Snapshot returns the per-operation aggregates sorted by total time,
// slowest first.
func (s *Stats) Snapshot() []OpSnapshot {
	var out []OpSnapshot
	s.ops.Range(func(key, value any) bool {
		out = append(out, value.(*opStats).snapshot(key.(string)))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

// Reset clears all aggregates, starting a fresh window.
func (s *Stats) Reset() {
	s.ops.Range(func(key, _ any) bool {
		s.ops.Delete(key)
		return true
	})
}
