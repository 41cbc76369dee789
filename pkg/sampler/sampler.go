package sampler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/procfs"

	"github.com/cuemby/scribe/pkg/log"
	"github.com/cuemby/scribe/pkg/perf"
	"github.com/cuemby/scribe/pkg/scribe"
	"github.com/cuemby/scribe/pkg/types"
)

// Usage thresholds above which a sample is escalated to a warning.
const (
	cpuWarnPercent = 80.0
	memWarnPercent = 70.0
)

// Sampler periodically reads process resource usage from /proc, feeds
// the perf gauges, and writes a sample event to the performance log.
type Sampler struct {
	engine   *scribe.Engine
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}

	warnOnce sync.Once

	memTotal uint64 // bytes, 0 when /proc/meminfo is unreadable
	prevCPU  float64
	prevAt   time.Time
}

// New creates a sampler emitting through engine every interval.
func New(engine *scribe.Engine, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s := &Sampler{
		engine:   engine,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if fs, err := procfs.NewDefaultFS(); err == nil {
		if mi, err := fs.Meminfo(); err == nil && mi.MemTotal != nil {
			s.memTotal = *mi.MemTotal * 1024
		}
	}
	return s
}

// Start begins sampling. The first sample is taken immediately.
func (s *Sampler) Start() {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.doneCh)

		s.sample()

		for {
			select {
			case <-ticker.C:
				s.sample()
			case <-s.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts sampling and waits for an in-flight sample to finish.
func (s *Sampler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Sampler) sample() {
	proc, err := procfs.Self()
	if err != nil {
		s.procfsFault(err)
		return
	}
	stat, err := proc.Stat()
	if err != nil {
		s.procfsFault(err)
		return
	}

	rss := uint64(stat.ResidentMemory())
	goroutines := runtime.NumGoroutine()

	fds := 0
	if n, err := proc.FileDescriptorsLen(); err == nil {
		fds = n
	}

	now := time.Now()
	cpuPct := 0.0
	if !s.prevAt.IsZero() {
		wall := now.Sub(s.prevAt).Seconds()
		if wall > 0 {
			cpuPct = (stat.CPUTime() - s.prevCPU) / wall * 100
		}
	}
	s.prevCPU = stat.CPUTime()
	s.prevAt = now

	memPct := 0.0
	if s.memTotal > 0 {
		memPct = float64(rss) / float64(s.memTotal) * 100
	}

	perf.MemoryBytes.Set(float64(rss))
	perf.CPUPercent.Set(cpuPct)
	perf.OpenFDs.Set(float64(fds))
	perf.Goroutines.Set(float64(goroutines))
	perf.Threads.Set(float64(stat.NumThreads))

	fields := map[string]any{
		"memory_bytes":   rss,
		"memory_percent": memPct,
		"cpu_percent":    cpuPct,
		"open_fds":       fds,
		"goroutines":     goroutines,
		"threads":        stat.NumThreads,
	}

	level := types.LevelInfo
	msg := "resource sample"
	if cpuPct > cpuWarnPercent || memPct > memWarnPercent {
		level = types.LevelWarning
		msg = "high resource usage"
	}

	s.engine.Emit(context.Background(), types.LogEvent{
		Level:    level,
		Category: types.CategoryPerformance,
		Logger:   "sampler",
		Message:  msg,
		Fields:   fields,
	})
}

// procfsFault reports the first /proc failure once; later failures are
// silent since a host without procfs will never grow one.
func (s *Sampler) procfsFault(err error) {
	s.warnOnce.Do(func() {
		log.Fault("sampler", err, "procfs unavailable, resource sampling disabled")
	})
}
