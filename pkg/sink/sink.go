package sink

import (
	"os"
	"sync"

	"github.com/cuemby/scribe/pkg/types"
)

// Sink is a destination for log events. Write is only ever called from
// the router's writer goroutine for that sink, so implementations do
// not need to be concurrency-safe between writes; Close may race with
// nothing because the router drains the queue first.
type Sink interface {
	Name() string
	Config() types.SinkConfig
	Write(ev types.LogEvent) error
	Close() error
}

// StderrSink writes line-formatted events to standard error. It is the
// fallback destination when the configured log directory cannot be
// used.
type StderrSink struct {
	cfg types.SinkConfig
}

// NewStderrSink creates a stderr sink accepting events that match cfg.
func NewStderrSink(cfg types.SinkConfig) *StderrSink {
	cfg.Format = types.FormatLine
	return &StderrSink{cfg: cfg}
}

func (s *StderrSink) Name() string             { return s.cfg.Name }
func (s *StderrSink) Config() types.SinkConfig { return s.cfg }

func (s *StderrSink) Write(ev types.LogEvent) error {
	_, err := os.Stderr.Write(encodeLine(ev))
	return err
}

func (s *StderrSink) Close() error { return nil }

// MemorySink buffers events in memory. It exists for tests and for
// short-lived diagnostic captures.
type MemorySink struct {
	cfg types.SinkConfig

	mu     sync.Mutex
	events []types.LogEvent
}

// NewMemorySink creates a memory sink accepting events that match cfg.
func NewMemorySink(cfg types.SinkConfig) *MemorySink {
	return &MemorySink{cfg: cfg}
}

func (s *MemorySink) Name() string             { return s.cfg.Name }
func (s *MemorySink) Config() types.SinkConfig { return s.cfg }

func (s *MemorySink) Write(ev types.LogEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Close() error { return nil }

// Events returns a copy of everything written so far.
func (s *MemorySink) Events() []types.LogEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.LogEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of events written so far.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
