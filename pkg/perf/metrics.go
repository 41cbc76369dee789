package perf

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	EventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribe_events_emitted_total",
			Help: "Total number of log events emitted by category",
		},
		[]string{"category"},
	)

	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribe_events_dropped_total",
			Help: "Total number of log events dropped by sink due to backpressure",
		},
		[]string{"sink"},
	)

	SinkWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribe_sink_write_failures_total",
			Help: "Total number of failed sink writes",
		},
		[]string{"sink"},
	)

	// Operation metrics
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scribe_operation_duration_seconds",
			Help:    "Duration of traced operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	SlowOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribe_slow_operations_total",
			Help: "Total number of operations that exceeded their threshold",
		},
		[]string{"operation"},
	)

	// Request metrics
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scribe_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scribe_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Resource metrics, fed by the sampler
	MemoryBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scribe_process_memory_bytes",
			Help: "Resident memory of the process in bytes",
		},
	)

	CPUPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scribe_process_cpu_percent",
			Help: "CPU usage of the process as a percentage",
		},
	)

	OpenFDs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scribe_process_open_fds",
			Help: "Number of open file descriptors",
		},
	)

	Goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scribe_goroutines",
			Help: "Number of live goroutines",
		},
	)

	Threads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scribe_process_threads",
			Help: "Number of OS threads in the process",
		},
	)
)

func init() {
	prometheus.MustRegister(EventsEmitted)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(SinkWriteFailures)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(SlowOperations)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(MemoryBytes)
	prometheus.MustRegister(CPUPercent)
	prometheus.MustRegister(OpenFDs)
	prometheus.MustRegister(Goroutines)
	prometheus.MustRegister(Threads)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for histogram observation
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in the given histogram
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}
