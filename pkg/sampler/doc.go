// Package sampler watches the process's own resource usage.
//
// Every interval it reads resident memory, CPU time, file descriptor
// count, and thread count from /proc, plus the live goroutine count
// from the runtime. Each sample updates the Prometheus gauges and
// lands as an event in the performance log; samples over the CPU or
// memory thresholds are escalated to warnings.
//
// On hosts without procfs the sampler logs one fault and goes quiet.
package sampler
