package sink

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/cuemby/scribe/pkg/log"
	"github.com/cuemby/scribe/pkg/types"
)

// Rotator compresses and prunes rotated log files in the background.
// The live files are rotated inline by FileSink; everything that can
// tolerate latency happens here, off the write path.
type Rotator struct {
	configs  []types.SinkConfig
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRotator creates a rotator sweeping the rotated backups of the
// given file sink configs every interval.
func NewRotator(configs []types.SinkConfig, interval time.Duration) *Rotator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Rotator{
		configs:  configs,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins sweeping. The first sweep runs immediately.
func (r *Rotator) Start() {
	ticker := time.NewTicker(r.interval)
	go func() {
		defer close(r.doneCh)

		r.Sweep()

		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-r.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts sweeping and waits for an in-flight sweep to finish. A
// final sweep is not run; pending backups are picked up on the next
// start.
func (r *Rotator) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// Sweep compresses uncompressed backups and prunes the oldest ones
// beyond each sink's backup count. Failures are reported on the
// fallback channel and retried on the next sweep.
func (r *Rotator) Sweep() {
	for _, cfg := range r.configs {
		if cfg.Path == "" {
			continue
		}
		if cfg.Rotation.Compress {
			r.compressBackups(cfg)
		}
		r.pruneBackups(cfg)
	}
}

func (r *Rotator) compressBackups(cfg types.SinkConfig) {
	for _, b := range listBackups(cfg.Path) {
		if strings.HasSuffix(b.path, ".gz") {
			continue
		}
		if err := compressFile(b.path); err != nil {
			log.Fault("rotator", err, "compress failed")
		}
	}
}

func (r *Rotator) pruneBackups(cfg types.SinkConfig) {
	keep := cfg.Rotation.BackupCount
	if keep <= 0 {
		return
	}
	backups := listBackups(cfg.Path)
	if len(backups) <= keep {
		return
	}
	// listBackups sorts ascending, so the head is the oldest.
	for _, b := range backups[:len(backups)-keep] {
		if err := os.Remove(b.path); err != nil {
			log.Fault("rotator", err, "prune failed")
		}
	}
}

// compressFile gzips path into path.gz and removes the original. The
// temp-then-rename dance keeps a crash from leaving a truncated .gz
// masquerading as a complete backup.
func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	tmp := path + ".gz.tmp"
	dst, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		dst.Close()
		os.Remove(tmp)
		return fmt.Errorf("compress %s: %w", path, err)
	}
	if err := gw.Close(); err != nil {
		dst.Close()
		os.Remove(tmp)
		return fmt.Errorf("finish %s: %w", tmp, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path+".gz"); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return os.Remove(path)
}
