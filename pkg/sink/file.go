package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cuemby/scribe/pkg/types"
)

// FileSink appends events to a single log file, rotating it by rename
// once the configured size limit would be exceeded. Compression and
// pruning of rotated files happen asynchronously in the Rotator.
type FileSink struct {
	cfg types.SinkConfig

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewFileSink creates a file sink for cfg. The file is opened lazily on
// the first write so that constructing sinks never fails.
func NewFileSink(cfg types.SinkConfig) *FileSink {
	return &FileSink{cfg: cfg}
}

func (s *FileSink) Name() string             { return s.cfg.Name }
func (s *FileSink) Config() types.SinkConfig { return s.cfg }

// Write appends one encoded event. If the write would push the file
// past the rotation limit, the file is rotated first, so a single
// event triggers at most one rotation.
func (s *FileSink) Write(ev types.LogEvent) error {
	line := encode(ev, s.cfg.Format)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(); err != nil {
		return err
	}

	max := s.cfg.Rotation.MaxBytes
	if max > 0 && s.size > 0 && s.size+int64(len(line)) > max {
		if err := s.rotate(); err != nil {
			return err
		}
	}

	n, err := s.file.Write(line)
	s.size += int64(n)
	if err != nil {
		return fmt.Errorf("write %s: %w", s.cfg.Path, err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *FileSink) ensureOpen() error {
	if s.file != nil {
		return nil
	}
	f, err := os.OpenFile(s.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.cfg.Path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat %s: %w", s.cfg.Path, err)
	}
	s.file = f
	s.size = info.Size()
	return nil
}

// rotate renames the live file to the next free numbered backup and
// reopens a fresh file in its place.
func (s *FileSink) rotate() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close %s for rotation: %w", s.cfg.Path, err)
	}
	s.file = nil
	s.size = 0

	seq := nextSeq(s.cfg.Path)
	rotated := fmt.Sprintf("%s.%d", s.cfg.Path, seq)
	if err := os.Rename(s.cfg.Path, rotated); err != nil {
		return fmt.Errorf("rotate %s: %w", s.cfg.Path, err)
	}
	return s.ensureOpen()
}

// nextSeq returns one past the highest backup sequence number present
// for path, counting both plain and compressed backups.
func nextSeq(path string) int {
	max := 0
	for _, b := range listBackups(path) {
		if b.seq > max {
			max = b.seq
		}
	}
	return max + 1
}

type backup struct {
	path string
	seq  int
}

// listBackups finds "<path>.<n>" and "<path>.<n>.gz" files next to the
// live log file, sorted by sequence number ascending.
func listBackups(path string) []backup {
	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		return nil
	}

	var out []backup
	for _, m := range matches {
		suffix := strings.TrimPrefix(m, path+".")
		suffix = strings.TrimSuffix(suffix, ".gz")
		seq, err := strconv.Atoi(suffix)
		if err != nil || seq <= 0 {
			continue
		}
		out = append(out, backup{path: m, seq: seq})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}
