package sink

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/cuemby/scribe/pkg/types"
)

func TestSweepCompresses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	content := []byte("rotated log content\n")
	if err := os.WriteFile(path+".1", content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := types.SinkConfig{
		Name:     "app",
		Path:     path,
		Rotation: types.RotationPolicy{Compress: true, BackupCount: 5},
	}
	NewRotator([]types.SinkConfig{cfg}, 0).Sweep()

	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("uncompressed backup still present after sweep")
	}

	f, err := os.Open(path + ".1.gz")
	if err != nil {
		t.Fatalf("open compressed backup: %v", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	got, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("decompressed = %q, want %q", got, content)
	}
}

func TestSweepPrunesOldest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	for _, name := range []string{"app.log.1.gz", "app.log.2.gz", "app.log.3.gz"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := types.SinkConfig{
		Name:     "app",
		Path:     path,
		Rotation: types.RotationPolicy{Compress: true, BackupCount: 2},
	}
	NewRotator([]types.SinkConfig{cfg}, 0).Sweep()

	backups := listBackups(path)
	if len(backups) != 2 {
		t.Fatalf("%d backups after prune, want 2", len(backups))
	}
	if backups[0].seq != 2 || backups[1].seq != 3 {
		t.Errorf("kept seqs %d,%d, want 2,3", backups[0].seq, backups[1].seq)
	}
}

func TestSweepKeepsAllWithoutLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	for _, name := range []string{"app.log.1", "app.log.2"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := types.SinkConfig{Name: "app", Path: path}
	NewRotator([]types.SinkConfig{cfg}, 0).Sweep()

	if got := len(listBackups(path)); got != 2 {
		t.Errorf("%d backups, want 2 untouched", got)
	}
}

func TestRotatorStartStop(t *testing.T) {
	r := NewRotator(nil, 0)
	r.Start()
	r.Stop()
}
