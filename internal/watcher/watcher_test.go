package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

const testDebounce = 50 * time.Millisecond

type pairRecorder struct {
	mu    sync.Mutex
	pairs []Pair
}

func (r *pairRecorder) record(p Pair) {
	r.mu.Lock()
	r.pairs = append(r.pairs, p)
	r.mu.Unlock()
}

func (r *pairRecorder) snapshot() []Pair {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Pair(nil), r.pairs...)
}

// waitFor polls until at least n pairs were reported or the deadline passes.
func (r *pairRecorder) waitFor(n int, timeout time.Duration) []Pair {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
	return r.snapshot()
}

func TestPairFor(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "run1_blast.txt"), "q1\tKX1\t99\t480\n"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "run1.fa"), ">q1\nACGT\n"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "run2_blast.txt"), ""); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "notes.txt"), ""); err != nil {
		t.Fatal(err)
	}

	base := filepath.Join(dir, "run1")
	want := Pair{Base: base, Blast: base + "_blast.txt", Fasta: base + ".fa"}
	tests := []struct {
		path string
		want Pair
		ok   bool
	}{
		{base + "_blast.txt", want, true},
		{base + ".fa", want, true},
		{filepath.Join(dir, "run2_blast.txt"), Pair{}, false},
		{filepath.Join(dir, "run2.fasta"), Pair{}, false},
		{filepath.Join(dir, "notes.txt"), Pair{}, false},
	}
	for _, tt := range tests {
		got, ok := PairFor(tt.path)
		if ok != tt.ok || got != tt.want {
			t.Errorf("PairFor(%q) = %+v, %v; want %+v, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPairKey(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/a/s_blast.txt", "/a/s_blast.txt", true},
		{"/a/s.fasta", "/a/s_blast.txt", true},
		{"/a/s.FA", "/a/s_blast.txt", true},
		{"/a/s.txt", "", false},
	}
	for _, tt := range tests {
		got, ok := pairKey(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("pairKey(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_AddDirectory(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(nil, true, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || filepath.Clean(dirs[0]) != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
}

func TestWatcher_AddDirectory_syncsExistingPairs(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "s_blast.txt"), ""); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "s.fasta"), ""); err != nil {
		t.Fatal(err)
	}

	var rec pairRecorder
	w := NewWatcher(nil, true, rec.record, WithDebounce(testDebounce))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if err := w.AddDirectory(dir, true); err != nil {
		t.Fatal(err)
	}

	got := rec.waitFor(1, 2*time.Second)
	if len(got) != 1 || got[0].Fasta != filepath.Join(dir, "s.fasta") {
		t.Errorf("expected the existing pair, got %v", got)
	}
}

func TestWatcher_ReportsPairWhenSecondFileArrives(t *testing.T) {
	dir := t.TempDir()
	var rec pairRecorder
	w := NewWatcher([]string{dir}, true, rec.record, WithDebounce(testDebounce))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "s_blast.txt"), "q1\tKX1\t99\t480\n"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(4 * testDebounce)
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("BLAST file alone should not be reported, got %v", got)
	}

	if err := writeFile(filepath.Join(dir, "s.fasta"), ">q1\nACGT\n"); err != nil {
		t.Fatal(err)
	}
	got := rec.waitFor(1, 2*time.Second)
	if len(got) == 0 {
		t.Fatal("expected the pair to be reported")
	}
	if got[0].Blast != filepath.Join(dir, "s_blast.txt") {
		t.Errorf("Blast = %q", got[0].Blast)
	}

	// Burst of writes collapses into one report.
	time.Sleep(4 * testDebounce)
	if n := len(rec.snapshot()); n != 1 {
		t.Errorf("expected exactly one report, got %d", n)
	}
}

func TestWatcher_NewFolderWithPair(t *testing.T) {
	dir := t.TempDir()
	var rec pairRecorder
	w := NewWatcher([]string{dir}, true, rec.record, WithDebounce(testDebounce))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	nested := filepath.Join(dir, "level1", "level2")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.fasta"), ">q\nAC\n"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep_blast.txt"), ""); err != nil {
		t.Fatal(err)
	}

	got := rec.waitFor(1, 2*time.Second)
	found := false
	for _, p := range got {
		if p.Base == filepath.Join(nested, "deep") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected deep pair to be reported, got %v", got)
	}
}

func TestWatcher_SyncExistingFiles_nonRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := mkdirAll(sub); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"top_blast.txt", "top.fasta", "sub/inner_blast.txt", "sub/inner.fasta"} {
		if err := writeFile(filepath.Join(dir, name), ""); err != nil {
			t.Fatal(err)
		}
	}

	var rec pairRecorder
	w := NewWatcher([]string{dir}, false, rec.record)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExistingFiles()

	got := rec.snapshot()
	if len(got) != 1 || got[0].Base != filepath.Join(dir, "top") {
		t.Errorf("expected only the top-level pair, got %v", got)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")

	w := NewWatcher([]string{root}, true, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
