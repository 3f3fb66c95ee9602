// Package watcher watches directories with fsnotify and reports complete
// BLAST/FASTA file pairs once they stop changing.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// BlastSuffix marks BLAST tabular output files: <base>_blast.txt.
const BlastSuffix = "_blast.txt"

// FastaExtensions are tried in order when looking for <base>'s query file.
var FastaExtensions = []string{".fasta", ".fa", ".fna", ".fas"}

// Pair is a BLAST result file and the FASTA file of its queries.
type Pair struct {
	Base  string
	Blast string
	Fasta string
}

// PairFor returns the complete pair that path belongs to. path may be either
// member; ok is false when it is neither or the other file does not exist yet.
func PairFor(path string) (p Pair, ok bool) {
	if base, found := strings.CutSuffix(path, BlastSuffix); found {
		for _, ext := range FastaExtensions {
			if isFile(base + ext) {
				return Pair{Base: base, Blast: path, Fasta: base + ext}, true
			}
		}
		return Pair{}, false
	}
	ext := filepath.Ext(path)
	for _, e := range FastaExtensions {
		if !strings.EqualFold(ext, e) {
			continue
		}
		base := strings.TrimSuffix(path, ext)
		if isFile(base + BlastSuffix) {
			return Pair{Base: base, Blast: base + BlastSuffix, Fasta: path}, true
		}
	}
	return Pair{}, false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Watcher watches directories and invokes onPair for every complete pair.
type Watcher struct {
	roots       []string
	recursive   bool
	onPair      func(Pair)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a pair must stay unchanged before it is reported.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over roots. onPair runs on its own goroutine
// per pair, after the debounce delay.
func NewWatcher(roots []string, recursive bool, onPair func(Pair), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		roots:       roots,
		recursive:   recursive,
		onPair:      onPair,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	w.logger.Debug("watcher starting", zap.Strings("roots", w.roots), zap.Bool("recursive", w.recursive))
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = fsw.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if p, ok := PairFor(path); ok {
			w.debouncePair(p)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if p, ok := pairKey(path); ok {
			w.cancelDebounce(p)
		}
	}
}

// pairKey returns the BLAST path identifying the pair path would belong to.
func pairKey(path string) (string, bool) {
	if strings.HasSuffix(path, BlastSuffix) {
		return path, true
	}
	ext := filepath.Ext(path)
	for _, e := range FastaExtensions {
		if strings.EqualFold(ext, e) {
			return strings.TrimSuffix(path, ext) + BlastSuffix, true
		}
	}
	return "", false
}

// handleNewDirectory watches a directory that was created or moved in and
// reports the pairs already inside it.
func (w *Watcher) handleNewDirectory(dirPath string) {
	w.mu.Lock()
	recursive := w.recursive
	fsw := w.watcher
	w.mu.Unlock()
	if fsw == nil {
		return
	}

	if recursive {
		_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if err := fsw.Add(path); err != nil {
					w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
				}
			}
			return nil
		})
	} else if err := fsw.Add(dirPath); err != nil {
		w.logger.Debug("watcher failed to add directory", zap.String("path", dirPath), zap.Error(err))
	}
	w.syncDirectory(dirPath, w.debouncePair)
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	clean := filepath.Clean(path)
	for _, root := range roots {
		rootClean := filepath.Clean(root)
		if rootClean == clean || inDir(rootClean, clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) debouncePair(p Pair) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[p.Blast]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, p.Blast)
		w.mu.Unlock()
		// Either file may have gone away during the delay.
		ready, ok := PairFor(p.Blast)
		if !ok {
			return
		}
		w.logger.Debug("watcher pair ready", zap.String("blast", ready.Blast), zap.String("fasta", ready.Fasta))
		if w.onPair != nil {
			w.onPair(ready)
		}
	})
	w.debounceMap[p.Blast] = t
}

func (w *Watcher) cancelDebounce(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[key]; ok {
		t.Stop()
		delete(w.debounceMap, key)
	}
}

// AddDirectory adds a root directory to watch and optionally reports the
// pairs already in it.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	for _, r := range w.roots {
		if filepath.Clean(r) == filepath.Clean(abs) {
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		return err
	}
	w.roots = append(w.roots, abs)
	w.logger.Debug("watcher directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting && w.onPair != nil {
		go w.syncDirectory(abs, w.onPair)
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	if !w.recursive {
		return w.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		return w.watcher.Add(path)
	})
}

// syncDirectory hands every complete pair under root to report. Pairs are
// keyed by their BLAST file, so each is reported once.
func (w *Watcher) syncDirectory(root string, report func(Pair)) {
	w.mu.Lock()
	recursive := w.recursive
	w.mu.Unlock()
	w.logger.Debug("watcher syncing directory", zap.String("root", root))
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, BlastSuffix) {
			return nil
		}
		if p, ok := PairFor(path); ok {
			report(p)
		}
		return nil
	})
}

// Directories returns a copy of the current watched root directories.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles reports every complete pair already present in the
// watched roots. Call it after Start.
func (w *Watcher) SyncExistingFiles() {
	if w.onPair == nil {
		return
	}
	for _, root := range w.Directories() {
		w.syncDirectory(root, w.onPair)
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
