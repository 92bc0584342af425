// Package watcher turns directories into upload inboxes: files created or written under a
// watched root are handed to an ingest callback after a quiet period.
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
	"golang.org/x/sync/semaphore"
)

const (
	defaultDebounce    = 400 * time.Millisecond
	defaultConcurrency = 2
)

// IngestFunc handles one settled file.
type IngestFunc func(ctx context.Context, path string)

// Inbox watches root directories recursively. Removals are ignored: documents are addressed by
// content, so deleting the source file leaves the ingested document in place.
type Inbox struct {
	roots    []string
	accept   func(path string) bool
	ingest   IngestFunc
	debounce time.Duration
	slots    *semaphore.Weighted
	logger   *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	ctx      context.Context
	pending  map[string]*time.Timer
	watched  map[string][]string // root -> directories added to fsnotify
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Inbox) { in.logger = l }
}

// WithDebounce sets how long a file must stay quiet before it is ingested.
func WithDebounce(d time.Duration) Option {
	return func(in *Inbox) {
		if d > 0 {
			in.debounce = d
		}
	}
}

// WithConcurrency bounds how many files are ingested at once.
func WithConcurrency(n int) Option {
	return func(in *Inbox) {
		if n > 0 {
			in.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewInbox creates an inbox over roots. accept filters files (nil accepts all).
func NewInbox(roots []string, accept func(path string) bool, ingest IngestFunc, opts ...Option) *Inbox {
	if accept == nil {
		accept = func(string) bool { return true }
	}
	in := &Inbox{
		roots:    append([]string(nil), roots...),
		accept:   accept,
		ingest:   ingest,
		debounce: defaultDebounce,
		slots:    semaphore.NewWeighted(defaultConcurrency),
		logger:   zap.NewNop(),
		pending:  make(map[string]*time.Timer),
		watched:  make(map[string][]string),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.logger == nil {
		in.logger = zap.NewNop()
	}
	return in
}

// Start begins watching. Missing roots are created. It runs until ctx is cancelled or Stop.
func (in *Inbox) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.started {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	in.watcher = w
	in.ctx = ctx
	for i, root := range in.roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = w.Close()
			in.watcher = nil
			return err
		}
		in.roots[i] = abs
		if err := in.addRootLocked(abs); err != nil {
			_ = w.Close()
			in.watcher = nil
			return err
		}
	}
	in.started = true
	in.logger.Info("inbox watching", zap.Strings("roots", in.roots))
	go in.run(ctx, w)
	return nil
}

func (in *Inbox) run(ctx context.Context, w *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			in.handleEvent(ev)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			in.logger.Warn("inbox watcher error", zap.Error(err))
		}
	}
}

func (in *Inbox) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	path := ev.Name
	if !in.underRoot(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		in.handleNewDirectory(path)
		return
	}
	if in.accept(path) {
		in.schedule(path)
	}
}

// handleNewDirectory watches a directory moved or created under a root and schedules its files.
func (in *Inbox) handleNewDirectory(dir string) {
	in.mu.Lock()
	w := in.watcher
	in.mu.Unlock()
	if w == nil {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.Add(path); err != nil {
				in.logger.Warn("inbox cannot watch directory", zap.String("path", path), zap.Error(err))
			}
			return nil
		}
		if in.accept(path) {
			in.schedule(path)
		}
		return nil
	})
}

func (in *Inbox) underRoot(path string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	clean := filepath.Clean(path)
	for _, root := range in.roots {
		if root == clean || inDir(root, clean) {
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

// schedule (re)starts the quiet-period timer for path.
func (in *Inbox) schedule(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.started {
		return
	}
	if t, ok := in.pending[path]; ok {
		t.Stop()
	}
	in.pending[path] = time.AfterFunc(in.debounce, func() {
		in.mu.Lock()
		delete(in.pending, path)
		ctx := in.ctx
		in.mu.Unlock()
		in.process(ctx, path)
	})
}

func (in *Inbox) process(ctx context.Context, path string) {
	if err := in.slots.Acquire(ctx, 1); err != nil {
		return
	}
	defer in.slots.Release(1)
	in.logger.Debug("inbox ingesting file", zap.String("path", path))
	if in.ingest != nil {
		in.ingest(ctx, path)
	}
}

// AddDirectory adds a root. With syncExisting the files already inside are ingested too.
func (in *Inbox) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	in.mu.Lock()
	for _, r := range in.roots {
		if r == abs {
			in.mu.Unlock()
			return nil
		}
	}
	if in.watcher != nil {
		if err := in.addRootLocked(abs); err != nil {
			in.mu.Unlock()
			return err
		}
	}
	in.roots = append(in.roots, abs)
	ctx := in.ctx
	in.mu.Unlock()

	in.logger.Info("inbox directory added", zap.String("path", abs))
	if syncExisting && ctx != nil {
		go in.syncDirectory(ctx, abs)
	}
	return nil
}

func (in *Inbox) addRootLocked(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := in.watcher.Add(path); err != nil {
			return err
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return err
	}
	in.watched[root] = dirs
	return nil
}

// RemoveDirectory stops watching root. Documents already ingested from it are kept.
func (in *Inbox) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	for i, r := range in.roots {
		if r != abs {
			continue
		}
		if in.watcher != nil {
			for _, d := range in.watched[abs] {
				_ = in.watcher.Remove(d)
			}
		}
		delete(in.watched, abs)
		in.roots = append(in.roots[:i], in.roots[i+1:]...)
		in.logger.Info("inbox directory removed", zap.String("path", abs))
		return nil
	}
	return nil
}

// Directories returns the watched roots.
func (in *Inbox) Directories() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.roots...)
}

// SyncExistingFiles ingests the accepted files already present in every root. Call it after
// Start; it blocks until all files were handed to the ingest callback.
func (in *Inbox) SyncExistingFiles(ctx context.Context) {
	for _, root := range in.Directories() {
		in.syncDirectory(ctx, root)
	}
}

func (in *Inbox) syncDirectory(ctx context.Context, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() && in.accept(path) {
			in.process(ctx, path)
		}
		return nil
	})
}

// Stop stops watching and cancels pending files.
func (in *Inbox) Stop() {
	in.mu.Lock()
	if !in.started {
		in.mu.Unlock()
		return
	}
	for path, t := range in.pending {
		t.Stop()
		delete(in.pending, path)
	}
	_ = in.watcher.Close()
	in.watcher = nil
	in.started = false
	in.mu.Unlock()
	in.stopOnce.Do(func() { close(in.done) })
}
