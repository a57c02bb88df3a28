// Package watcher implements the File Watcher (C10, §4.10): a debounced
// fsnotify observer that routes filesystem events to discovery batches and
// cascading deletes. It never parses — that's exclusively the processor's
// job; the watcher only decides what became discovered and what went away.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/filestate"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
	"github.com/corpusgraph/ingestor/internal/platform/logger"
)

// opKind is what debounced batch a path landed in last.
type opKind int

const (
	opUpsert opKind = iota
	opRemove
)

// Watcher watches a disk root recursively and, after a debounce interval,
// flushes pending add/change events to markDiscoveredBatch and pending
// removals to a cascading delete: one timer reset per event, a stop
// channel, a mutex-guarded pause flag.
type Watcher struct {
	Root            string
	ProjectID       string
	Debounce        time.Duration
	Include         []string
	Exclude         []string
	FileState       *filestate.Machine
	Store           graphstore.Store
	OnBatchDone     func(created, reset, removed int)
	Log             *logger.Logger

	fsw      *fsnotify.Watcher
	stopChan chan struct{}

	mu      sync.Mutex
	paused  bool
	pending map[string]opKind
	timer   *time.Timer
}

func New(root, projectID string, debounce time.Duration, include, exclude []string, fs *filestate.Machine, store graphstore.Store, log *logger.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		Root: root, ProjectID: projectID, Debounce: debounce,
		Include: include, Exclude: exclude,
		FileState: fs, Store: store,
		Log:     log.With("component", "watcher.Watcher"),
		pending: map[string]opKind{},
	}
}

// Start begins watching Root and every subdirectory beneath it.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addRecursive(fsw, w.Root); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw
	w.stopChan = make(chan struct{})
	go w.loop(ctx)
	return nil
}

func (w *Watcher) Stop() {
	if w.stopChan != nil {
		close(w.stopChan)
	}
	if w.fsw != nil {
		w.fsw.Close()
	}
}

// Pause silently drops incoming events until Resume is called.
func (w *Watcher) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = true
}

func (w *Watcher) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = false
}

// WithPause pauses the watcher for the duration of fn, then resumes it
// even if fn panics or returns an error — for callers (e.g. a bulk
// recover()) that mutate the same tree the watcher observes.
func (w *Watcher) WithPause(fn func() error) error {
	w.Pause()
	defer w.Resume()
	return fn()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.Log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	w.mu.Lock()
	if w.paused {
		w.mu.Unlock()
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(ev.Name)
		}
	}

	if !matchesInclude(w.Include, w.relPath(ev.Name)) || matchesExclude(w.Exclude, w.relPath(ev.Name)) {
		w.mu.Unlock()
		return
	}

	switch {
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.pending[ev.Name] = opRemove
	case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.pending[ev.Name] = opUpsert
	default:
		w.mu.Unlock()
		return
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.Debounce, w.flush)
	w.mu.Unlock()
}

func (w *Watcher) relPath(abs string) string {
	rel, err := filepath.Rel(w.Root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.paused || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.pending
	w.pending = map[string]opKind{}
	w.mu.Unlock()

	ctx := context.Background()
	var toDiscover []filestate.DiscoverCandidate
	var toRemove []string

	for path, op := range batch {
		switch op {
		case opUpsert:
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			rel := w.relPath(path)
			data, err := os.ReadFile(path)
			if err != nil {
				w.Log.Warn("watcher read failed", "path", path, "error", err)
				continue
			}
			toDiscover = append(toDiscover, filestate.DiscoverCandidate{
				RelPath: rel, AbsPath: path,
				Name: filepath.Base(rel), Extension: filepath.Ext(rel),
				Directory:      filepath.ToSlash(filepath.Dir(rel)),
				RawContentHash: domain.Hash16(data),
			})
		case opRemove:
			toRemove = append(toRemove, w.relPath(path))
		}
	}

	var created, reset, removed int
	if len(toDiscover) > 0 {
		result, err := w.FileState.MarkDiscoveredBatch(ctx, w.ProjectID, toDiscover)
		if err != nil {
			w.Log.Warn("markDiscoveredBatch failed", "error", err)
		} else {
			created = len(result.Created)
			reset = len(result.Reset)
		}
	}
	for _, rel := range toRemove {
		if err := w.cascadeDelete(ctx, rel); err != nil {
			w.Log.Warn("cascading delete failed", "path", rel, "error", err)
			continue
		}
		removed++
	}

	if w.OnBatchDone != nil {
		w.OnBatchDone(created, reset, removed)
	}
}

// cascadeDelete removes a File node plus every node DEFINED_IN it
// (including Scopes) and each of those nodes' EmbeddingChunk children
// (§4.10: "deletions issue a cascading delete (File and all its Scopes,
// chunks, and DEFINED_IN children)").
func (w *Watcher) cascadeDelete(ctx context.Context, relPath string) error {
	fileUUID := domain.FileUUID(w.ProjectID, relPath)

	children, err := w.Store.GetInboundRelationships(ctx, fileUUID, domain.EdgeDefinedIn)
	if err != nil {
		return err
	}

	byLabel := map[string][]string{}
	for _, rel := range children {
		nodes, err := w.Store.GetNodesByUUIDs(ctx, []string{rel.FromUUID})
		if err != nil || len(nodes) == 0 {
			continue
		}
		n := nodes[0]
		byLabel[n.PrimaryLabel()] = append(byLabel[n.PrimaryLabel()], n.UUID)

		chunks, err := w.Store.GetChunkChildren(ctx, n.UUID)
		if err != nil {
			continue
		}
		for _, c := range chunks {
			byLabel["EmbeddingChunk"] = append(byLabel["EmbeddingChunk"], c.UUID)
		}
	}
	for label, uuids := range byLabel {
		if err := w.Store.DeleteNodes(ctx, label, uuids); err != nil {
			return err
		}
	}
	return w.Store.DeleteNodes(ctx, "File", []string{fileUUID})
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func matchesInclude(patterns []string, rel string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func matchesExclude(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
