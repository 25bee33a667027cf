package survey

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/garrettyarmo/forge-sub000/internal/logging"
)

// debounceWindow absorbs the burst of Write events one save often produces,
// grounded on the teacher's filesystem watcher debounce interval.
const debounceWindow = 400 * time.Millisecond

// Watcher re-triggers onChange for a single local repository's changed
// files as they settle on disk, the supplemental `survey --watch` feature
// (SPEC_FULL.md §8) layered atop local_paths repos. It is not part of
// spec.md's required incremental pipeline and never touches persisted
// survey state directly — callers decide what a change means.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	onChange func(path string)

	mu       sync.Mutex
	debounce map[string]time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher prepares a Watcher rooted at root. Call Start to begin.
func NewWatcher(root string, onChange func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		root:     root,
		onChange: onChange,
		debounce: make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start adds every non-denied directory under root to the watch list and
// runs the event loop until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if pathDenylist[d.Name()] {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			logging.SurveyDebug("watch: could not add %s: %v", path, addErr)
		}
		return nil
	})
	if err != nil {
		return err
	}
	go w.run(ctx)
	return nil
}

// Stop halts the event loop and releases the underlying OS watch handles.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.fsw.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	ticker := time.NewTicker(debounceWindow / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.noteEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Survey("watch: error: %v", err)
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) noteEvent(ev fsnotify.Event) {
	if !recognizedExt(ev.Name) {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	w.mu.Lock()
	w.debounce[ev.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, t := range w.debounce {
		if now.Sub(t) >= debounceWindow {
			ready = append(ready, path)
			delete(w.debounce, path)
		}
	}
	w.mu.Unlock()
	for _, path := range ready {
		w.onChange(path)
	}
}
