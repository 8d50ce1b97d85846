// Package watcher mirrors a session's code files into a workspace directory
// and feeds local edits back into the session store.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"diffstream/internal/session"
)

const debounceInterval = 500 * time.Millisecond

// slotOrder fixes the materialization order so directory listings are stable.
var slotOrder = []session.Slot{session.SlotUser, session.SlotStd, session.SlotGen}

// extensions maps a code file's language to its workspace file extension.
var extensions = map[string]string{
	"cpp":    ".cpp",
	"c":      ".c",
	"python": ".py",
	"go":     ".go",
	"java":   ".java",
}

// FileName returns the workspace file name backing a slot, e.g. "user.cpp".
func FileName(slot session.Slot, lang string) string {
	ext, ok := extensions[lang]
	if !ok {
		ext = ".txt"
	}
	return string(slot) + ext
}

// Workspace watches one directory whose files back the loaded session's code
// slots. Edits are debounced and written back through Store.UpdateCode, which
// marks the session unsaved only when the content actually changed.
type Workspace struct {
	dir    string
	store  *session.Store
	logger *slog.Logger

	fsWatcher *fsnotify.Watcher
	cancel    chan struct{}
	done      sync.WaitGroup

	mu      sync.Mutex
	slots   map[string]session.Slot // base name → slot
	pending map[string]struct{}     // base names with unprocessed events
	timer   *time.Timer
}

// Open materializes the loaded session's code files into dir (creating it if
// needed) and starts watching them. The store must have a session loaded.
func Open(dir string, store *session.Store, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sess := store.Session()
	if sess == nil {
		return nil, session.ErrNotLoaded
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	w := &Workspace{
		dir:     dir,
		store:   store,
		logger:  logger,
		cancel:  make(chan struct{}),
		slots:   make(map[string]session.Slot),
		pending: make(map[string]struct{}),
	}

	for _, slot := range slotOrder {
		code := sess.Code(slot)
		if code == nil {
			continue
		}
		name := FileName(slot, code.Lang)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(code.Content), 0o644); err != nil {
			return nil, err
		}
		w.slots[name] = slot
	}

	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsW.Add(dir); err != nil {
		fsW.Close()
		return nil, err
	}
	w.fsWatcher = fsW

	w.done.Add(1)
	go w.watchLoop()
	return w, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Refresh rewrites any workspace file whose slot content diverged from the
// store (for example after an AI generation). The resulting fsnotify events
// sync the same content back and leave the unsaved flag untouched.
func (w *Workspace) Refresh() error {
	sess := w.store.Session()
	if sess == nil {
		return session.ErrNotLoaded
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, slot := range w.slots {
		code := sess.Code(slot)
		if code == nil {
			continue
		}
		path := filepath.Join(w.dir, name)
		if data, err := os.ReadFile(path); err == nil && string(data) == code.Content {
			continue
		}
		if err := os.WriteFile(path, []byte(code.Content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// watchLoop processes fsnotify events with debouncing.
func (w *Workspace) watchLoop() {
	defer w.done.Done()

	for {
		select {
		case <-w.cancel:
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(event.Name)

			w.mu.Lock()
			if _, tracked := w.slots[name]; !tracked {
				w.mu.Unlock()
				continue
			}
			w.pending[name] = struct{}{}
			// Debounce: reset timer on each event.
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(debounceInterval, w.sync)
			w.mu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("workspace watch error", "dir", w.dir, "error", err)
		}
	}
}

// sync reads each pending file and pushes its content into the store.
func (w *Workspace) sync() {
	w.mu.Lock()
	batch := make(map[string]session.Slot, len(w.pending))
	for name := range w.pending {
		batch[name] = w.slots[name]
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	for name, slot := range batch {
		data, err := os.ReadFile(filepath.Join(w.dir, name))
		if err != nil {
			w.logger.Warn("read workspace file", "file", name, "error", err)
			continue
		}
		if err := w.store.UpdateCode(slot, string(data)); err != nil {
			w.logger.Warn("update code slot", "slot", slot, "error", err)
		}
	}
}

// Close stops watching. Pending debounced edits are flushed before return.
func (w *Workspace) Close() {
	close(w.cancel)
	w.fsWatcher.Close()
	w.done.Wait()

	w.mu.Lock()
	flush := len(w.pending) > 0
	w.mu.Unlock()
	if flush {
		w.sync()
	}
}
