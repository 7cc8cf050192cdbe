package action

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads a catalog override file and atomically swaps the
// active catalog. Readers call Catalog() per batch; a half-written override
// never becomes active because reloads that fail to parse keep the previous
// catalog.
type Watcher struct {
	path    string
	logger  *log.Logger
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current *Catalog

	done chan struct{}
	wg   sync.WaitGroup
}

// debounce window for editors that fire multiple write events per save.
const reloadDebounce = 200 * time.Millisecond

// NewWatcher loads path once and starts watching its directory for changes.
func NewWatcher(path string, logger *log.Logger) (*Watcher, error) {
	cat, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	// Watch the directory, not the file: rename-based atomic saves replace
	// the inode and would silently detach a file watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch catalog dir: %w", err)
	}

	w := &Watcher{
		path:    path,
		logger:  logger,
		watcher: fw,
		current: cat,
		done:    make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Catalog returns the currently active catalog.
func (w *Watcher) Catalog() *Catalog {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching. The last loaded catalog stays readable.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("WARN catalog_watch_error error=%v", err)
		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cat, err := Load(w.path)
	if err != nil {
		w.logger.Printf("WARN catalog_reload_failed path=%s error=%v", w.path, err)
		return
	}
	w.mu.Lock()
	w.current = cat
	w.mu.Unlock()
	w.logger.Printf("INFO catalog_reloaded path=%s", w.path)
}
