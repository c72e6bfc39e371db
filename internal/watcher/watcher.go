// Package watcher provides a development-mode file watcher that publishes a
// config.changed event when a watched configuration file is modified, so a
// supervisor can reload or restart the server.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/FabG/chainlit-ui/internal/event"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher watches configuration files for changes. Events are debounced:
// editors that write, truncate, and rename on save produce a single
// config.changed publication.
type Watcher struct {
	watcher  *fsnotify.Watcher
	bus      *event.Bus
	files    map[string]bool
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	mu       sync.Mutex
}

// New creates a watcher for the given file paths. Paths that do not exist are
// skipped; when none of the paths exist the watcher is disabled and New
// returns nil.
func New(bus *event.Bus, paths []string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	files := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err != nil {
			log.Debug().Str("path", abs).Msg("config file missing, not watched")
			continue
		}
		files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	if len(files) == 0 {
		log.Debug().Msg("no config files to watch, watcher disabled")
		return nil, nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the containing directories rather than the files themselves:
	// editors replace files on save, and a watch on the old inode goes stale.
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, err
		}
	}

	log.Info().Int("files", len(files)).Msg("config watcher initialized")

	return &Watcher{
		watcher:  w,
		bus:      bus,
		files:    files,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching for changes.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := ""

	for {
		select {
		case <-w.stopCh:
			timer.Stop()
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !w.files[abs] {
				continue
			}
			pending = abs
			timer.Reset(w.debounce)
		case <-timer.C:
			if pending != "" {
				w.publish(pending)
				pending = ""
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) publish(path string) {
	log.Info().Str("path", path).Msg("config file changed")
	w.bus.PublishSync(event.ConfigChanged, event.ConfigChangedData{Path: path})
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	select {
	case <-w.stopCh:
		// Already stopped
	default:
		close(w.stopCh)
	}

	if started {
		<-w.doneCh
	}

	return w.watcher.Close()
}
