package secret

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// replaceCheckDelay lets an atomic replace (rename) settle before deciding
// whether a Remove event is a real deletion.
const replaceCheckDelay = 50 * time.Millisecond

// Watcher observes a secret directory and reports which keys changed. Edits
// made by the process through FileStore fire as well; callers dedupe by
// content through the hash check below, so rewrites of identical content
// stay silent.
type Watcher struct {
	dir      string
	onChange func(key string)
	watcher  *fsnotify.Watcher

	mu         sync.Mutex
	lastHashes map[string]string
}

// NewWatcher creates a watcher over the store's directory. onChange runs on
// the watcher goroutine for every key whose content actually changed.
func NewWatcher(store *FileStore, onChange func(key string)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dir:        store.Dir(),
		onChange:   onChange,
		watcher:    fsWatcher,
		lastHashes: make(map[string]string),
	}, nil
}

// Start begins watching until ctx ends.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		log.Errorf("failed to watch secret directory %s: %v", w.dir, err)
		return err
	}
	log.Debugf("watching secret directory: %s", w.dir)

	// Seed the hash table so pre-existing files do not fire on the first
	// event.
	entries, err := os.ReadDir(w.dir)
	if err == nil {
		for _, entry := range entries {
			if key, ok := keyFromPath(entry.Name()); ok {
				w.recordHash(key, filepath.Join(w.dir, entry.Name()))
			}
		}
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case errWatch, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("secret watcher error: %v", errWatch)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	key, ok := keyFromPath(event.Name)
	if !ok {
		return
	}
	relevantOps := fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	if event.Op&relevantOps == 0 {
		return
	}
	log.Debugf("secret file event: %s %s", event.Op.String(), filepath.Base(event.Name))

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		// An atomic replace can surface as Rename before the new file is
		// visible. Wait briefly and re-check.
		time.Sleep(replaceCheckDelay)
		if _, statErr := os.Stat(event.Name); statErr != nil {
			w.mu.Lock()
			_, known := w.lastHashes[key]
			delete(w.lastHashes, key)
			w.mu.Unlock()
			if known {
				w.onChange(key)
			}
			return
		}
	}

	if w.recordHash(key, event.Name) {
		w.onChange(key)
	}
}

// recordHash updates the content hash for key and reports whether the
// content differs from what was seen before.
func (w *Watcher) recordHash(key, path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastHashes[key] == digest {
		return false
	}
	w.lastHashes[key] = digest
	return true
}

func keyFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, secretFileExt) {
		return "", false
	}
	return strings.TrimSuffix(name, secretFileExt), true
}
