package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	debounceDelay   = 50 * time.Millisecond
	eventBufferSize = 100
)

// ItemEvent reports that a file in the workspace changed on disk.
type ItemEvent struct {
	// Path is relative to the workspace root, slash separated.
	Path      string
	Removed   bool
	Timestamp time.Time
}

// ItemWatcher watches the workspace root and its item folders using fsnotify.
// The hidden state dir, the archive and temp or lock files are ignored.
type ItemWatcher struct {
	root    string
	skip    []string
	watcher *fsnotify.Watcher
	log     zerolog.Logger

	mu          sync.RWMutex
	subscribers map[string][]chan<- ItemEvent // pattern -> channels
	debounce    map[string]*time.Timer        // path -> debounce timer
	removed     map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewItemWatcher starts watching root. Top-level directories named in skip
// are not watched.
func NewItemWatcher(root string, skip []string, log zerolog.Logger) (*ItemWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	iw := &ItemWatcher{
		root:        root,
		skip:        skip,
		watcher:     watcher,
		log:         log,
		subscribers: make(map[string][]chan<- ItemEvent),
		debounce:    make(map[string]*time.Timer),
		removed:     make(map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
	}

	if err := iw.addTree(); err != nil {
		cancel()
		_ = watcher.Close()
		return nil, err
	}

	iw.wg.Add(1)
	go iw.run()

	return iw, nil
}

func (iw *ItemWatcher) addTree() error {
	if err := iw.watcher.Add(iw.root); err != nil {
		return err
	}
	entries, err := os.ReadDir(iw.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && !iw.skipped(e.Name()) {
			if err := iw.watcher.Add(filepath.Join(iw.root, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (iw *ItemWatcher) skipped(dir string) bool {
	if strings.HasPrefix(dir, ".") {
		return true
	}
	for _, s := range iw.skip {
		if s == dir {
			return true
		}
	}
	return false
}

// Watch returns a channel that receives events for paths matching the
// doublestar pattern. An empty pattern matches everything.
func (iw *ItemWatcher) Watch(ctx context.Context, pattern string) (<-chan ItemEvent, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}
	ch := make(chan ItemEvent, eventBufferSize)

	iw.mu.Lock()
	iw.subscribers[pattern] = append(iw.subscribers[pattern], ch)
	iw.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			iw.unsubscribe(pattern, ch)
		case <-iw.ctx.Done():
			// Watcher is closing, channel will be closed by Close()
		}
	}()

	return ch, nil
}

// Close stops watching and closes all subscriber channels.
func (iw *ItemWatcher) Close() error {
	iw.cancel()

	iw.mu.Lock()
	for _, timer := range iw.debounce {
		timer.Stop()
	}
	for _, subs := range iw.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	iw.subscribers = make(map[string][]chan<- ItemEvent)
	iw.mu.Unlock()

	err := iw.watcher.Close()
	iw.wg.Wait()
	return err
}

func (iw *ItemWatcher) unsubscribe(pattern string, ch chan<- ItemEvent) {
	iw.mu.Lock()
	defer iw.mu.Unlock()

	subs := iw.subscribers[pattern]
	for i, sub := range subs {
		if sub == ch {
			iw.subscribers[pattern] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(iw.subscribers[pattern]) == 0 {
		delete(iw.subscribers, pattern)
	}
}

func (iw *ItemWatcher) run() {
	defer iw.wg.Done()

	for {
		select {
		case <-iw.ctx.Done():
			return
		case event, ok := <-iw.watcher.Events:
			if !ok {
				return
			}
			iw.handleEvent(event)
		case err, ok := <-iw.watcher.Errors:
			if !ok {
				return
			}
			iw.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (iw *ItemWatcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(iw.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	top, _, nested := strings.Cut(rel, "/")

	// New top-level folders are watched as they appear.
	if !nested && event.Has(fsnotify.Create) {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if !iw.skipped(top) {
				if err := iw.watcher.Add(event.Name); err != nil {
					iw.log.Warn().Err(err).Str("dir", rel).Msg("watch folder")
				}
			}
			return
		}
	}

	if !nested || iw.skipped(top) {
		return
	}

	filename := filepath.Base(event.Name)
	if strings.HasPrefix(filename, ".") ||
		strings.HasSuffix(filename, ".tmp") ||
		strings.HasSuffix(filename, ".lock") {
		return
	}

	removed := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	if !removed && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	iw.mu.Lock()
	if timer, exists := iw.debounce[rel]; exists {
		timer.Stop()
	}
	iw.removed[rel] = removed
	iw.debounce[rel] = time.AfterFunc(debounceDelay, func() {
		iw.notifySubscribers(rel)
	})
	iw.mu.Unlock()
}

func (iw *ItemWatcher) notifySubscribers(rel string) {
	iw.mu.Lock()
	defer iw.mu.Unlock()

	event := ItemEvent{
		Path:      rel,
		Removed:   iw.removed[rel],
		Timestamp: time.Now(),
	}

	for pattern, subs := range iw.subscribers {
		if !matchesPattern(pattern, rel) {
			continue
		}
		for _, ch := range subs {
			select {
			case ch <- event:
			default:
				// Channel full, drop event to prevent blocking
			}
		}
	}

	delete(iw.debounce, rel)
	delete(iw.removed, rel)
}

func matchesPattern(pattern, path string) bool {
	if pattern == "" {
		return true
	}
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}
