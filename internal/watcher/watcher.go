// Package watcher reports icon file changes under a directory tree using
// fsnotify. Events are delivered on a channel; debouncing is left to the
// consumer.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/conneroisu/iconsprite/internal/scanner"
	"github.com/fsnotify/fsnotify"
)

// eventBuffer bounds the event queue. Events beyond it are dropped; the
// consumer only needs to know that something changed.
const eventBuffer = 100

// ErrClosed is returned when adding paths to a stopped watcher.
var ErrClosed = errors.New("watcher is closed")

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type EventType
	Path string
}

// FileFilter determines if a changed path is reported
type FileFilter func(path string) bool

// FileWatcher watches a directory tree and reports changes to files that
// pass every filter.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	logger  logging.Logger
	events  chan ChangeEvent

	mutex   sync.RWMutex
	filters []FileFilter
	roots   []string
	// dirs holds every directory under a root with an active watch.
	dirs map[string]struct{}
	// boundaries maps a root added with AddRecursiveWithin to its boundary.
	boundaries map[string]string
	// pending holds missing roots waiting to be created.
	pending map[string]string

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(logger logging.Logger, filters ...FileFilter) (*FileWatcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatcher{
		watcher:    w,
		logger:     logger.WithComponent("watcher"),
		events:     make(chan ChangeEvent, eventBuffer),
		filters:    filters,
		dirs:       make(map[string]struct{}),
		boundaries: make(map[string]string),
		pending:    make(map[string]string),
		done:       make(chan struct{}),
	}, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// Events returns the channel change events are delivered on. It is closed
// after Stop.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// AddRecursive watches root and every directory below it that discovery
// would descend into.
func (fw *FileWatcher) AddRecursive(root string) error {
	select {
	case <-fw.done:
		return ErrClosed
	default:
	}

	root = filepath.Clean(root)
	fw.mutex.Lock()
	fw.roots = append(fw.roots, root)
	fw.mutex.Unlock()

	return fw.addTree(root)
}

// AddRecursiveWithin watches root like AddRecursive, but root may be
// missing or removed later. While it is missing, the nearest existing
// ancestor inside boundary is watched and root is added once it appears.
func (fw *FileWatcher) AddRecursiveWithin(root, boundary string) error {
	select {
	case <-fw.done:
		return ErrClosed
	default:
	}

	root, boundary = filepath.Clean(root), filepath.Clean(boundary)
	if !isWithin(root, boundary) {
		return fmt.Errorf("watch root %s is outside %s", root, boundary)
	}

	fw.mutex.Lock()
	fw.boundaries[root] = boundary
	fw.mutex.Unlock()

	if isDir(root) {
		return fw.AddRecursive(root)
	}

	fw.mutex.Lock()
	fw.pending[root] = boundary
	fw.mutex.Unlock()
	fw.logger.Debug(context.Background(), "Watch root missing, waiting for it", "root", root)
	return fw.watchAncestor(root, boundary)
}

// watchAncestor watches the nearest existing directory above root that is
// still inside boundary.
func (fw *FileWatcher) watchAncestor(root, boundary string) error {
	for dir := filepath.Dir(root); isWithin(dir, boundary); dir = filepath.Dir(dir) {
		if isDir(dir) {
			return fw.watcher.Add(dir)
		}
	}
	return fmt.Errorf("no existing directory above %s inside %s", root, boundary)
}

// resolvePending adds pending roots that now exist and moves the watch of
// the others closer to them.
func (fw *FileWatcher) resolvePending(ctx context.Context) {
	fw.mutex.RLock()
	pending := make(map[string]string, len(fw.pending))
	for root, boundary := range fw.pending {
		pending[root] = boundary
	}
	fw.mutex.RUnlock()

	for root, boundary := range pending {
		if !isDir(root) {
			if err := fw.watchAncestor(root, boundary); err != nil {
				fw.logger.Warn(ctx, err, "Cannot watch for missing root", "root", root)
				continue
			}
			// it may have appeared before the ancestor watch was in place
			if !isDir(root) {
				continue
			}
		}
		fw.activate(ctx, root)
	}
}

// activate turns a pending root into a watched one and reports the icons
// already inside it.
func (fw *FileWatcher) activate(ctx context.Context, root string) {
	fw.mutex.Lock()
	if _, ok := fw.pending[root]; !ok {
		fw.mutex.Unlock()
		return
	}
	delete(fw.pending, root)
	fw.roots = append(fw.roots, root)
	fw.mutex.Unlock()

	if err := fw.addTree(root); err != nil {
		fw.logger.Warn(ctx, err, "Failed to watch created root", "root", root)
		return
	}
	fw.logger.Debug(ctx, "Watch root created", "root", root)

	for _, path := range scanner.New(fw.logger).FindIcons(ctx, root) {
		fw.emit(ctx, ChangeEvent{Type: EventTypeCreated, Path: path})
	}
}

// forgetDirectory drops the watches of dir and everything below it. It
// reports false when dir was not a watched directory. A removed root with
// a boundary goes back to pending.
func (fw *FileWatcher) forgetDirectory(ctx context.Context, dir string) bool {
	fw.mutex.Lock()
	if _, ok := fw.dirs[dir]; !ok {
		fw.mutex.Unlock()
		return false
	}

	var gone []string
	for d := range fw.dirs {
		if isWithin(d, dir) {
			delete(fw.dirs, d)
			gone = append(gone, d)
		}
	}

	roots := make([]string, 0, len(fw.roots))
	repend := false
	for _, root := range fw.roots {
		if !isWithin(root, dir) {
			roots = append(roots, root)
			continue
		}
		if boundary, ok := fw.boundaries[root]; ok {
			fw.pending[root] = boundary
			repend = true
		}
	}
	fw.roots = roots
	fw.mutex.Unlock()

	for _, d := range gone {
		// the kernel may already have dropped the watch
		_ = fw.watcher.Remove(d)
	}
	if repend {
		fw.resolvePending(ctx)
	}
	return true
}

func (fw *FileWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			fw.logger.Warn(context.Background(), err, "Skipping unreadable directory", "path", path)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && scanner.IsIgnored(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return err
		}
		fw.mutex.Lock()
		fw.dirs[path] = struct{}{}
		fw.mutex.Unlock()
		return nil
	})
}

// Start starts delivering events until ctx is done or Stop is called
func (fw *FileWatcher) Start(ctx context.Context) {
	fw.wg.Add(1)
	go fw.watchLoop(ctx)
}

// Stop stops the watcher and closes the events channel. It is safe to call
// more than once.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
		fw.wg.Wait()
		close(fw.events)
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	defer fw.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	if event.Has(fsnotify.Create) && isDir(event.Name) {
		if fw.insideWatchedTree(event.Name) {
			fw.watchNewDirectory(ctx, event.Name)
		} else {
			fw.resolvePending(ctx)
		}
		return
	}

	if (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) && fw.forgetDirectory(ctx, event.Name) {
		// icons below it vanished without events of their own
		fw.send(ctx, ChangeEvent{Type: EventTypeDeleted, Path: event.Name})
		return
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventTypeCreated
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// a rename reports the old name; the new name arrives as a create
		eventType = EventTypeDeleted
	default:
		// writes and attribute changes such as a touch
		eventType = EventTypeModified
	}

	fw.emit(ctx, ChangeEvent{Type: eventType, Path: event.Name})
}

// watchNewDirectory starts watching a directory created after AddRecursive
// and reports icons already inside it, since they may have been written
// before the watch was in place.
func (fw *FileWatcher) watchNewDirectory(ctx context.Context, dir string) {
	if !fw.insideWatchedTree(dir) {
		return
	}
	if err := fw.addTree(dir); err != nil {
		fw.logger.Warn(ctx, err, "Failed to watch new directory", "path", dir)
		return
	}
	fw.logger.Debug(ctx, "Watching new directory", "path", dir)

	for _, path := range scanner.New(fw.logger).FindIcons(ctx, dir) {
		fw.emit(ctx, ChangeEvent{Type: EventTypeCreated, Path: path})
	}
}

func (fw *FileWatcher) insideWatchedTree(path string) bool {
	fw.mutex.RLock()
	roots := fw.roots
	fw.mutex.RUnlock()

	for _, root := range roots {
		if !isWithin(path, root) {
			continue
		}
		rel, _ := filepath.Rel(root, path)
		if !hasIgnoredSegment(rel) {
			return true
		}
	}
	return false
}

func (fw *FileWatcher) emit(ctx context.Context, event ChangeEvent) {
	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Path) {
			return
		}
	}
	fw.send(ctx, event)
}

// send queues event without filtering.
func (fw *FileWatcher) send(ctx context.Context, event ChangeEvent) {
	select {
	case fw.events <- event:
	default:
		fw.logger.Debug(ctx, "Event queue full, dropping event", "path", event.Path, "type", event.Type.String())
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// isWithin reports whether path is dir or below it.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hasIgnoredSegment(rel string) bool {
	if rel == "." {
		return false
	}
	for _, segment := range strings.Split(rel, string(filepath.Separator)) {
		if scanner.IsIgnored(segment) {
			return true
		}
	}
	return false
}

// IconFilter reports icon files only.
func IconFilter(path string) bool {
	return scanner.IsIcon(path)
}

// UnderRootFilter reports paths below root that discovery would visit:
// no hidden or dependency directory on the way.
func UnderRootFilter(root string) FileFilter {
	root = filepath.Clean(root)
	return func(path string) bool {
		if !isWithin(path, root) {
			return false
		}
		rel, _ := filepath.Rel(root, path)
		return !hasIgnoredSegment(rel)
	}
}
