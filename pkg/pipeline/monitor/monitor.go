// Package monitor converts raw, noisy filesystem notifications into a
// clean stream of coalesced change events per watched file.
package monitor

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/checksum"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/logging"
)

// DefaultDebounce is the coalescing window for raw notifications.
const DefaultDebounce = 500 * time.Millisecond

// eventBuffer sizes the outgoing channels. Consumers are expected to
// drain promptly; the buffer only absorbs short bursts.
const eventBuffer = 64

// Options configures a Monitor.
type Options struct {
	// Debounce is the coalescing window. Zero uses DefaultDebounce.
	Debounce time.Duration

	// Algorithm digests file content for change detection.
	Algorithm checksum.Algorithm

	// SkipDigest compares size and mtime only. Cheaper, but cannot tell
	// a touch from a rewrite of identical length.
	SkipDigest bool
}

// baseline is the last observed state of a watched path.
type baseline struct {
	exists  bool
	size    int64
	modTime time.Time
	digest  string
}

// watchState tracks one watched path.
type watchState struct {
	base    baseline
	timer   *time.Timer
	renamed bool
}

// Monitor watches individual files via their parent directories and emits
// one Event per coalesced disturbance. Watching the parent survives the
// replace-by-rename pattern editors and atomic writers use.
type Monitor struct {
	opts    Options
	watcher *fsnotify.Watcher
	log     *logging.Logger

	mu      sync.Mutex
	watches map[string]*watchState
	dirRefs map[string]int
	closed  bool

	events  chan Event
	errs    chan error
	flushes chan string
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a Monitor and starts its event loop.
func New(opts Options) (*Monitor, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Algorithm == "" {
		opts.Algorithm = checksum.XXHash64
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		opts:    opts,
		watcher: fsw,
		log:     logging.Get("monitor"),
		watches: make(map[string]*watchState),
		dirRefs: make(map[string]int),
		events:  make(chan Event, eventBuffer),
		errs:    make(chan error, eventBuffer),
		flushes: make(chan string, eventBuffer),
		done:    make(chan struct{}),
	}

	m.wg.Add(1)
	go m.run()
	return m, nil
}

// Events is the stream of coalesced change events.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Errors reports watcher-level I/O failures. A failure for one path does
// not terminate monitoring of other paths.
func (m *Monitor) Errors() <-chan error {
	return m.errs
}

// Watch begins observation of a file path and establishes a baseline so
// the first real event can be classified. A path that does not exist yet
// is accepted and treated as awaiting creation; an unreachable parent
// directory is a WatchError.
func (m *Monitor) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &WatchError{Path: path, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &WatchError{Path: abs, Err: errors.New("monitor is closed")}
	}
	if _, ok := m.watches[abs]; ok {
		return nil
	}

	dir := filepath.Dir(abs)
	if m.dirRefs[dir] == 0 {
		if err := m.watcher.Add(dir); err != nil {
			return &WatchError{Path: abs, Err: err}
		}
	}
	m.dirRefs[dir]++

	base, err := m.observe(abs)
	if err != nil {
		m.releaseDirLocked(dir)
		return &WatchError{Path: abs, Err: err}
	}

	m.watches[abs] = &watchState{base: base}
	m.log.Info("watch started", "path", abs, "exists", base.exists)
	return nil
}

// Unwatch stops observation of a path and cancels any pending debounce
// timer. Unwatching an unknown path is a no-op.
func (m *Monitor) Unwatch(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.unwatchLocked(abs)
}

// UnwatchAll stops observation of every watched path.
func (m *Monitor) UnwatchAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for path := range m.watches {
		m.unwatchLocked(path)
	}
}

// Watched returns the currently watched paths.
func (m *Monitor) Watched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.watches))
	for p := range m.watches {
		paths = append(paths, p)
	}
	return paths
}

// Close stops all watches and releases resources.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for path := range m.watches {
		m.unwatchLocked(path)
	}
	m.mu.Unlock()

	close(m.done)
	err := m.watcher.Close()
	m.wg.Wait()
	close(m.events)
	close(m.errs)
	return err
}

func (m *Monitor) unwatchLocked(path string) {
	ws, ok := m.watches[path]
	if !ok {
		return
	}
	if ws.timer != nil {
		ws.timer.Stop()
	}
	delete(m.watches, path)
	m.releaseDirLocked(filepath.Dir(path))
	m.log.Info("watch stopped", "path", path)
}

func (m *Monitor) releaseDirLocked(dir string) {
	m.dirRefs[dir]--
	if m.dirRefs[dir] <= 0 {
		delete(m.dirRefs, dir)
		_ = m.watcher.Remove(dir)
	}
}

// run is the single event loop. Classification happens here exclusively,
// so events for one path are strictly ordered: no new notification is
// classified while a previous flush for the same path is in progress.
func (m *Monitor) run() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return

		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handleNotification(ev)

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.log.Error("watcher error", "error", err)
			select {
			case m.errs <- err:
			default:
			}

		case path := <-m.flushes:
			m.flush(path)
		}
	}
}

// handleNotification resets the debounce timer for the affected path.
func (m *Monitor) handleNotification(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	m.mu.Lock()
	defer m.mu.Unlock()

	ws, ok := m.watches[path]
	if !ok {
		return
	}

	if ev.Op&fsnotify.Rename != 0 {
		ws.renamed = true
	}

	if ws.timer != nil {
		ws.timer.Stop()
	}
	ws.timer = time.AfterFunc(m.opts.Debounce, func() {
		select {
		case m.flushes <- path:
		case <-m.done:
		}
	})
}

// flush compares the baseline against the current state and emits at most
// one event. Touch-without-write produces nothing.
func (m *Monitor) flush(path string) {
	m.mu.Lock()
	ws, ok := m.watches[path]
	if !ok {
		m.mu.Unlock()
		return
	}
	prev := ws.base
	renamed := ws.renamed
	ws.renamed = false

	cur, err := m.observe(path)
	if err != nil {
		m.mu.Unlock()
		m.log.Warn("observation failed", "path", path, "error", err)
		select {
		case m.errs <- &WatchError{Path: path, Err: err}:
		default:
		}
		return
	}
	ws.base = cur
	m.mu.Unlock()

	ev, emit := classify(path, prev, cur, renamed)
	if !emit {
		return
	}
	m.log.Info("change detected", "path", path, "kind", string(ev.Kind), "size", ev.Size)
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// classify derives the net change between two observations.
func classify(path string, prev, cur baseline, renamed bool) (Event, bool) {
	ev := Event{
		Path:           path,
		Timestamp:      time.Now().UTC(),
		PreviousDigest: prev.digest,
		CurrentDigest:  cur.digest,
		Size:           cur.size,
		ModifiedAt:     cur.modTime,
	}

	switch {
	case !prev.exists && cur.exists:
		ev.Kind = EventAdded
	case renamed:
		ev.Kind = EventRenamed
	case prev.exists && !cur.exists:
		ev.Kind = EventDeleted
		ev.Size = prev.size
		ev.ModifiedAt = prev.modTime
	case prev.exists && cur.exists && changed(prev, cur):
		ev.Kind = EventChanged
	default:
		return Event{}, false
	}

	return ev, true
}

// changed reports whether two observations of an existing file differ.
// With digests available the digest is authoritative; otherwise size and
// mtime decide.
func changed(prev, cur baseline) bool {
	if prev.digest != "" && cur.digest != "" {
		return prev.digest != cur.digest
	}
	return prev.size != cur.size || !prev.modTime.Equal(cur.modTime)
}

// observe captures the current state of a path. A missing file is a valid
// observation, not an error.
func (m *Monitor) observe(path string) (baseline, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return baseline{}, nil
	}
	if err != nil {
		return baseline{}, err
	}

	b := baseline{
		exists:  true,
		size:    info.Size(),
		modTime: info.ModTime(),
	}

	if !m.opts.SkipDigest {
		digest, err := checksum.File(path, m.opts.Algorithm)
		if err != nil {
			return baseline{}, err
		}
		b.digest = digest
	}

	return b, nil
}
