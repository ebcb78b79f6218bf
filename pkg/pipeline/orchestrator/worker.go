package orchestrator

import (
	"sync"

	"github.com/tabwatch/tabwatch/pkg/pipeline/monitor"
)

// pathWorker serializes event handling for one watched path. The queue is
// unbounded so the dispatcher never blocks; a slow cycle only delays
// later events for the same path.
type pathWorker struct {
	mu      sync.Mutex
	pending []monitor.Event

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
}

func newPathWorker() *pathWorker {
	return &pathWorker{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

// push enqueues an event and wakes the worker. Never blocks.
func (w *pathWorker) push(ev monitor.Event) {
	w.mu.Lock()
	w.pending = append(w.pending, ev)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// stop asks the worker to drain its queue and exit. Idempotent.
func (w *pathWorker) stop() {
	w.quitOnce.Do(func() { close(w.quit) })
}

// pop removes the oldest pending event.
func (w *pathWorker) pop() (monitor.Event, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return monitor.Event{}, false
	}
	ev := w.pending[0]
	w.pending = w.pending[1:]
	return ev, true
}

// run processes events strictly in order until stopped. On stop the
// remaining queue is drained first; cycles already underway finish.
func (w *pathWorker) run(wg *sync.WaitGroup, handle func(monitor.Event)) {
	defer wg.Done()

	drain := func() {
		for {
			ev, ok := w.pop()
			if !ok {
				return
			}
			handle(ev)
		}
	}

	for {
		select {
		case <-w.wake:
			drain()
		case <-w.quit:
			drain()
			return
		}
	}
}
