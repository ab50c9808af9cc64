package viewpoint

import (
	"sync"
	"time"
)

// LifecycleState names a Page.lifecycleEvent Name this package recognizes
// as a navigation milestone, in the same vocabulary Playwright uses for
// Page.WaitForLoadState.
type LifecycleState string

const (
	LifecycleLoad             LifecycleState = "load"
	LifecycleDOMContentLoaded LifecycleState = "DOMContentLoaded"
	LifecycleNetworkIdle      LifecycleState = "networkIdle"
)

// navDetector tracks the main frame's navigation state from Page domain
// events, so WaitForNavigation/WaitForLoadState (wait.go) can block on a
// condition instead of racing frameStoppedLoading against lifecycleEvent,
// which chromedp's old nav.go did ad hoc per call; this centralizes it per
// page the way xk6-browser's frame_session.go keeps a single navigation
// watcher per session.
type navDetector struct {
	mu sync.Mutex

	url       string
	loading   bool
	committed bool

	lifecycle map[LifecycleState]time.Time

	waitersMu sync.Mutex
	waiters   []navWaiter
}

type navWaiter struct {
	check func(*navDetector) bool
	ch    chan struct{}
}

func newNavDetector() *navDetector {
	return &navDetector{lifecycle: make(map[LifecycleState]time.Time)}
}

func (n *navDetector) onRequested(url string) {
	n.mu.Lock()
	n.url = url
	n.mu.Unlock()
}

func (n *navDetector) onStarted() {
	n.mu.Lock()
	n.loading = true
	n.committed = false
	n.lifecycle = make(map[LifecycleState]time.Time)
	n.mu.Unlock()
}

func (n *navDetector) onCommitted(url string) {
	n.mu.Lock()
	n.url = url
	n.committed = true
	n.mu.Unlock()
	n.wake()
}

func (n *navDetector) onStopped() {
	n.mu.Lock()
	n.loading = false
	n.mu.Unlock()
	n.wake()
}

func (n *navDetector) onLifecycle(name string, at time.Time) {
	n.mu.Lock()
	n.lifecycle[LifecycleState(name)] = at
	n.mu.Unlock()
	n.wake()
}

func (n *navDetector) hasLifecycle(state LifecycleState) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.lifecycle[state]
	return ok
}

func (n *navDetector) currentURL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.url
}

func (n *navDetector) wake() {
	n.waitersMu.Lock()
	remaining := n.waiters[:0]
	for _, w := range n.waiters {
		if w.check(n) {
			close(w.ch)
		} else {
			remaining = append(remaining, w)
		}
	}
	n.waiters = remaining
	n.waitersMu.Unlock()
}

// subscribe registers check to be polled against the detector's state on
// every transition, and returns a channel closed the first time it
// returns true; the channel is already closed on return if check holds at
// subscription time.
func (n *navDetector) subscribe(check func(*navDetector) bool) <-chan struct{} {
	ch := make(chan struct{})
	if check(n) {
		close(ch)
		return ch
	}
	n.waitersMu.Lock()
	n.waiters = append(n.waiters, navWaiter{check: check, ch: ch})
	n.waitersMu.Unlock()
	return ch
}
