package viewpoint

import (
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

// networkIdleTracker implements the "networkidle" heuristic: no request in
// flight for idleQuietWindow (500ms). Puppeteer's "idle2" variant (at most
// two in flight) is not implemented. WaitForLoadState(LifecycleNetworkIdle)
// does not consult this tracker; it waits for the "networkIdle" name in the
// CDP Page.lifecycleEvent stream (see navDetector.onLifecycle).
type networkIdleTracker struct {
	mu        sync.Mutex
	inflight  map[network.RequestID]struct{}
	timer     *time.Timer
	onIdle    []func()
	idleSince time.Time
}

const idleQuietWindow = 500 * time.Millisecond

func newNetworkIdleTracker() *networkIdleTracker {
	return &networkIdleTracker{inflight: make(map[network.RequestID]struct{})}
}

func (t *networkIdleTracker) onRequestWillBeSent(e *network.EventRequestWillBeSent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[e.RequestID] = struct{}{}
	t.idleSince = time.Time{}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *networkIdleTracker) onLoadingFinished(id network.RequestID) {
	t.finish(id)
}

func (t *networkIdleTracker) onLoadingFailed(id network.RequestID) {
	t.finish(id)
}

func (t *networkIdleTracker) finish(id network.RequestID) {
	t.mu.Lock()
	delete(t.inflight, id)
	empty := len(t.inflight) == 0
	t.mu.Unlock()
	if empty {
		t.armIdleTimer()
	}
}

func (t *networkIdleTracker) armIdleTimer() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(idleQuietWindow, func() {
		t.mu.Lock()
		t.idleSince = time.Now()
		handlers := append([]func(){}, t.onIdle...)
		t.mu.Unlock()
		for _, h := range handlers {
			h()
		}
	})
}

// isIdle reports whether the network has been quiet for the idle window.
func (t *networkIdleTracker) isIdle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && !t.idleSince.IsZero() && time.Since(t.idleSince) >= 0
}

// notifyOnIdle registers fn to run the next time the quiet window elapses.
func (t *networkIdleTracker) notifyOnIdle(fn func()) {
	t.mu.Lock()
	t.onIdle = append(t.onIdle, fn)
	t.mu.Unlock()
}
