package viewpoint

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
)

// attachRegistry lets NewPage block until the Target.attachedToTarget event
// for the target it just created arrives, without forcing every attach
// through a single serialized path.
type attachRegistry struct {
	mu      sync.Mutex
	waiters map[target.ID]chan *target.EventAttachedToTarget
}

func (b *Browser) attachWaiterFor(id target.ID) chan *target.EventAttachedToTarget {
	b.discovery.mu.Lock()
	defer b.discovery.mu.Unlock()
	if b.discovery.waiters == nil {
		b.discovery.waiters = make(map[target.ID]chan *target.EventAttachedToTarget)
	}
	ch := make(chan *target.EventAttachedToTarget, 1)
	b.discovery.waiters[id] = ch
	return ch
}

func (b *Browser) forgetAttachWaiter(id target.ID) {
	b.discovery.mu.Lock()
	delete(b.discovery.waiters, id)
	b.discovery.mu.Unlock()
}

// listen registers fn against every browser-global event (anything
// handleGlobalEvent decodes that isn't a Target attach/detach notification
// it already special-cases, e.g. Tracing.dataCollected/tracingComplete for
// tracing.go). The returned func deregisters it.
func (b *Browser) listen(fn func(interface{})) func() {
	ctx, cancel := context.WithCancel(context.Background())
	b.globalListenersMu.Lock()
	b.globalListeners = append(b.globalListeners, cancelableListener{ctx, fn})
	b.globalListenersMu.Unlock()
	return cancel
}

// enableAutoAttach turns on Target.setDiscoverTargets and
// Target.setAutoAttach(flatten) so that every target the browser creates —
// including popups opened via window.open, which a page never explicitly
// asks to create — shows up as a Target.attachedToTarget event.
func (b *Browser) enableAutoAttach(ctx context.Context) error {
	if err := target.SetDiscoverTargets(true).Do(cdp.WithExecutor(ctx, b)); err != nil {
		return err
	}
	return target.SetAutoAttach(true, true).WithFlatten(true).Do(cdp.WithExecutor(ctx, b))
}

// handleGlobalEvent processes events that arrive without a session ID
// (neither a top-level sessionId nor a receivedMessageFromTarget
// envelope), which covers attach/detach notifications for every target in
// the browser.
func (b *Browser) handleGlobalEvent(ctx context.Context, msg *cdproto.Message) {
	ev, err := cdproto.UnmarshalMessage(msg)
	if err != nil {
		return
	}

	b.globalListenersMu.Lock()
	b.globalListeners = runListeners(b.globalListeners, ev)
	b.globalListenersMu.Unlock()

	switch e := ev.(type) {
	case *target.EventAttachedToTarget:
		if ch := b.takeAttachWaiter(e.TargetInfo.TargetID); ch != nil {
			ch <- e
			return
		}
		// Nobody is waiting on this attach: it's a target the browser
		// opened on its own (e.g. window.open, or a worker). Adopt pages
		// into their BrowserContext's page list; ignore other target
		// types (service_worker, shared_worker, browser) since nothing in
		// the object model surfaces them as first-class objects yet.
		if e.TargetInfo.Type == "page" {
			go b.adoptUnsolicitedPage(ctx, e)
		}

	case *target.EventDetachedFromTarget:
		b.sessionsMu.Lock()
		delete(b.sessions, e.SessionID)
		b.sessionsMu.Unlock()
	}
}

func (b *Browser) takeAttachWaiter(id target.ID) chan *target.EventAttachedToTarget {
	b.discovery.mu.Lock()
	defer b.discovery.mu.Unlock()
	ch, ok := b.discovery.waiters[id]
	if ok {
		delete(b.discovery.waiters, id)
	}
	return ch
}

// adoptUnsolicitedPage builds a Page for a target.attachedToTarget event
// that nobody's NewPage call was waiting for, appends it to the owning
// BrowserContext's page list, and runs the context's OnPage handlers and
// the opener page's OnPopup handlers for it.
func (b *Browser) adoptUnsolicitedPage(ctx context.Context, e *target.EventAttachedToTarget) {
	b.contextsMu.Lock()
	bc, ok := b.contexts[e.TargetInfo.BrowserContextID]
	b.contextsMu.Unlock()
	if !ok {
		return
	}
	p, err := bc.adoptAttachedPage(ctx, e)
	if err != nil {
		b.errf("could not adopt popup target %s: %v", e.TargetInfo.TargetID, err)
		return
	}
	bc.notifyPageOpened(p)
	if opener := e.TargetInfo.OpenerID; opener != "" {
		for _, op := range bc.Pages() {
			if op.targetID != opener {
				continue
			}
			op.handlersMu.Lock()
			handlers := append([]func(*Page){}, op.popupHandlers...)
			op.handlersMu.Unlock()
			for _, h := range handlers {
				h(p)
			}
		}
	}
}

