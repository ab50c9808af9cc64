package viewpoint

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
)

// Viewport is a simple width/height emulation target; see emulation.go for
// the full device-metrics override this feeds into.
type Viewport struct {
	Width, Height int64
}

// ConsoleMessage mirrors a Runtime.consoleAPICalled event (see
// Page.onConsoleAPICalled).
type ConsoleMessage struct {
	Type string
	Text string
	Args []*runtime.RemoteObject
}

// Dialog represents a JavaScript alert/confirm/prompt/beforeunload dialog
// raised by the page; see dialog.go for Accept/Dismiss.
type Dialog struct {
	page    *Page
	Type    string
	Message string
	handled bool
	mu      sync.Mutex
}

// Page is one browser tab: a tree of Frames rooted at a main frame, plus
// the handlers and routes registered against it. It corresponds to one CDP
// page target and its single attached session — child OOPIF targets are
// not modeled as separate Go sessions (see DESIGN.md), so cross-process
// iframes are only visible through the Page.Frames() tree, not as
// independently attachable targets.
type Page struct {
	browserContext *BrowserContext
	session        *session
	targetID       target.ID

	// index and ctxIndex are this page's position within its owning
	// BrowserContext and the context's position within the Browser,
	// assigned once at attach time; Ref encodes both (ref.go) so a ref
	// produced against one page can never silently resolve against
	// another.
	index          int
	ctxIndex       int
	nextFrameIndex int32

	framesMu    sync.RWMutex
	frames      map[cdp.FrameID]*Frame
	mainFrameID cdp.FrameID

	routesMu sync.Mutex
	routes   []*registeredRoute

	responseWaitersMu sync.Mutex
	responseWaiters   map[fetch.RequestID]chan *fetch.EventRequestPaused

	handlersMu       sync.Mutex
	consoleHandlers  []func(*ConsoleMessage)
	dialogHandlers   []func(*Dialog)
	downloadHandlers []func(*Download)
	requestHandlers  []func(*Request)
	responseHandlers []func(*Response)
	popupHandlers    []func(*Page)

	idle     *networkIdleTracker
	nav      *navDetector
	refTable *refTable

	bindingsMu       sync.Mutex
	bindings         map[string]BindingFunc
	bindingsBootstrap sync.Once

	closed   bool
	closedCh chan struct{}
}

// initialize enables the CDP domains viewpoint needs on a freshly attached
// page session and seeds its main frame, mirroring the domain-enable
// sequence the teacher's context.go newSession performed (log, runtime,
// page, dom; network is added here since routing and waiting both need
// it, where the original left it commented out).
func (p *Page) initialize(ctx context.Context) error {
	s := p.session
	exec := cdp.WithExecutor(ctx, s)

	if err := inspector.Enable().Do(exec); err != nil {
		return wrapCdp("Inspector.enable", err)
	}
	if err := log.Enable().Do(exec); err != nil {
		return wrapCdp("Log.enable", err)
	}
	if err := runtime.Enable().Do(exec); err != nil {
		return wrapCdp("Runtime.enable", err)
	}
	if err := page.Enable().Do(exec); err != nil {
		return wrapCdp("Page.enable", err)
	}
	if err := dom.Enable().Do(exec); err != nil {
		return wrapCdp("DOM.enable", err)
	}
	if err := network.Enable().Do(exec); err != nil {
		return wrapCdp("Network.enable", err)
	}
	if err := page.SetLifecycleEventsEnabled(true).Do(exec); err != nil {
		return wrapCdp("Page.setLifecycleEventsEnabled", err)
	}
	if err := page.AddScriptToEvaluateOnNewDocument(isolatedWorldBootstrapJS).
		WithWorldName(utilityWorldName).
		Do(exec); err != nil {
		return wrapCdp("Page.addScriptToEvaluateOnNewDocument", err)
	}

	p.idle = newNetworkIdleTracker()
	p.nav = newNavDetector()

	if err := p.browserContext.applyToSession(ctx, s); err != nil {
		return err
	}

	ftree, err := page.GetFrameTree().Do(exec)
	if err != nil {
		return wrapCdp("Page.getFrameTree", err)
	}
	p.mainFrameID = ftree.Frame.ID
	p.seedFrameTree(ftree)

	if _, err := page.CreateIsolatedWorld(p.mainFrameID).
		WithWorldName(utilityWorldName).
		Do(exec); err != nil {
		return wrapCdp("Page.createIsolatedWorld", err)
	}

	s.frameMu.Lock()
	s.cur = p.mainFrameID
	s.frameMu.Unlock()

	return nil
}

func (p *Page) seedFrameTree(node *page.FrameTree) {
	p.framesMu.Lock()
	defer p.framesMu.Unlock()
	var walk func(n *page.FrameTree, parent cdp.FrameID)
	walk = func(n *page.FrameTree, parent cdp.FrameID) {
		idx := int(atomic.AddInt32(&p.nextFrameIndex, 1)) - 1
		f := &Frame{page: p, id: n.Frame.ID, parentID: parent, url: n.Frame.URL, name: n.Frame.Name, index: idx}
		p.frames[n.Frame.ID] = f
		for _, c := range n.ChildFrames {
			walk(c, n.Frame.ID)
		}
	}
	walk(node, "")
}

// MainFrame returns the page's top-level frame.
func (p *Page) MainFrame() *Frame {
	p.framesMu.RLock()
	defer p.framesMu.RUnlock()
	return p.frames[p.mainFrameID]
}

// Frames returns a snapshot of every frame (main and descendant) currently
// attached to the page.
func (p *Page) Frames() []*Frame {
	p.framesMu.RLock()
	defer p.framesMu.RUnlock()
	out := make([]*Frame, 0, len(p.frames))
	for _, f := range p.frames {
		out = append(out, f)
	}
	return out
}

// BrowserContext returns the page's owning context.
func (p *Page) BrowserContext() *BrowserContext { return p.browserContext }

// Close closes the page's underlying target.
func (p *Page) Close(ctx context.Context) error {
	p.handlersMu.Lock()
	if p.closed {
		p.handlersMu.Unlock()
		return nil
	}
	p.closed = true
	close(p.closedCh)
	p.handlersMu.Unlock()

	return target.CloseTarget(p.targetID).Do(cdp.WithExecutor(ctx, p.browserContext.browser))
}

// OnConsole, OnDialog, OnDownload, OnRequest, OnResponse, and OnPopup
// register event handlers. OnConsole and OnDialog fire from this file's
// onConsoleAPICalled and onDialogOpening, OnDownload from download.go,
// OnRequest/OnResponse from route.go, and OnPopup from
// adoptUnsolicitedPage in target_discovery.go.
func (p *Page) OnConsole(fn func(*ConsoleMessage)) {
	p.handlersMu.Lock()
	p.consoleHandlers = append(p.consoleHandlers, fn)
	p.handlersMu.Unlock()
}

func (p *Page) OnDialog(fn func(*Dialog)) {
	p.handlersMu.Lock()
	p.dialogHandlers = append(p.dialogHandlers, fn)
	p.handlersMu.Unlock()
}

func (p *Page) OnDownload(fn func(*Download)) {
	p.handlersMu.Lock()
	p.downloadHandlers = append(p.downloadHandlers, fn)
	p.handlersMu.Unlock()
}

func (p *Page) OnRequest(fn func(*Request)) {
	p.handlersMu.Lock()
	p.requestHandlers = append(p.requestHandlers, fn)
	p.handlersMu.Unlock()
}

func (p *Page) OnResponse(fn func(*Response)) {
	p.handlersMu.Lock()
	p.responseHandlers = append(p.responseHandlers, fn)
	p.handlersMu.Unlock()
}

func (p *Page) OnPopup(fn func(*Page)) {
	p.handlersMu.Lock()
	p.popupHandlers = append(p.popupHandlers, fn)
	p.handlersMu.Unlock()
}

// dispatchEvent fans out raw events this session receives to the
// subsystems that react to them: console handling (this file),
// network_idle.go, route.go, download.go and expose.go. Dialog and
// navigation events reach the Page through session.pageEvent instead.
func (p *Page) dispatchEvent(ev interface{}) {
	switch e := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		p.onConsoleAPICalled(e)
	case *network.EventRequestWillBeSent:
		p.idle.onRequestWillBeSent(e)
		p.onRequestWillBeSent(e)
	case *network.EventLoadingFinished:
		p.idle.onLoadingFinished(e.RequestID)
	case *network.EventLoadingFailed:
		p.idle.onLoadingFailed(e.RequestID)
	case *network.EventResponseReceived:
		p.onResponseReceived(e)
	case *network.EventRequestServedFromCache:
		p.idle.onLoadingFinished(e.RequestID)
	case *fetch.EventRequestPaused:
		// A non-zero ResponseStatusCode marks the response stage of an
		// intercept a Route.Fetch call opted into via
		// WithInterceptResponse(true); route to its waiter instead of
		// running it back through the handler chain.
		if e.ResponseStatusCode != 0 {
			if ch, ok := p.takeResponseWaiter(e.RequestID); ok {
				ch <- e
				break
			}
		}
		go p.onRequestPaused(context.Background(), e)
	case *fetch.EventAuthRequired:
		go p.onAuthRequired(context.Background(), e)
	case *browser.EventDownloadWillBegin:
		p.onDownloadWillBegin(e.GUID, e.URL, e.SuggestedFilename)
	case *browser.EventDownloadProgress:
		p.onDownloadProgress(e.GUID, e.State == browser.DownloadProgressStateCompleted,
			e.State == browser.DownloadProgressStateCanceled, "")
	case *runtime.EventBindingCalled:
		go p.onBindingCalled(context.Background(), e)
	}
}

// waitResponseStage registers a one-shot waiter for the response-stage
// Fetch.requestPaused event of id, delivered by dispatchEvent instead of
// the normal route handler chain (route.go's Route.Fetch).
func (p *Page) waitResponseStage(id fetch.RequestID) <-chan *fetch.EventRequestPaused {
	ch := make(chan *fetch.EventRequestPaused, 1)
	p.responseWaitersMu.Lock()
	if p.responseWaiters == nil {
		p.responseWaiters = make(map[fetch.RequestID]chan *fetch.EventRequestPaused)
	}
	p.responseWaiters[id] = ch
	p.responseWaitersMu.Unlock()
	return ch
}

func (p *Page) takeResponseWaiter(id fetch.RequestID) (chan *fetch.EventRequestPaused, bool) {
	p.responseWaitersMu.Lock()
	defer p.responseWaitersMu.Unlock()
	ch, ok := p.responseWaiters[id]
	if ok {
		delete(p.responseWaiters, id)
	}
	return ch, ok
}

func (p *Page) forgetResponseStageWaiter(id fetch.RequestID) {
	p.responseWaitersMu.Lock()
	delete(p.responseWaiters, id)
	p.responseWaitersMu.Unlock()
}

func (p *Page) onFrameNavigated(f *cdp.Frame) {
	p.framesMu.Lock()
	fr, ok := p.frames[f.ID]
	if !ok {
		idx := int(atomic.AddInt32(&p.nextFrameIndex, 1)) - 1
		fr = &Frame{page: p, id: f.ID, index: idx}
		p.frames[f.ID] = fr
	}
	fr.parentID = f.ParentID
	fr.url = f.URL
	fr.name = f.Name
	p.framesMu.Unlock()

	if f.ID == p.mainFrameID {
		p.nav.onCommitted(f.URL)
	}
}

func (p *Page) onFrameDetached(id cdp.FrameID) {
	p.framesMu.Lock()
	if fr, ok := p.frames[id]; ok {
		fr.mu.Lock()
		fr.detached = true
		fr.mu.Unlock()
	}
	delete(p.frames, id)
	p.framesMu.Unlock()
}

func (p *Page) onFrameStartedLoading(id cdp.FrameID) {
	if id == p.mainFrameID {
		p.nav.onStarted()
	}
}

func (p *Page) onFrameStoppedLoading(id cdp.FrameID) {
	if id == p.mainFrameID {
		p.nav.onStopped()
	}
}

func (p *Page) onLifecycleEvent(e *page.EventLifecycleEvent) {
	if e.FrameID != p.mainFrameID {
		return
	}
	p.nav.onLifecycle(e.Name, time.Now())
}

func (p *Page) onFrameRequestedNavigation(e *page.EventFrameRequestedNavigation) {
	if e.FrameID == p.mainFrameID {
		p.nav.onRequested(e.URL)
	}
}

func (p *Page) onNavigatedWithinDocument(e *page.EventNavigatedWithinDocument) {
	if e.FrameID == p.mainFrameID {
		p.nav.onCommitted(e.URL)
	}
}

func (p *Page) onDialogOpening(e *page.EventJavascriptDialogOpening) {
	d := &Dialog{page: p, Type: string(e.Type), Message: e.Message}
	p.handlersMu.Lock()
	handlers := append([]func(*Dialog){}, p.dialogHandlers...)
	p.handlersMu.Unlock()
	if len(handlers) == 0 {
		_ = d.Dismiss(context.Background())
		return
	}
	for _, h := range handlers {
		h(d)
	}
}

func (p *Page) onRawPageEvent(ev interface{}) {
	if _, ok := ev.(*page.EventWindowOpen); ok {
		// The matching Target.attachedToTarget event drives BrowserContext
		// page adoption (target_discovery.go); this event alone carries no
		// target id to correlate against yet.
		return
	}
}

func (p *Page) onConsoleAPICalled(e *runtime.EventConsoleAPICalled) {
	text := ""
	for i, a := range e.Args {
		if i > 0 {
			text += " "
		}
		if a.Value != nil {
			text += string(a.Value)
		} else {
			text += string(a.Type)
		}
	}
	msg := &ConsoleMessage{Type: string(e.Type), Text: text, Args: e.Args}

	p.handlersMu.Lock()
	handlers := append([]func(*ConsoleMessage){}, p.consoleHandlers...)
	p.handlersMu.Unlock()
	for _, h := range handlers {
		h(msg)
	}

	logger := p.browserContext.browser.console
	entry := logger.WithField("type", e.Type)
	if e.Type == "error" {
		entry.Error(text)
	} else if e.Type == "warning" {
		entry.Warn(text)
	} else {
		entry.Debug(text)
	}
}
