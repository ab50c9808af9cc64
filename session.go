package viewpoint

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/mailru/easyjson"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
)

// utilityWorldName names the isolated world viewpoint creates in every
// frame alongside the page's main world. Locator/ref resolution, the ARIA
// snapshot and actionability checks all run in the main world (so element
// references behave exactly as page scripts see them); the isolated world
// is reachable through Frame.utilityWorld, which none of them use.
const utilityWorldName = "__viewpoint_utility_world__"

// session manages one Target.attachToTarget session: a single CDP target's
// frame tree, execution contexts and event dispatch. One session backs one
// Page; OOPIF child targets are treated as part of the owning page's frame
// tree rather than as additional nested sessions, which keeps the registry
// simple at the cost of not independently isolating cross-process iframes
// (see DESIGN.md's note on this tradeoff).
type session struct {
	browser   *Browser
	sessionID target.SessionID
	targetID  target.ID

	listenersMu sync.Mutex
	listeners   []cancelableListener

	messageQueue chan *cdproto.Message

	// frameMu protects frames, execContexts, utilityContexts, and cur.
	frameMu         sync.RWMutex
	frames          map[cdp.FrameID]*cdp.Frame
	execContexts    map[cdp.FrameID]runtime.ExecutionContextID
	utilityContexts map[cdp.FrameID]runtime.ExecutionContextID
	cur             cdp.FrameID

	logf, errf func(string, ...interface{})

	isWorker bool

	// page is set once the owning Page has been constructed; run's event
	// loop and pageEvent use it to fan out notifications (C5, C10).
	page *Page
}

type cancelableListener struct {
	ctx context.Context
	fn  func(interface{})
}

func (s *session) enclosingFrame(node *cdp.Node) cdp.FrameID {
	s.frameMu.RLock()
	top := s.frames[s.cur]
	s.frameMu.RUnlock()
	if top == nil {
		return ""
	}
	top.RLock()
	defer top.RUnlock()
	for {
		if node == nil {
			return ""
		}
		if node.FrameID != "" {
			break
		}
		node = top.Nodes[node.ParentID]
	}
	return node.FrameID
}

// ensureFrame waits for the session's top frame to have loaded a document
// and returns the frame, its root node, and its main-world execution
// context ID; it returns ok=false while the frame is still settling.
func (s *session) ensureFrame() (*cdp.Frame, *cdp.Node, runtime.ExecutionContextID, bool) {
	s.frameMu.RLock()
	frame := s.frames[s.cur]
	execCtx := s.execContexts[s.cur]
	s.frameMu.RUnlock()

	if frame == nil || execCtx == 0 {
		return nil, nil, 0, false
	}

	frame.RLock()
	root := frame.Root
	frame.RUnlock()

	if root == nil {
		return nil, nil, 0, false
	}
	return frame, root, execCtx, true
}

// mainWorldContext returns the main-world execution context ID for the
// given frame, if known.
func (s *session) mainWorldContext(id cdp.FrameID) (runtime.ExecutionContextID, bool) {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	ctxID, ok := s.execContexts[id]
	return ctxID, ok
}

// listen registers fn against every event this session's run loop sees
// (the same stream dispatchEvent/runtimeEvent/pageEvent/domEvent consume),
// for subsystems like video.go's screencast capture that need a raw event
// tap rather than one of Page's typed handler lists. The returned func
// deregisters it.
func (s *session) listen(fn func(interface{})) func() {
	ctx, cancel := context.WithCancel(context.Background())
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, cancelableListener{ctx, fn})
	s.listenersMu.Unlock()
	return cancel
}

// utilityWorldContext returns the isolated utility-world execution context
// ID for the given frame, if known.
func (s *session) utilityWorldContext(id cdp.FrameID) (runtime.ExecutionContextID, bool) {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	ctxID, ok := s.utilityContexts[id]
	return ctxID, ok
}

func (s *session) run(ctx context.Context) {
	type eventValue struct {
		method cdproto.MethodType
		value  interface{}
	}
	// syncEventQueue hands Runtime/Page/DOM events to a single goroutine so
	// that frame/execution-context state updates happen in a well defined
	// order relative to each other.
	syncEventQueue := make(chan eventValue, 4096)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-s.messageQueue:
				if msg.ID != 0 {
					s.listenersMu.Lock()
					s.listeners = runListeners(s.listeners, msg)
					s.listenersMu.Unlock()
					continue
				}
				ev, err := cdproto.UnmarshalMessage(msg)
				if err != nil {
					if _, ok := err.(cdp.ErrUnknownCommandOrEvent); ok {
						continue
					}
					s.errf("could not unmarshal event: %v", err)
					continue
				}
				s.listenersMu.Lock()
				s.listeners = runListeners(s.listeners, ev)
				s.listenersMu.Unlock()

				if s.page != nil {
					s.page.dispatchEvent(ev)
				}

				switch msg.Method.Domain() {
				case "Runtime", "Page", "DOM":
					select {
					case <-ctx.Done():
						return
					case syncEventQueue <- eventValue{msg.Method, ev}:
					}
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-syncEventQueue:
			switch ev.method.Domain() {
			case "Runtime":
				s.runtimeEvent(ev.value)
			case "Page":
				s.pageEvent(ev.value)
			case "DOM":
				s.domEvent(ctx, ev.value)
			}
		}
	}
}

// Execute satisfies cdp.Executor, so that generated cdproto command structs
// can be invoked via cdp.WithExecutor(ctx, session).Do(ctx).
func (s *session) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	if method == string(target.CommandCloseTarget) {
		return errors.New("to close the target, close its Page instead")
	}

	id := atomic.AddInt64(&s.browser.next, 1)
	lctx, cancel := context.WithCancel(ctx)
	ch := make(chan *cdproto.Message, 1)
	fn := func(ev interface{}) {
		if msg, ok := ev.(*cdproto.Message); ok && msg.ID == id {
			select {
			case <-ctx.Done():
			case ch <- msg:
			}
			cancel()
		}
	}
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, cancelableListener{lctx, fn})
	s.listenersMu.Unlock()

	var buf []byte
	if params != nil {
		var err error
		buf, err = easyjson.Marshal(params)
		if err != nil {
			return err
		}
	}
	cmd := &cdproto.Message{
		ID:        id,
		SessionID: s.sessionID,
		Method:    cdproto.MethodType(method),
		Params:    buf,
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.browser.cmdQueue <- cmdJob{msg: cmd, resp: ch}:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case msg := <-ch:
		switch {
		case msg == nil:
			return ErrChannelClosed
		case msg.Error != nil:
			return msg.Error
		case res != nil:
			return easyjson.Unmarshal(msg.Result, res)
		}
	}
	return nil
}

// runtimeEvent tracks main-world and isolated-world execution contexts per
// frame. Disambiguating the two relies on the same AuxData.IsDefault /
// Context.Name check that xk6-browser's FrameSession.onExecutionContextCreated
// uses, since the CDP wire format gives no other signal.
func (s *session) runtimeEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *runtime.EventExecutionContextCreated:
		var aux struct {
			FrameID   cdp.FrameID `json:"frameId"`
			IsDefault bool        `json:"isDefault"`
			Type      string      `json:"type"`
		}
		if len(ev.Context.AuxData) == 0 {
			break
		}
		if err := json.Unmarshal(ev.Context.AuxData, &aux); err != nil {
			s.errf("could not decode executionContextCreated auxData %q: %v", ev.Context.AuxData, err)
			break
		}
		if aux.FrameID == "" {
			break
		}
		s.frameMu.Lock()
		switch {
		case aux.IsDefault:
			s.execContexts[aux.FrameID] = ev.Context.ID
		case ev.Context.Name == utilityWorldName:
			s.utilityContexts[aux.FrameID] = ev.Context.ID
		}
		s.frameMu.Unlock()

	case *runtime.EventExecutionContextDestroyed:
		s.frameMu.Lock()
		for frameID, ctxID := range s.execContexts {
			if ctxID == ev.ExecutionContextID {
				delete(s.execContexts, frameID)
			}
		}
		for frameID, ctxID := range s.utilityContexts {
			if ctxID == ev.ExecutionContextID {
				delete(s.utilityContexts, frameID)
			}
		}
		s.frameMu.Unlock()

	case *runtime.EventExecutionContextsCleared:
		s.frameMu.Lock()
		s.execContexts = make(map[cdp.FrameID]runtime.ExecutionContextID)
		s.utilityContexts = make(map[cdp.FrameID]runtime.ExecutionContextID)
		s.frameMu.Unlock()
	}
}

// documentUpdated re-fetches the document root for the top-level frame.
func (s *session) documentUpdated(ctx context.Context) {
	s.frameMu.RLock()
	f := s.frames[s.cur]
	s.frameMu.RUnlock()
	if f == nil {
		s.errf("received DOM.documentUpdated when there's no top-level frame")
		return
	}
	f.Lock()
	defer f.Unlock()

	if f.Root != nil {
		close(f.Root.Invalidated)
	}

	f.Nodes = make(map[cdp.NodeID]*cdp.Node)
	var err error
	f.Root, err = dom.GetDocument().Do(cdp.WithExecutor(ctx, s))
	if err == context.Canceled {
		return
	}
	if err != nil {
		s.errf("could not retrieve document root for %s: %v", f.ID, err)
		return
	}
	f.Root.Invalidated = make(chan struct{})
	walk(f.Nodes, f.Root)
}

// pageEvent handles incoming page events, updating frame state and
// forwarding lifecycle/navigation events to the owning Page (C4, C5).
func (s *session) pageEvent(ev interface{}) {
	var id cdp.FrameID
	var op frameOp

	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		s.frameMu.Lock()
		s.frames[e.Frame.ID] = e.Frame
		if e.Frame.ParentID == "" {
			s.cur = e.Frame.ID
		}
		s.frameMu.Unlock()
		if s.page != nil {
			s.page.onFrameNavigated(e.Frame)
		}
		return

	case *page.EventFrameAttached:
		id, op = e.FrameID, frameAttached(e.ParentFrameID)

	case *page.EventFrameDetached:
		id, op = e.FrameID, frameDetached
		if s.page != nil {
			s.page.onFrameDetached(e.FrameID)
		}

	case *page.EventFrameStartedLoading:
		id, op = e.FrameID, frameStartedLoading
		if s.page != nil {
			s.page.onFrameStartedLoading(e.FrameID)
		}

	case *page.EventFrameStoppedLoading:
		id, op = e.FrameID, frameStoppedLoading
		if s.page != nil {
			s.page.onFrameStoppedLoading(e.FrameID)
		}

	case *page.EventLifecycleEvent:
		if s.page != nil {
			s.page.onLifecycleEvent(e)
		}
		return

	case *page.EventJavascriptDialogOpening:
		if s.page != nil {
			s.page.onDialogOpening(e)
		}
		return

	case *page.EventFrameRequestedNavigation:
		if s.page != nil {
			s.page.onFrameRequestedNavigation(e)
		}
		return

	case *page.EventNavigatedWithinDocument:
		if s.page != nil {
			s.page.onNavigatedWithinDocument(e)
		}
		return

	case *page.EventCompilationCacheProduced,
		*page.EventDocumentOpened,
		*page.EventDomContentEventFired,
		*page.EventFileChooserOpened,
		*page.EventFrameResized,
		*page.EventInterstitialHidden,
		*page.EventInterstitialShown,
		*page.EventJavascriptDialogClosed,
		*page.EventLoadEventFired,
		*page.EventScreencastFrame,
		*page.EventScreencastVisibilityChanged,
		*page.EventWindowOpen,
		*page.EventBackForwardCacheNotUsed:
		if s.page != nil {
			s.page.onRawPageEvent(e)
		}
		return

	default:
		s.errf("unhandled page event %T", ev)
		return
	}

	s.frameMu.Lock()
	f := s.frames[id]
	if f == nil {
		f = &cdp.Frame{ID: id}
		s.frames[id] = f
	}
	s.frameMu.Unlock()

	f.Lock()
	op(f)
	f.Unlock()
}

// domEvent applies incoming DOM mutation events to the frame's node tree.
func (s *session) domEvent(ctx context.Context, ev interface{}) {
	s.frameMu.RLock()
	f := s.frames[s.cur]
	s.frameMu.RUnlock()
	if f == nil {
		return
	}

	var id cdp.NodeID
	var op nodeOp

	switch e := ev.(type) {
	case *dom.EventDocumentUpdated:
		s.documentUpdated(ctx)
		return
	case *dom.EventSetChildNodes:
		id, op = e.ParentID, setChildNodes(f.Nodes, e.Nodes)
	case *dom.EventAttributeModified:
		id, op = e.NodeID, attributeModified(e.Name, e.Value)
	case *dom.EventAttributeRemoved:
		id, op = e.NodeID, attributeRemoved(e.Name)
	case *dom.EventCharacterDataModified:
		id, op = e.NodeID, characterDataModified(e.CharacterData)
	case *dom.EventChildNodeCountUpdated:
		id, op = e.NodeID, childNodeCountUpdated(e.ChildNodeCount)
	case *dom.EventChildNodeInserted:
		id, op = e.ParentNodeID, childNodeInserted(f.Nodes, e.PreviousNodeID, e.Node)
	case *dom.EventChildNodeRemoved:
		id, op = e.ParentNodeID, childNodeRemoved(f.Nodes, e.NodeID)
	case *dom.EventShadowRootPushed:
		id, op = e.HostID, shadowRootPushed(f.Nodes, e.Root)
	case *dom.EventShadowRootPopped:
		id, op = e.HostID, shadowRootPopped(f.Nodes, e.RootID)
	default:
		return
	}

	n, ok := f.Nodes[id]
	if !ok {
		return
	}
	f.Lock()
	op(n)
	f.Unlock()
}
