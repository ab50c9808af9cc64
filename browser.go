// Package viewpoint is a high level Chrome DevTools Protocol client that
// simplifies driving browsers for scraping, UI testing, or automation,
// through a Playwright-shaped Browser/BrowserContext/Page/Frame/Locator
// object model built directly on github.com/chromedp/cdproto.
package viewpoint

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/mailru/easyjson"
	"github.com/sirupsen/logrus"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
)

// Browser is the high-level Chrome DevTools Protocol connection: one
// WebSocket to the browser endpoint, a registry of per-target sessions, and
// the BrowserContexts (including the implicit default one) created on top
// of it. It is the root of the object model: Browser owns BrowserContexts,
// which own Pages, which own Frames.
type Browser struct {
	conn Transport

	// next is the next command message id, shared by the browser-global
	// Execute and every session's Execute.
	next int64

	cmdQueue chan cmdJob
	qres     chan *cdproto.Message

	sessionsMu sync.Mutex
	sessions   map[target.SessionID]*session

	contextsMu sync.Mutex
	contexts   map[cdp.BrowserContextID]*BrowserContext

	// nextContextIndex assigns each dynamically-created BrowserContext its
	// Ref-encoding index (ref.go); the implicit default context always
	// takes index 0.
	nextContextIndex int32

	// process/userDataDir/removeUserDataDir are set by Launch and are the
	// zero value for Connect; Close only kills the process and removes the
	// profile directory it owns.
	process           *os.Process
	userDataDir       string
	removeUserDataDir bool

	// closing is set once Close has begun, so that the read loop shutting
	// down the connection doesn't get reported as an unexpected error.
	closing int32

	logf, errf func(string, ...interface{})
	console    *logrus.Logger

	discovery attachRegistry

	globalListenersMu sync.Mutex
	globalListeners   []cancelableListener
}

type cmdJob struct {
	msg  *cdproto.Message
	resp chan *cdproto.Message
}

// NewBrowser connects to an already-running browser's DevTools websocket
// endpoint and starts its dispatch loop. Launch and Connect are the
// intended entry points; NewBrowser is the shared construction step both
// use once they have a websocket URL in hand.
func NewBrowser(ctx context.Context, wsURL string, opts ...BrowserOption) (*Browser, error) {
	conn, err := DialContext(ctx, ForceIP(wsURL))
	if err != nil {
		return nil, wrapCdp("connect", err)
	}

	b := &Browser{
		conn:     conn,
		sessions: make(map[target.SessionID]*session, 32),
		contexts: make(map[cdp.BrowserContextID]*BrowserContext, 4),
		logf:     func(string, ...interface{}) {},
		console:  logrus.New(),
	}
	b.console.SetLevel(logrus.WarnLevel)

	for _, o := range opts {
		if err := o(b); err != nil {
			return nil, err
		}
	}
	if b.errf == nil {
		b.errf = func(s string, v ...interface{}) { b.logf("ERROR: "+s, v...) }
	}

	b.cmdQueue = make(chan cmdJob)
	b.qres = make(chan *cdproto.Message)
	go b.run(ctx)

	if err := b.enableAutoAttach(ctx); err != nil {
		conn.Close()
		return nil, wrapCdp("auto-attach", err)
	}

	return b, nil
}

// Close disconnects from the browser. If the browser was started by Launch,
// Close also sends Browser.Close, waits for the process to exit, and
// removes a temporary profile directory if one was created for it.
func (b *Browser) Close() error {
	atomic.StoreInt32(&b.closing, 1)

	b.contextsMu.Lock()
	contexts := make([]*BrowserContext, 0, len(b.contexts))
	for _, bc := range b.contexts {
		contexts = append(contexts, bc)
	}
	b.contextsMu.Unlock()
	for _, bc := range contexts {
		_ = bc.Close(context.Background())
	}

	if b.conn != nil {
		if b.process != nil {
			_ = b.send(cdproto.CommandBrowserClose, nil)
		}
		_ = b.conn.Close()
	}

	if b.process != nil {
		_ = b.process.Kill()
		_, _ = b.process.Wait()
	}
	if b.removeUserDataDir && b.userDataDir != "" {
		_ = os.RemoveAll(b.userDataDir)
	}
	return nil
}

// send writes a fire-and-forget message (no response is awaited).
func (b *Browser) send(method cdproto.MethodType, params easyjson.RawMessage) error {
	msg := &cdproto.Message{
		ID:     atomic.AddInt64(&b.next, 1),
		Method: method,
		Params: params,
	}
	return b.conn.Write(msg)
}

// Execute satisfies cdp.Executor for browser-global commands (Target.*,
// Browser.*) that aren't scoped to any one session.
func (b *Browser) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	id := atomic.AddInt64(&b.next, 1)
	var buf []byte
	if params != nil {
		var err error
		buf, err = easyjson.Marshal(params)
		if err != nil {
			return err
		}
	}
	ch := make(chan *cdproto.Message, 1)
	cmd := &cdproto.Message{
		ID:     id,
		Method: cdproto.MethodType(method),
		Params: buf,
	}
	select {
	case b.cmdQueue <- cmdJob{msg: cmd, resp: ch}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case msg := <-ch:
		switch {
		case msg == nil:
			return ErrChannelClosed
		case msg.Error != nil:
			return msg.Error
		case res != nil:
			return easyjson.Unmarshal(msg.Result, res)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// sessionFor returns (creating if necessary) the session tracking the given
// attached target's events, and starts its dispatch goroutine.
func (b *Browser) sessionFor(ctx context.Context, sessionID target.SessionID, targetID target.ID, isWorker bool) *session {
	b.sessionsMu.Lock()
	defer b.sessionsMu.Unlock()

	if s, ok := b.sessions[sessionID]; ok {
		return s
	}
	s := &session{
		browser:         b,
		sessionID:       sessionID,
		targetID:        targetID,
		isWorker:        isWorker,
		messageQueue:    make(chan *cdproto.Message, 1024),
		frames:          make(map[cdp.FrameID]*cdp.Frame),
		execContexts:    make(map[cdp.FrameID]runtime.ExecutionContextID),
		utilityContexts: make(map[cdp.FrameID]runtime.ExecutionContextID),
		logf:            b.logf,
		errf:            b.errf,
	}
	go s.run(ctx)
	b.sessions[sessionID] = s
	return s
}

// run is the browser connection's main loop: it reads every incoming
// message, routes session events (those carrying a top-level sessionId, as
// flattened sessions send them, or wrapped in a
// Target.receivedMessageFromTarget envelope) to the right session's message
// queue, and matches command responses back to their caller via qres.
func (b *Browser) run(ctx context.Context) {
	defer b.conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			msg := new(cdproto.Message)
			if err := b.conn.Read(msg); err != nil {
				return
			}

			sessionID := msg.SessionID
			if msg.Method == cdproto.EventTargetReceivedMessageFromTarget {
				recv := new(target.EventReceivedMessageFromTarget)
				if err := easyjson.Unmarshal(msg.Params, recv); err != nil {
					b.errf("could not decode receivedMessageFromTarget: %v", err)
					continue
				}
				sessionID = recv.SessionID
				inner := new(cdproto.Message)
				if err := easyjson.Unmarshal([]byte(recv.Message), inner); err != nil {
					b.errf("could not decode inner target message: %v", err)
					continue
				}
				msg = inner
			}

			switch {
			case msg.Method != "":
				if sessionID == "" {
					b.handleGlobalEvent(ctx, msg)
					continue
				}
				b.sessionsMu.Lock()
				s, ok := b.sessions[sessionID]
				b.sessionsMu.Unlock()
				if !ok {
					continue
				}
				select {
				case s.messageQueue <- msg:
				default:
					b.errf("session %s message queue full, dropping event", sessionID)
				}

			case msg.ID != 0:
				select {
				case b.qres <- msg:
				case <-ctx.Done():
					return
				}

			default:
				b.errf("ignoring malformed incoming message: %#v", msg)
			}
		}
	}()

	respByID := make(map[int64]chan *cdproto.Message)
	for {
		select {
		case res := <-b.qres:
			resp, ok := respByID[res.ID]
			if !ok {
				continue
			}
			if resp != nil {
				resp <- res
				close(resp)
			}
			delete(respByID, res.ID)

		case q := <-b.cmdQueue:
			respByID[q.msg.ID] = q.resp
			if err := b.conn.Write(q.msg); err != nil {
				if atomic.LoadInt32(&b.closing) == 0 {
					b.errf("write failed: %v", err)
				}
				continue
			}

		case <-ctx.Done():
			return
		}
	}
}

// BrowserOption configures a Browser at construction time.
type BrowserOption func(*Browser) error

// WithLogf sets the func that receives general diagnostic logging.
func WithLogf(f func(string, ...interface{})) BrowserOption {
	return func(b *Browser) error {
		b.logf = f
		return nil
	}
}

// WithErrorf sets the func that receives error logging.
func WithErrorf(f func(string, ...interface{})) BrowserOption {
	return func(b *Browser) error {
		b.errf = f
		return nil
	}
}

// WithConsoleLogger replaces the logrus.Logger used to report page console
// messages (see Page.onConsoleAPICalled in page.go). Failed network
// requests are not logged through it.
func WithConsoleLogger(l *logrus.Logger) BrowserOption {
	return func(b *Browser) error {
		b.console = l
		return nil
	}
}
