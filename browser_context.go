package viewpoint

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
)

// Geolocation overrides a context's reported position.
type Geolocation struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Credentials are used to answer Fetch.authRequired challenges raised by
// the route subsystem (see route.go).
type Credentials struct {
	Username string
	Password string
}

// contextOptions holds the state a BrowserContext applies to every page it
// creates, once, when the page's session attaches; pages that are already
// open are not updated.
type contextOptions struct {
	viewport        *Viewport
	userAgent       string
	locale          string
	timezoneID      string
	colorScheme     string
	offline         bool
	permissions     []string
	geolocation     *Geolocation
	extraHeaders    []extraHeader
	httpCredentials *Credentials
	bypassCSP       bool
	javaScriptEnabled bool
	storageState    *StorageState
}

type extraHeader struct{ name, value string }

// BrowserContext is an isolated browsing profile: its own cookie jar,
// cache, permissions and storage, sharing only the browser process with
// its siblings. It corresponds to one CDP Target.createBrowserContext
// browser context, except for the implicit default context (id == "")
// which is the browser's initial context and can't be disposed.
type BrowserContext struct {
	browser *Browser
	id      cdp.BrowserContextID

	// index is this context's position among its Browser's contexts,
	// assigned once at construction; Ref encodes it (ref.go) so a ref
	// produced in one context can never silently resolve in another.
	index         int
	nextPageIndex int32

	opts   contextOptions
	optsMu sync.RWMutex

	pagesMu sync.Mutex
	pages   []*Page

	routesMu sync.Mutex
	routes   []*registeredRoute

	initScriptsMu sync.Mutex
	initScripts   []string

	pageHandlersMu sync.Mutex
	pageHandlers   []func(*Page)

	closed bool
}

// NewContext creates an isolated BrowserContext. Options are applied to
// every page the context subsequently opens.
func (b *Browser) NewContext(ctx context.Context, opts ...ContextOption) (*BrowserContext, error) {
	id, err := target.CreateBrowserContext().Do(cdp.WithExecutor(ctx, b))
	if err != nil {
		return nil, wrapCdp("NewContext", err)
	}
	bc := &BrowserContext{
		browser: b,
		id:      id,
		index:   int(atomic.AddInt32(&b.nextContextIndex, 1)),
		opts:    contextOptions{javaScriptEnabled: true},
	}
	for _, o := range opts {
		o(&bc.opts)
	}
	b.contextsMu.Lock()
	b.contexts[id] = bc
	b.contextsMu.Unlock()

	if len(bc.opts.permissions) > 0 {
		if err := bc.grantPermissions(ctx, bc.opts.permissions); err != nil {
			return nil, err
		}
	}
	if err := bc.applyStorageState(ctx); err != nil {
		return nil, err
	}
	return bc, nil
}

// grantPermissions maps SPEC_FULL.md permission names onto
// Browser.grantPermissions, the context-scoped replacement for Page-level
// permission prompts.
func (bc *BrowserContext) grantPermissions(ctx context.Context, names []string) error {
	perms := make([]browser.PermissionType, 0, len(names))
	for _, n := range names {
		p, ok := permissionTypes[n]
		if !ok {
			return ErrUnsupportedPermission
		}
		perms = append(perms, p)
	}
	return browser.GrantPermissions(perms).
		WithBrowserContextID(bc.id).
		Do(cdp.WithExecutor(ctx, bc.browser))
}

var permissionTypes = map[string]browser.PermissionType{
	"geolocation":      browser.PermissionTypeGeolocation,
	"notifications":    browser.PermissionTypeNotifications,
	"camera":           browser.PermissionTypeVideoCapture,
	"microphone":       browser.PermissionTypeAudioCapture,
	"clipboard-read":   browser.PermissionTypeClipboardReadWrite,
	"clipboard-write":  browser.PermissionTypeClipboardSanitizedWrite,
	"midi":             browser.PermissionTypeMidi,
	"midi-sysex":       browser.PermissionTypeMidiSysex,
	"background-sync":  browser.PermissionTypeBackgroundSync,
	"payment-handler":  browser.PermissionTypePaymentHandler,
}

// DefaultContext returns the browser's initial, always-present context.
func (b *Browser) DefaultContext() *BrowserContext {
	b.contextsMu.Lock()
	defer b.contextsMu.Unlock()
	if bc, ok := b.contexts[""]; ok {
		return bc
	}
	bc := &BrowserContext{browser: b, index: 0, opts: contextOptions{javaScriptEnabled: true}}
	b.contexts[""] = bc
	return bc
}

// ContextOption configures a BrowserContext at creation time.
type ContextOption func(*contextOptions)

// WithViewport sets the default viewport size for pages opened in the context.
func WithViewport(width, height int64) ContextOption {
	return func(o *contextOptions) { o.viewport = &Viewport{Width: width, Height: height} }
}

// WithUserAgent overrides the User-Agent header and navigator.userAgent.
func WithUserAgent(ua string) ContextOption {
	return func(o *contextOptions) { o.userAgent = ua }
}

// WithLocale overrides navigator.language and the Accept-Language header.
func WithLocale(locale string) ContextOption {
	return func(o *contextOptions) { o.locale = locale }
}

// WithTimezone overrides the context's reported IANA timezone.
func WithTimezone(tz string) ContextOption {
	return func(o *contextOptions) { o.timezoneID = tz }
}

// WithColorScheme overrides prefers-color-scheme ("light", "dark", "no-preference").
func WithColorScheme(scheme string) ContextOption {
	return func(o *contextOptions) { o.colorScheme = scheme }
}

// WithOffline starts the context with the network reported as offline.
func WithOffline(offline bool) ContextOption {
	return func(o *contextOptions) { o.offline = offline }
}

// WithGeolocation overrides the Geolocation API's reported position.
func WithGeolocation(g Geolocation) ContextOption {
	return func(o *contextOptions) { o.geolocation = &g }
}

// WithPermissions grants the named permissions (e.g. "geolocation",
// "notifications") to every origin in the context.
func WithPermissions(perms ...string) ContextOption {
	return func(o *contextOptions) { o.permissions = perms }
}

// WithExtraHTTPHeaders adds headers sent with every request from the context.
func WithExtraHTTPHeaders(headers map[string]string) ContextOption {
	return func(o *contextOptions) {
		for k, v := range headers {
			o.extraHeaders = append(o.extraHeaders, extraHeader{k, v})
		}
	}
}

// WithHTTPCredentials answers HTTP basic-auth challenges automatically.
func WithHTTPCredentials(c Credentials) ContextOption {
	return func(o *contextOptions) { o.httpCredentials = &c }
}

// WithBypassCSP disables a page's Content-Security-Policy.
func WithBypassCSP(bypass bool) ContextOption {
	return func(o *contextOptions) { o.bypassCSP = bypass }
}

// WithJavaScriptDisabled makes pages from the context skip the context's
// init scripts (AddInitScript, SetFixedTime and the storage-state
// localStorage restore). Script execution itself is not disabled.
func WithJavaScriptDisabled() ContextOption {
	return func(o *contextOptions) { o.javaScriptEnabled = false }
}

// Pages returns a snapshot of the pages currently open in the context.
func (bc *BrowserContext) Pages() []*Page {
	bc.pagesMu.Lock()
	defer bc.pagesMu.Unlock()
	out := make([]*Page, len(bc.pages))
	copy(out, bc.pages)
	return out
}

// OnPage registers fn to run whenever a new Page opens in the context,
// including pages opened by window.open / target="_blank" links rather
// than an explicit NewPage call.
func (bc *BrowserContext) OnPage(fn func(*Page)) {
	bc.pageHandlersMu.Lock()
	bc.pageHandlers = append(bc.pageHandlers, fn)
	bc.pageHandlersMu.Unlock()
}

func (bc *BrowserContext) notifyPageOpened(p *Page) {
	bc.pageHandlersMu.Lock()
	handlers := append([]func(*Page){}, bc.pageHandlers...)
	bc.pageHandlersMu.Unlock()
	for _, h := range handlers {
		h(p)
	}
}

// AddInitScript registers a script evaluated in every page (and every
// frame of every page, in document-start order) the context opens from
// now on, before any of the page's own scripts run.
func (bc *BrowserContext) AddInitScript(script string) {
	bc.initScriptsMu.Lock()
	bc.initScripts = append(bc.initScripts, script)
	bc.initScriptsMu.Unlock()
}

// NewPage opens a new Page (browser tab) in the context, waits for the
// browser to attach to it and for its CDP domains to be enabled, and runs
// the context's OnPage handlers for it.
func (bc *BrowserContext) NewPage(ctx context.Context) (*Page, error) {
	targetID, err := target.CreateTarget("about:blank").
		WithBrowserContextID(bc.id).
		Do(cdp.WithExecutor(ctx, bc.browser))
	if err != nil {
		return nil, wrapCdp("NewPage", err)
	}

	attachCh := bc.browser.attachWaiterFor(targetID)
	var attached *target.EventAttachedToTarget
	select {
	case attached = <-attachCh:
	case <-ctx.Done():
		bc.browser.forgetAttachWaiter(targetID)
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		bc.browser.forgetAttachWaiter(targetID)
		return nil, ErrConnectionTimeout
	}

	p, err := bc.newPageFromAttach(ctx, attached)
	if err != nil {
		return nil, err
	}
	bc.notifyPageOpened(p)
	return p, nil
}

// adoptAttachedPage builds a Page for a target the browser attached to on
// its own initiative (a popup, or a target created before NewPage could
// register its waiter).
func (bc *BrowserContext) adoptAttachedPage(ctx context.Context, e *target.EventAttachedToTarget) (*Page, error) {
	return bc.newPageFromAttach(ctx, e)
}

func (bc *BrowserContext) newPageFromAttach(ctx context.Context, e *target.EventAttachedToTarget) (*Page, error) {
	s := bc.browser.sessionFor(ctx, e.SessionID, e.TargetInfo.TargetID, false)

	p := &Page{
		browserContext: bc,
		session:        s,
		targetID:       e.TargetInfo.TargetID,
		index:          int(atomic.AddInt32(&bc.nextPageIndex, 1)) - 1,
		ctxIndex:       bc.index,
		frames:         make(map[cdp.FrameID]*Frame),
		closedCh:       make(chan struct{}),
	}
	s.page = p

	if err := p.initialize(ctx); err != nil {
		return nil, err
	}

	bc.pagesMu.Lock()
	bc.pages = append(bc.pages, p)
	bc.pagesMu.Unlock()

	return p, nil
}

// Close disposes the BrowserContext and every page it owns. The default
// context (id == "") cannot be disposed; Close on it only closes its pages.
func (bc *BrowserContext) Close(ctx context.Context) error {
	bc.pagesMu.Lock()
	pages := append([]*Page{}, bc.pages...)
	bc.closed = true
	bc.pagesMu.Unlock()

	for _, p := range pages {
		_ = p.Close(ctx)
	}

	if bc.id == "" {
		return nil
	}
	bc.browser.contextsMu.Lock()
	delete(bc.browser.contexts, bc.id)
	bc.browser.contextsMu.Unlock()

	return target.DisposeBrowserContext(bc.id).Do(cdp.WithExecutor(ctx, bc.browser))
}

// applyToSession pushes the context's configured overrides onto a freshly
// attached session's target, mirroring what Playwright's BrowserContext
// does for every new page (xk6-browser's frame_session.go initialization
// sequence is the model here, condensed to a single session per page).
func (bc *BrowserContext) applyToSession(ctx context.Context, s *session) error {
	bc.optsMu.RLock()
	o := bc.opts
	bc.optsMu.RUnlock()

	exec := cdp.WithExecutor(ctx, s)

	if o.userAgent != "" || o.locale != "" {
		ua := network.SetUserAgentOverride(o.userAgent)
		if o.locale != "" {
			ua = ua.WithAcceptLanguage(o.locale)
		}
		if err := ua.Do(exec); err != nil {
			return err
		}
	}
	if o.offline {
		if err := network.EmulateNetworkConditions(true, 0, -1, -1).Do(exec); err != nil {
			return err
		}
	}
	if len(o.extraHeaders) > 0 {
		h := network.Headers{}
		for _, kv := range o.extraHeaders {
			h[kv.name] = kv.value
		}
		if err := network.SetExtraHTTPHeaders(h).Do(exec); err != nil {
			return err
		}
	}
	p := s.page
	if o.viewport != nil {
		if err := p.SetViewport(ctx, *o.viewport); err != nil {
			return err
		}
	}
	if o.geolocation != nil {
		if err := p.SetGeolocation(ctx, o.geolocation); err != nil {
			return err
		}
	}
	if o.timezoneID != "" {
		if err := p.SetTimezone(ctx, o.timezoneID); err != nil {
			return err
		}
	}
	if o.colorScheme != "" {
		if err := p.EmulateMedia(ctx, o.colorScheme, ""); err != nil {
			return err
		}
	}
	if o.bypassCSP {
		if err := p.setBypassCSP(ctx, true); err != nil {
			return err
		}
	}
	// no direct Emulation command disables script execution per
	// navigation reliably across all cdproto versions; pages created
	// with WithJavaScriptDisabled instead skip init-script injection
	// and rely on the caller not running JS-dependent locators.
	if o.javaScriptEnabled {
		bc.initScriptsMu.Lock()
		scripts := append([]string{}, bc.initScripts...)
		bc.initScriptsMu.Unlock()
		for _, script := range scripts {
			if err := page.AddScriptToEvaluateOnNewDocument(script).Do(exec); err != nil {
				return err
			}
		}
	}
	return nil
}
