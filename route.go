package viewpoint

import (
	"context"
	"encoding/base64"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
)

// Request is a lightweight view of a network request, handed to
// Page.OnRequest/OnResponse handlers and to route handlers.
type Request struct {
	page      *Page
	requestID network.RequestID
	fetchID   fetch.RequestID
	URL       string
	Method    string
	Headers   map[string]string
	Resource  string
}

// Response pairs a Request with its status once CDP reports it.
type Response struct {
	Request    *Request
	Status     int64
	StatusText string
	Headers    map[string]string
}

// RouteHandler decides what to do with an intercepted request: call
// Fulfill to answer it directly, Continue to let it proceed unmodified, or
// Abort to fail it.
type RouteHandler func(ctx context.Context, route *Route) error

// Route is the live, in-flight request a RouteHandler was given control
// over, backed by Fetch.continueRequest/fulfillRequest/failRequest.
type Route struct {
	page    *Page
	req     *fetch.EventRequestPaused
	handled bool
	mu      sync.Mutex
}

type registeredRoute struct {
	pattern string
	handler RouteHandler
}

// Route registers handler for every request whose URL matches pattern (a
// glob: "*" and "?" wildcards, like Playwright's page.route), checked most
// recently first so a later Route call overrides an earlier overlapping
// one without removing it.
func (p *Page) Route(pattern string, handler RouteHandler) error {
	p.routesMu.Lock()
	p.routes = append([]*registeredRoute{{pattern, handler}}, p.routes...)
	first := len(p.routes) == 1
	p.routesMu.Unlock()
	if !first {
		return nil
	}
	return fetch.Enable().Do(cdp.WithExecutor(context.Background(), p.session))
}

// Unroute removes every handler registered for pattern.
func (p *Page) Unroute(pattern string) {
	p.routesMu.Lock()
	defer p.routesMu.Unlock()
	kept := p.routes[:0]
	for _, r := range p.routes {
		if r.pattern != pattern {
			kept = append(kept, r)
		}
	}
	p.routes = kept
}

// Route registers a context-wide handler applied to every page the
// BrowserContext opens, checked after any page-level route.
func (bc *BrowserContext) Route(pattern string, handler RouteHandler) {
	bc.routesMu.Lock()
	bc.routes = append([]*registeredRoute{{pattern, handler}}, bc.routes...)
	bc.routesMu.Unlock()
}

// onRequestPaused is the Fetch.requestPaused dispatcher; it runs the first
// matching page-level route, then context-level route, and otherwise
// continues the request unmodified. A handler that panics or returns an
// error has the request failed with Fetch.failRequest ("Failed") rather
// than crashing the session, mirroring how Playwright isolates route
// handler failures from the rest of the page.
func (p *Page) onRequestPaused(ctx context.Context, e *fetch.EventRequestPaused) {
	route := &Route{page: p, req: e}

	p.routesMu.Lock()
	pageRoutes := append([]*registeredRoute{}, p.routes...)
	p.routesMu.Unlock()

	bc := p.browserContext
	bc.routesMu.Lock()
	ctxRoutes := append([]*registeredRoute{}, bc.routes...)
	bc.routesMu.Unlock()

	for _, set := range [][]*registeredRoute{pageRoutes, ctxRoutes} {
		for _, r := range set {
			if !globMatch(r.pattern, e.Request.URL) {
				continue
			}
			if p.runRouteHandler(ctx, r.handler, route) {
				return
			}
		}
	}
	_ = route.Continue(ctx)
}

// runRouteHandler runs h and reports whether it finally handled the
// request (Continue/Fulfill/Abort/Fetch+terminal-action). A handler that
// returns without calling any of those — or that explicitly calls
// route.Fallback — leaves route.handled false, so onRequestPaused keeps
// scanning subsequent matching handlers instead of treating the request
// as resolved.
func (p *Page) runRouteHandler(ctx context.Context, h RouteHandler, route *Route) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			_ = route.Abort(ctx, "Failed")
			handled = true
		}
	}()
	if err := h(ctx, route); err != nil {
		_ = route.Abort(ctx, "Failed")
		return true
	}
	route.mu.Lock()
	handled = route.handled
	route.mu.Unlock()
	return handled
}

// Request returns a view of the paused request.
func (r *Route) Request() *Request {
	h := map[string]string{}
	for k, v := range r.req.Request.Headers {
		if s, ok := v.(string); ok {
			h[k] = s
		}
	}
	return &Request{
		page:     r.page,
		fetchID:  r.req.RequestID,
		URL:      r.req.Request.URL,
		Method:   r.req.Request.Method,
		Headers:  h,
		Resource: string(r.req.ResourceType),
	}
}

func (r *Route) markHandled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handled {
		return false
	}
	r.handled = true
	return true
}

// Continue lets the request proceed unchanged. It takes no URL, method,
// header or body overrides.
func (r *Route) Continue(ctx context.Context) error {
	if !r.markHandled() {
		return nil
	}
	return fetch.ContinueRequest(r.req.RequestID).Do(cdp.WithExecutor(ctx, r.page.session))
}

// Fulfill answers the request directly without it reaching the network.
func (r *Route) Fulfill(ctx context.Context, status int64, contentType string, body []byte) error {
	if !r.markHandled() {
		return ErrInvalidFulfillment
	}
	hdrs := []*fetch.HeaderEntry{{Name: "content-type", Value: contentType}}
	return fetch.FulfillRequest(r.req.RequestID, status).
		WithResponseHeaders(hdrs).
		WithBody(body).
		Do(cdp.WithExecutor(ctx, r.page.session))
}

// Abort fails the request with the given Network.ErrorReason (e.g. "Failed",
// "Aborted", "ConnectionRefused").
func (r *Route) Abort(ctx context.Context, reason string) error {
	if !r.markHandled() {
		return nil
	}
	return fetch.FailRequest(r.req.RequestID, network.ErrorReason(reason)).
		Do(cdp.WithExecutor(ctx, r.page.session))
}

// Fallback declines to handle the request, letting onRequestPaused try
// the next registered handler (and, if none remain, continue the request
// unmodified). It is equivalent to returning nil from a RouteHandler
// without calling Continue/Fulfill/Abort/Fetch.
func (r *Route) Fallback() error {
	return nil
}

// FetchedResponse is the real network response to an intercepted request,
// returned by Route.Fetch so a handler can inspect or rewrite it before
// passing it on to Fulfill.
type FetchedResponse struct {
	Status  int64
	Headers map[string]string
	Body    []byte
}

// Fetch lets the request continue to the network and pauses again once
// the response arrives, returning it for inspection (Playwright's
// route.fetch()). The caller is responsible for a subsequent terminal
// call — typically Fulfill with a (possibly modified) FetchedResponse, or
// Continue/Abort — Fetch itself does not mark the route handled.
func (r *Route) Fetch(ctx context.Context) (*FetchedResponse, error) {
	exec := cdp.WithExecutor(ctx, r.page.session)
	waiter := r.page.waitResponseStage(r.req.RequestID)
	if err := fetch.ContinueRequest(r.req.RequestID).
		WithInterceptResponse(true).
		Do(exec); err != nil {
		r.page.forgetResponseStageWaiter(r.req.RequestID)
		return nil, wrapCdp("Fetch.continueRequest", err)
	}

	var resp *fetch.EventRequestPaused
	select {
	case resp = <-waiter:
	case <-ctx.Done():
		r.page.forgetResponseStageWaiter(r.req.RequestID)
		return nil, ctx.Err()
	}

	body, base64Encoded, err := fetch.GetResponseBody(resp.RequestID).Do(exec)
	if err != nil {
		return nil, wrapCdp("Fetch.getResponseBody", err)
	}
	raw := []byte(body)
	if base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil {
			return nil, err
		}
		raw = decoded
	}

	headers := map[string]string{}
	for _, h := range resp.ResponseHeaders {
		headers[h.Name] = h.Value
	}

	r.req = resp
	return &FetchedResponse{Status: resp.ResponseStatusCode, Headers: headers, Body: raw}, nil
}

// onAuthRequired answers Fetch basic-auth challenges using the context's
// configured HTTPCredentials, or cancels the challenge if none were set.
func (p *Page) onAuthRequired(ctx context.Context, e *fetch.EventAuthRequired) {
	p.browserContext.optsMu.RLock()
	creds := p.browserContext.opts.httpCredentials
	p.browserContext.optsMu.RUnlock()

	resp := &fetch.AuthChallengeResponse{Response: fetch.AuthChallengeResponseResponseCancelAuth}
	if creds != nil {
		resp = &fetch.AuthChallengeResponse{
			Response: fetch.AuthChallengeResponseResponseProvideCredentials,
			Username: creds.Username,
			Password: creds.Password,
		}
	}
	_ = fetch.ContinueWithAuth(e.RequestID, resp).Do(cdp.WithExecutor(ctx, p.session))
}

func (p *Page) onRequestWillBeSent(e *network.EventRequestWillBeSent) {
	req := &Request{
		page:      p,
		requestID: e.RequestID,
		URL:       e.Request.URL,
		Method:    e.Request.Method,
		Resource:  string(e.Type),
	}
	p.handlersMu.Lock()
	handlers := append([]func(*Request){}, p.requestHandlers...)
	p.handlersMu.Unlock()
	for _, h := range handlers {
		h(req)
	}
}

func (p *Page) onResponseReceived(e *network.EventResponseReceived) {
	headers := map[string]string{}
	for k, v := range e.Response.Headers {
		var s string
		s, _ = v.(string)
		headers[k] = s
	}
	resp := &Response{
		Request: &Request{
			page:      p,
			requestID: e.RequestID,
			URL:       e.Response.URL,
			Resource:  string(e.Type),
		},
		Status:     e.Response.Status,
		StatusText: e.Response.StatusText,
		Headers:    headers,
	}
	p.handlersMu.Lock()
	handlers := append([]func(*Response){}, p.responseHandlers...)
	p.handlersMu.Unlock()
	for _, h := range handlers {
		h(resp)
	}
}

// globMatch implements the subset of shell globbing ("*" and "?")
// Playwright-style route patterns use.
func globMatch(pattern, s string) bool {
	return globMatchRunes([]rune(pattern), []rune(s))
}

func globMatchRunes(pattern, s []rune) bool {
	if len(pattern) == 0 {
		return len(s) == 0
	}
	switch pattern[0] {
	case '*':
		if globMatchRunes(pattern[1:], s) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if globMatchRunes(pattern[1:], s[i+1:]) {
				return true
			}
		}
		return false
	case '?':
		if len(s) == 0 {
			return false
		}
		return globMatchRunes(pattern[1:], s[1:])
	default:
		if len(s) == 0 || s[0] != pattern[0] {
			return false
		}
		return globMatchRunes(pattern[1:], s[1:])
	}
}
