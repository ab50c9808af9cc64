package viewpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
)

// BindingFunc is a function exposed into page JavaScript via
// Page.ExposeFunction. It receives the single string argument the page-side
// call was made with, and returns the string result (or error) to resolve
// (or reject) the call's promise with.
type BindingFunc func(args string) (string, error)

// bindingCalledPayload decodes a Runtime.bindingCalled event's Payload, the
// JSON envelope exposedFunJS's page-side shim wraps every call in.
type bindingCalledPayload struct {
	Name string `json:"name"`
	Seq  int64  `json:"seq"`
	Args string `json:"args"`
}

// ExposeFunction installs name on the page's window object; calling it from
// page JS invokes fn in Go and resolves the page-side promise with its
// result. Unlike Puppeteer's exposeFunction, fn always takes exactly one
// string argument (the page-side caller is responsible for any encoding).
func (p *Page) ExposeFunction(ctx context.Context, name string, fn BindingFunc) error {
	p.bindingsMu.Lock()
	if p.bindings == nil {
		p.bindings = make(map[string]BindingFunc)
	}
	if _, exists := p.bindings[name]; exists {
		p.bindingsMu.Unlock()
		return ErrExposeNameExist
	}
	p.bindings[name] = fn
	p.bindingsMu.Unlock()

	var bootstrapErr error
	p.bindingsBootstrap.Do(func() {
		bootstrapErr = page.AddScriptToEvaluateOnNewDocument(exposedFunJS).
			Do(cdp.WithExecutor(ctx, p.session))
	})
	if bootstrapErr != nil {
		return wrapCdp("Page.addScriptToEvaluateOnNewDocument", bootstrapErr)
	}

	exec := cdp.WithExecutor(ctx, p.session)
	if err := runtime.AddBinding(name).Do(exec); err != nil {
		return wrapCdp("Runtime.addBinding", err)
	}

	expression := exposedFunJS + addPageBindingCall(name)
	if err := page.AddScriptToEvaluateOnNewDocument(expression).Do(exec); err != nil {
		return wrapCdp("Page.addScriptToEvaluateOnNewDocument", err)
	}

	ec, err := p.MainFrame().mainWorld(ctx)
	if err != nil {
		return err
	}
	return ec.Evaluate(ctx, expression, nil)
}

// onBindingCalled runs the bound Go function for an incoming
// Runtime.bindingCalled event and delivers its result back into the
// originating execution context's promise.
func (p *Page) onBindingCalled(ctx context.Context, e *runtime.EventBindingCalled) {
	var payload bindingCalledPayload
	if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
		return
	}

	p.bindingsMu.Lock()
	fn, ok := p.bindings[payload.Name]
	p.bindingsMu.Unlock()

	var expression string
	if !ok {
		expression = deliverError(payload.Name, payload.Seq, "no such exposed function")
	} else if res, err := fn(payload.Args); err != nil {
		expression = deliverError(payload.Name, payload.Seq, err.Error())
	} else {
		expression = deliverResult(payload.Name, payload.Seq, res)
	}

	exec := cdp.WithExecutor(ctx, p.session)
	_, _, err := runtime.Evaluate(expression).WithContextID(e.ExecutionContextID).Do(exec)
	if err != nil {
		p.browserContext.browser.errf("deliver binding result for %s: %v", payload.Name, err)
	}
}

// exposedFunJS installs the page-side shim ExposeFunction's bindings run
// through: it turns the raw CDP binding (which only accepts one string and
// has no return value) into a promise-returning function, grounded on
// Puppeteer's Page._exposeFunction bootstrap.
const exposedFunJS = `
(function(){
	if (window.__viewpointBindings__) return;
	window.__viewpointBindings__ = {
		callbacks: new Map(),
		lastSeq: 0,
		deliverResult: function(name, seq, result) {
			const cb = window.__viewpointBindings__.callbacks.get(name + ':' + seq);
			if (!cb) return;
			window.__viewpointBindings__.callbacks.delete(name + ':' + seq);
			cb.resolve(result);
		},
		deliverError: function(name, seq, message) {
			const cb = window.__viewpointBindings__.callbacks.get(name + ':' + seq);
			if (!cb) return;
			window.__viewpointBindings__.callbacks.delete(name + ':' + seq);
			cb.reject(new Error(message));
		},
	};
})();
`

func addPageBindingCall(name string) string {
	return fmt.Sprintf(`(function(){
	const callCDP = window[%[1]q];
	Object.defineProperty(window, %[1]q, {
		value: function(args) {
			if (typeof args !== 'string') {
				return Promise.reject(new Error('exposed function takes exactly one string argument'));
			}
			const seq = ++window.__viewpointBindings__.lastSeq;
			callCDP(JSON.stringify({name: %[1]q, seq: seq, args: args}));
			return new Promise((resolve, reject) => {
				window.__viewpointBindings__.callbacks.set(%[1]q + ':' + seq, {resolve, reject});
			});
		},
		configurable: true,
	});
})();`, name)
}

func deliverResult(name string, seq int64, result string) string {
	return fmt.Sprintf(`window.__viewpointBindings__.deliverResult(%q, %d, %s);`, name, seq, jsonString(result))
}

func deliverError(name string, seq int64, message string) string {
	return fmt.Sprintf(`window.__viewpointBindings__.deliverError(%q, %d, %s);`, name, seq, jsonString(message))
}

func jsonString(s string) string {
	buf, _ := json.Marshal(s)
	return string(buf)
}
