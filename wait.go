package viewpoint

import (
	"context"
	"time"
)

// defaultTimeout is applied to any wait operation whose caller didn't set
// a deadline on ctx and didn't pass an explicit WithTimeout option.
const defaultTimeout = 30 * time.Second

// waitOptions configures Locator waits and navigation waits uniformly,
// replacing the teacher's separate PollOption/query option sets with one
// shared shape.
type waitOptions struct {
	timeout        time.Duration
	timeoutSet     bool
	pollInterval   time.Duration
	lifecycleState LifecycleState
}

// WaitOption configures a wait operation.
type WaitOption func(*waitOptions)

// WithTimeout bounds how long a wait operation may run.
func WithTimeout(d time.Duration) WaitOption {
	return func(o *waitOptions) { o.timeout, o.timeoutSet = d, true }
}

// WithPollInterval sets how often predicate-based waits
// (Frame.waitForFunction, actionability polling) re-check their condition.
func WithPollInterval(d time.Duration) WaitOption {
	return func(o *waitOptions) { o.pollInterval = d }
}

// WithLoadState selects which lifecycle milestone WaitForNavigation waits
// for; the default is LifecycleLoad.
func WithLoadState(s LifecycleState) WaitOption {
	return func(o *waitOptions) { o.lifecycleState = s }
}

func newWaitOptions(opts ...WaitOption) waitOptions {
	o := waitOptions{timeout: defaultTimeout, pollInterval: 50 * time.Millisecond, lifecycleState: LifecycleLoad}
	for _, f := range opts {
		f(&o)
	}
	return o
}

func (o waitOptions) deadlineCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok && !o.timeoutSet {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}

// WaitForLoadState blocks until the page's main frame reaches the given
// lifecycle milestone (or the current one, if it's already there).
func (p *Page) WaitForLoadState(ctx context.Context, opts ...WaitOption) error {
	o := newWaitOptions(opts...)
	ctx, cancel := o.deadlineCtx(ctx)
	defer cancel()

	ch := p.nav.subscribe(func(n *navDetector) bool {
		return n.hasLifecycle(o.lifecycleState)
	})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ErrNavigationTimeout
	}
}

// WaitForNavigation blocks until the main frame commits a new document
// (frameNavigated with a different URL, or a same-document navigation)
// and reaches the requested lifecycle state.
func (p *Page) WaitForNavigation(ctx context.Context, opts ...WaitOption) error {
	o := newWaitOptions(opts...)
	ctx, cancel := o.deadlineCtx(ctx)
	defer cancel()

	startURL := p.nav.currentURL()
	committed := p.nav.subscribe(func(n *navDetector) bool {
		return n.currentURL() != startURL
	})
	select {
	case <-committed:
	case <-ctx.Done():
		return ErrNavigationTimeout
	}
	return p.WaitForLoadState(ctx, WithLoadState(o.lifecycleState))
}

// waitForFunction polls fnDecl (a JS predicate function body, `function(){ ... }`)
// in the frame's main world until it returns a truthy value, decoding the
// final truthy result into res if res != nil. This is the rewrite of the
// teacher's poll.go PollFunction, adapted to the Frame/ExecutionContext
// model instead of context.Value-carried Actions.
func (f *Frame) waitForFunction(ctx context.Context, fnDecl string, res interface{}, args []interface{}, opts ...WaitOption) error {
	o := newWaitOptions(opts...)
	ctx, cancel := o.deadlineCtx(ctx)
	defer cancel()

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		ec, err := f.mainWorld(ctx)
		if err == nil {
			var raw interface{}
			callErr := ec.Call(ctx, fnDecl, &raw, args...)
			if callErr == nil && isTruthy(raw) {
				if res != nil {
					return ec.Call(ctx, fnDecl, res, args...)
				}
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ErrWaitTimeout
		case <-ticker.C:
		}
	}
}

func isTruthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
