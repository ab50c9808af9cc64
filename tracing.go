package viewpoint

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/tracing"
)

// tracingSession accumulates Tracing.dataCollected events for one
// StartTracing/StopTracing span.
type tracingSession struct {
	mu     sync.Mutex
	events []json.RawMessage
}

// StartTracing begins a Chromium performance trace on the page's browser,
// covering every page the browser has open (Tracing is a browser-wide CDP
// domain, unlike the per-page Network/Page domains). Call the returned stop
// function to end the trace and write its recorded events as a Chrome
// trace-event-format JSON array to path.
func (p *Page) StartTracing(ctx context.Context, categories []string) (stop func(ctx context.Context, path string) error, err error) {
	exec := cdp.WithExecutor(ctx, p.browserContext.browser)
	sess := &tracingSession{}

	cancel := p.browserContext.browser.listen(func(ev interface{}) {
		if e, ok := ev.(*tracing.EventDataCollected); ok {
			sess.mu.Lock()
			for _, v := range e.Value {
				sess.events = append(sess.events, v)
			}
			sess.mu.Unlock()
		}
	})

	cfg := tracing.TraceConfig{
		IncludedCategories: categories,
	}
	if err := tracing.Start().WithTraceConfig(&cfg).Do(exec); err != nil {
		cancel()
		return nil, wrapCdp("Tracing.start", err)
	}

	return func(ctx context.Context, path string) error {
		defer cancel()
		done := make(chan struct{})
		tapDone := p.browserContext.browser.listen(func(ev interface{}) {
			if _, ok := ev.(*tracing.EventTracingComplete); ok {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		})
		defer tapDone()

		if err := tracing.End().Do(cdp.WithExecutor(ctx, p.browserContext.browser)); err != nil {
			return wrapCdp("Tracing.end", err)
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		sess.mu.Lock()
		buf, err := json.Marshal(sess.events)
		sess.mu.Unlock()
		if err != nil {
			return err
		}
		return os.WriteFile(path, buf, 0o644)
	}, nil
}
