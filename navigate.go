package viewpoint

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
)

// Goto navigates the frame to url and waits for the requested load state
// (LifecycleLoad by default). It is the direct replacement for the
// teacher's nav.go, driven by navDetector instead of a one-shot listener.
func (f *Frame) Goto(ctx context.Context, url string, opts ...WaitOption) error {
	o := newWaitOptions(opts...)
	exec := cdp.WithExecutor(ctx, f.page.session)

	_, _, errText, err := page.Navigate(url).WithFrameID(f.id).Do(exec)
	if err != nil {
		return wrapCdp("Page.navigate", err)
	}
	if errText != "" {
		return ErrNavigationFailed
	}

	return f.page.WaitForLoadState(ctx, WithLoadState(o.lifecycleState))
}

// Goto navigates the page's main frame.
func (p *Page) Goto(ctx context.Context, url string, opts ...WaitOption) error {
	return p.MainFrame().Goto(ctx, url, opts...)
}

// Reload reloads the page's main frame.
func (p *Page) Reload(ctx context.Context, opts ...WaitOption) error {
	if err := page.Reload().Do(cdp.WithExecutor(ctx, p.session)); err != nil {
		return wrapCdp("Page.reload", err)
	}
	o := newWaitOptions(opts...)
	return p.WaitForLoadState(ctx, WithLoadState(o.lifecycleState))
}

// GoBack navigates the page's history backward one entry.
func (p *Page) GoBack(ctx context.Context, opts ...WaitOption) error {
	return p.navigateHistory(ctx, -1, opts...)
}

// GoForward navigates the page's history forward one entry.
func (p *Page) GoForward(ctx context.Context, opts ...WaitOption) error {
	return p.navigateHistory(ctx, 1, opts...)
}

func (p *Page) navigateHistory(ctx context.Context, delta int, opts ...WaitOption) error {
	exec := cdp.WithExecutor(ctx, p.session)
	idx, entries, err := page.GetNavigationHistory().Do(exec)
	if err != nil {
		return wrapCdp("Page.getNavigationHistory", err)
	}
	target := int(idx) + delta
	if target < 0 || target >= len(entries) {
		return ErrNavigationFailed
	}
	if err := page.NavigateToHistoryEntry(entries[target].ID).Do(exec); err != nil {
		return wrapCdp("Page.navigateToHistoryEntry", err)
	}
	o := newWaitOptions(opts...)
	return p.WaitForLoadState(ctx, WithLoadState(o.lifecycleState))
}

// URL returns the page's current main-frame URL.
func (p *Page) URL() string {
	return p.MainFrame().URL()
}

// Title returns document.title.
func (p *Page) Title(ctx context.Context) (string, error) {
	ec, err := p.MainFrame().mainWorld(ctx)
	if err != nil {
		return "", err
	}
	var title string
	err = ec.Evaluate(ctx, "return document.title;", &title)
	return title, err
}

// Content returns the page's serialized HTML document.
func (p *Page) Content(ctx context.Context) (string, error) {
	ec, err := p.MainFrame().mainWorld(ctx)
	if err != nil {
		return "", err
	}
	var html string
	err = ec.Evaluate(ctx, "return document.documentElement.outerHTML;", &html)
	return html, err
}

// SetContent replaces the page's document with html and waits for the
// requested load state.
func (p *Page) SetContent(ctx context.Context, html string, opts ...WaitOption) error {
	ec, err := p.MainFrame().mainWorld(ctx)
	if err != nil {
		return err
	}
	if err := ec.Call(ctx, `function(html){ document.open(); document.write(html); document.close(); }`, nil, html); err != nil {
		return err
	}
	o := newWaitOptions(opts...)
	return p.WaitForLoadState(ctx, WithLoadState(o.lifecycleState))
}

// Evaluate runs expression in the page's main frame, main world.
func (p *Page) Evaluate(ctx context.Context, expression string, res interface{}) error {
	ec, err := p.MainFrame().mainWorld(ctx)
	if err != nil {
		return err
	}
	return ec.Evaluate(ctx, expression, res)
}
