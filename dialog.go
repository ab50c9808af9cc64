package viewpoint

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
)

// Accept accepts the dialog, supplying promptText for a window.prompt.
func (d *Dialog) Accept(ctx context.Context, promptText string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handled {
		return nil
	}
	d.handled = true
	return page.HandleJavaScriptDialog(true).
		WithPromptText(promptText).
		Do(cdp.WithExecutor(ctx, d.page.session))
}

// Dismiss dismisses (cancels) the dialog.
func (d *Dialog) Dismiss(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handled {
		return nil
	}
	d.handled = true
	return page.HandleJavaScriptDialog(false).Do(cdp.WithExecutor(ctx, d.page.session))
}
