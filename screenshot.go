package viewpoint

import (
	"context"
	"math"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
)

// ScreenshotOptions configures Page.Screenshot and Locator.Screenshot.
type ScreenshotOptions struct {
	FullPage bool
	Quality  int // 0-100; 100 (the default) captures PNG, anything else JPEG
}

// Screenshot captures the page's current viewport (or, with FullPage, the
// entire scrollable page) as PNG/JPEG-encoded image bytes. It's the direct
// replacement for the teacher's CaptureScreenshot/FullScreenshot actions,
// restructured as a Page method now that there is a session to issue the
// CDP commands against directly instead of an Action closure.
func (p *Page) Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error) {
	exec := cdp.WithExecutor(ctx, p.session)
	format := page.CaptureScreenshotFormatPng
	quality := opts.Quality
	if quality == 0 {
		quality = 100
	}
	if quality != 100 {
		format = page.CaptureScreenshotFormatJpeg
	}

	cmd := page.CaptureScreenshot().WithFormat(format).WithCaptureBeyondViewport(opts.FullPage)
	if format == page.CaptureScreenshotFormatJpeg {
		cmd = cmd.WithQuality(int64(quality))
	}

	if opts.FullPage {
		_, _, contentSize, _, _, cssContentSize, err := page.GetLayoutMetrics().Do(exec)
		if err != nil {
			return nil, wrapCdp("Page.getLayoutMetrics", err)
		}
		if cssContentSize != nil {
			contentSize = cssContentSize
		}
		cmd = cmd.WithClip(&page.Viewport{
			X: 0, Y: 0,
			Width: contentSize.Width, Height: contentSize.Height,
			Scale: 1,
		})
	}

	buf, err := cmd.Do(exec)
	if err != nil {
		return nil, wrapCdp("Page.captureScreenshot", err)
	}
	return buf, nil
}

// Screenshot captures just the locator's single resolved element, the
// direct replacement for the teacher's node-scoped Screenshot action.
// Strict mode applies: the locator must resolve to exactly one element.
func (l *Locator) Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error) {
	el, _, err := l.waitForActionable(ctx, false)
	if err != nil {
		return nil, err
	}

	var clip page.Viewport
	if err := callOnObject(ctx, l.frame.page.session, el.objectID, getClientRectJS, &clip); err != nil {
		return nil, err
	}
	clip = roundClip(clip)

	quality := opts.Quality
	if quality == 0 {
		quality = 100
	}
	format := page.CaptureScreenshotFormatPng
	if quality != 100 {
		format = page.CaptureScreenshotFormatJpeg
	}

	exec := cdp.WithExecutor(ctx, l.frame.page.session)
	cmd := page.CaptureScreenshot().
		WithFormat(format).
		WithCaptureBeyondViewport(true).
		WithClip(&clip)
	if format == page.CaptureScreenshotFormatJpeg {
		cmd = cmd.WithQuality(int64(quality))
	}
	buf, err := cmd.Do(exec)
	if err != nil {
		return nil, wrapCdp("Page.captureScreenshot", err)
	}
	return buf, nil
}

// roundClip snaps a getBoundingClientRect-derived clip to whole pixels.
// CaptureScreenshot's clip rejects fractional dimensions; this matches
// Puppeteer's ElementHandle.screenshot rounding, which grows width/height by
// the rounding error on x/y rather than rounding them independently, so the
// clip doesn't clip off the element's true bottom-right edge.
func roundClip(clip page.Viewport) page.Viewport {
	x, y := math.Round(clip.X), math.Round(clip.Y)
	clip.Width, clip.Height = math.Round(clip.Width+clip.X-x), math.Round(clip.Height+clip.Y-y)
	clip.X, clip.Y = x, y
	clip.Scale = 1
	return clip
}
