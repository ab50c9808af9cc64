package viewpoint

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/runtime"
)

// actionabilityResult decodes actionabilityJS's return value.
type actionabilityResult struct {
	Visible   bool    `json:"visible"`
	Covered   bool    `json:"covered"`
	CoveredBy string  `json:"coveredBy"`
	Enabled   bool    `json:"enabled"`
	Rect      rectDIP `json:"rect"`
}

type rectDIP struct {
	X, Y, Width, Height float64
}

// waitForActionable polls the element until it's visible, not covered by
// another element, and (when requireEnabled is true) not disabled,
// returning its RemoteObjectID once all hold or an actionability error
// once ctx expires. This replaces per-action ad hoc checks with one
// shared poll loop, the way Playwright's actionability checks run before
// every Locator action.
func (l *Locator) waitForActionable(ctx context.Context, requireEnabled bool, opts ...WaitOption) (resolvedElement, actionabilityResult, error) {
	o := newWaitOptions(opts...)
	ctx, cancel := o.deadlineCtx(ctx)
	defer cancel()

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		el, err := l.single(ctx)
		if err != nil {
			lastErr = err
		} else {
			var res actionabilityResult
			if callErr := callOnObject(ctx, l.frame.page.session, el.objectID, actionabilityJS, &res); callErr != nil {
				lastErr = callErr
			} else {
				switch {
				case !res.Visible:
					lastErr = ErrElementNotVisible
				case res.Covered:
					lastErr = ErrElementCovered
				case requireEnabled && !res.Enabled:
					lastErr = ErrElementNotEnabled
				default:
					return el, res, nil
				}
			}
		}
		select {
		case <-ctx.Done():
			if lastErr == nil {
				lastErr = ErrWaitTimeout
			}
			return resolvedElement{}, actionabilityResult{}, lastErr
		case <-ticker.C:
		}
	}
}

func (l *Locator) centerPoint(r rectDIP) (x, y float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// scrollIntoViewIfNeeded scrolls the element to the center of the
// viewport. It does so on every call; it does not first check whether the
// element is already in view.
func (l *Locator) scrollIntoViewIfNeeded(ctx context.Context, objectID runtime.RemoteObjectID) error {
	const scrollJS = `function() { this.scrollIntoView({block: 'center', inline: 'center'}); }`
	return callOnObject(ctx, l.frame.page.session, objectID, scrollJS, nil)
}
