package viewpoint

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
)

// clockInstallTemplate replaces Date (the constructor and Date.now) with a
// fake clock seeded at epochMillis, as an init script rather than a
// CDP-native time override, since DevTools has none for page-visible Date
// behavior. setTimeout, setInterval, requestAnimationFrame and
// performance.now are left untouched.
const clockInstallTemplate = `(function(){
	const epoch = %d;
	const start = Date.now();
	const RealDate = Date;
	function FakeDate(...args) {
		if (args.length === 0) return new RealDate(RealDate.now() - start + epoch);
		return new RealDate(...args);
	}
	FakeDate.now = function() { return RealDate.now() - start + epoch; };
	FakeDate.prototype = RealDate.prototype;
	window.Date = FakeDate;
})();`

// SetFixedTime installs a fake clock into every page the context opens from
// now on, starting at epochMillis (milliseconds since the Unix epoch) and
// advancing in real time from there; the time is not held fixed.
func (bc *BrowserContext) SetFixedTime(epochMillis int64) {
	bc.AddInitScript(fmt.Sprintf(clockInstallTemplate, epochMillis))
}

// SetFixedTime installs the fake clock into an already-open page directly,
// for tests that need to change the clock mid-session rather than only at
// page-creation time.
func (p *Page) SetFixedTime(ctx context.Context, epochMillis int64) error {
	script := fmt.Sprintf(clockInstallTemplate, epochMillis)
	if err := page.AddScriptToEvaluateOnNewDocument(script).Do(cdp.WithExecutor(ctx, p.session)); err != nil {
		return wrapCdp("Page.addScriptToEvaluateOnNewDocument", err)
	}
	ec, err := p.MainFrame().mainWorld(ctx)
	if err != nil {
		return err
	}
	return ec.Call(ctx, "function(s){ (0, eval)(s); }", nil, script)
}
