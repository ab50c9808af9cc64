package viewpoint

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
)

// SetViewport overrides the page's reported viewport size, the direct
// replacement for the teacher's EmulateViewport action, restructured as a
// Page method since viewport state now lives on the session rather than
// being re-applied action by action.
func (p *Page) SetViewport(ctx context.Context, v Viewport, opts ...ViewportOption) error {
	o := viewportOptions{scale: 1}
	for _, f := range opts {
		f(&o)
	}
	exec := cdp.WithExecutor(ctx, p.session)
	m := emulation.SetDeviceMetricsOverride(v.Width, v.Height, o.scale, o.mobile)
	if o.orientation != "" {
		m = m.WithScreenOrientation(&emulation.ScreenOrientation{Type: o.orientation, Angle: o.orientationAngle})
	}
	if err := m.Do(exec); err != nil {
		return wrapCdp("Emulation.setDeviceMetricsOverride", err)
	}
	if err := emulation.SetTouchEmulationEnabled(o.touch).Do(exec); err != nil {
		return wrapCdp("Emulation.setTouchEmulationEnabled", err)
	}
	return nil
}

// ResetViewport clears a prior SetViewport override.
func (p *Page) ResetViewport(ctx context.Context) error {
	exec := cdp.WithExecutor(ctx, p.session)
	if err := emulation.ClearDeviceMetricsOverride().Do(exec); err != nil {
		return wrapCdp("Emulation.clearDeviceMetricsOverride", err)
	}
	return emulation.SetTouchEmulationEnabled(false).Do(exec)
}

// viewportOptions configures SetViewport's device-metrics and touch-emulation
// overrides beyond plain width/height.
type viewportOptions struct {
	scale            float64
	mobile           bool
	touch            bool
	orientation      emulation.OrientationType
	orientationAngle int64
}

// ViewportOption configures SetViewport.
type ViewportOption func(*viewportOptions)

// WithDeviceScaleFactor sets the emulated device pixel ratio.
func WithDeviceScaleFactor(scale float64) ViewportOption {
	return func(o *viewportOptions) { o.scale = scale }
}

// WithMobile emulates a mobile viewport (affects meta viewport handling).
func WithMobile(mobile bool) ViewportOption {
	return func(o *viewportOptions) { o.mobile = mobile }
}

// WithTouchEmulation enables touch event dispatch for the viewport.
func WithTouchEmulation(touch bool) ViewportOption {
	return func(o *viewportOptions) { o.touch = touch }
}

// WithLandscape orients the emulated viewport in landscape-primary mode.
func WithLandscape() ViewportOption {
	return func(o *viewportOptions) {
		o.orientation, o.orientationAngle = emulation.OrientationTypeLandscapePrimary, 90
	}
}

// WithPortrait orients the emulated viewport in portrait-primary mode.
func WithPortrait() ViewportOption {
	return func(o *viewportOptions) {
		o.orientation, o.orientationAngle = emulation.OrientationTypePortraitPrimary, 0
	}
}

// EmulateMedia overrides the page's reported prefers-color-scheme and
// emulated output media ("screen" or "print").
func (p *Page) EmulateMedia(ctx context.Context, colorScheme, media string) error {
	if colorScheme == "" && media == "" {
		return nil
	}
	cmd := emulation.SetEmulatedMedia()
	if colorScheme != "" {
		cmd = cmd.WithFeatures([]*emulation.MediaFeature{{Name: "prefers-color-scheme", Value: colorScheme}})
	}
	if media != "" {
		cmd = cmd.WithMedia(media)
	}
	if err := cmd.Do(cdp.WithExecutor(ctx, p.session)); err != nil {
		return wrapCdp("Emulation.setEmulatedMedia", err)
	}
	return nil
}

// SetGeolocation overrides the page's reported position, or clears the
// override when g is nil.
func (p *Page) SetGeolocation(ctx context.Context, g *Geolocation) error {
	exec := cdp.WithExecutor(ctx, p.session)
	if g == nil {
		return emulation.ClearGeolocationOverride().Do(exec)
	}
	return emulation.SetGeolocationOverride().
		WithLatitude(g.Latitude).
		WithLongitude(g.Longitude).
		WithAccuracy(g.Accuracy).
		Do(exec)
}

// SetTimezone overrides the page's reported IANA timezone.
func (p *Page) SetTimezone(ctx context.Context, tz string) error {
	return emulation.SetTimezoneOverride(tz).Do(cdp.WithExecutor(ctx, p.session))
}

// SetOffline toggles whether the page reports itself as offline.
func (p *Page) SetOffline(ctx context.Context, offline bool) error {
	return network.EmulateNetworkConditions(offline, 0, -1, -1).Do(cdp.WithExecutor(ctx, p.session))
}

// setBypassCSP disables Content-Security-Policy enforcement for the page,
// applied once at page initialization from the owning BrowserContext's options.
func (p *Page) setBypassCSP(ctx context.Context, bypass bool) error {
	return page.SetBypassCSP(bypass).Do(cdp.WithExecutor(ctx, p.session))
}
