package viewpoint

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
)

// DeviceDescriptor names a known device's viewport and user-agent overrides,
// the hand-curated replacement for the teacher's device/ package (which
// generated its presets from a JSON table this module doesn't carry over).
type DeviceDescriptor struct {
	Name      string
	UserAgent string
	Viewport  Viewport
	Options   []ViewportOption
}

// EmulateDevice applies a DeviceDescriptor's user-agent and viewport to the
// page, the direct replacement for the teacher's Emulate(device) action.
func (p *Page) EmulateDevice(ctx context.Context, d DeviceDescriptor) error {
	exec := cdp.WithExecutor(ctx, p.session)
	if err := network.SetUserAgentOverride(d.UserAgent).Do(exec); err != nil {
		return wrapCdp("Network.setUserAgentOverride", err)
	}
	return p.SetViewport(ctx, d.Viewport, d.Options...)
}

// Devices holds the subset of Puppeteer's device descriptor table this
// module ports: the ones most commonly used for responsive-layout testing.
var Devices = map[string]DeviceDescriptor{
	"iPhone SE": {
		Name:      "iPhone SE",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1",
		Viewport:  Viewport{Width: 375, Height: 667},
		Options:   []ViewportOption{WithDeviceScaleFactor(2), WithMobile(true), WithTouchEmulation(true)},
	},
	"iPhone 13": {
		Name:      "iPhone 13",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1",
		Viewport:  Viewport{Width: 390, Height: 844},
		Options:   []ViewportOption{WithDeviceScaleFactor(3), WithMobile(true), WithTouchEmulation(true)},
	},
	"Pixel 5": {
		Name:      "Pixel 5",
		UserAgent: "Mozilla/5.0 (Linux; Android 11; Pixel 5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/109.0.0.0 Mobile Safari/537.36",
		Viewport:  Viewport{Width: 393, Height: 851},
		Options:   []ViewportOption{WithDeviceScaleFactor(2.75), WithMobile(true), WithTouchEmulation(true)},
	},
	"iPad Mini": {
		Name:      "iPad Mini",
		UserAgent: "Mozilla/5.0 (iPad; CPU OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1",
		Viewport:  Viewport{Width: 768, Height: 1024},
		Options:   []ViewportOption{WithDeviceScaleFactor(2), WithMobile(true), WithTouchEmulation(true)},
	},
	"Desktop 1080p": {
		Name:      "Desktop 1080p",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/109.0.0.0 Safari/537.36",
		Viewport:  Viewport{Width: 1920, Height: 1080},
		Options:   []ViewportOption{WithDeviceScaleFactor(1)},
	},
}
