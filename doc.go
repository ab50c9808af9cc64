// Package viewpoint is a high level Chrome DevTools Protocol client that
// drives Chromium for scraping, UI testing, and automation.
//
// It layers a Playwright-shaped Browser/BrowserContext/Page/Frame/Locator
// object model on top of a low level transport, target/session registry,
// wait subsystem, and locator/ref resolution engine, all speaking CDP
// directly through github.com/chromedp/cdproto.
package viewpoint
