package viewpoint

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
)

// Cookie mirrors the fields of a Network.Cookie a caller is likely to
// round-trip through Cookies/AddCookies, trimmed of the CDP-internal ones
// (priority, sourceScheme, sourcePort) storage_state.go doesn't need.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  float64
	HTTPOnly bool
	Secure   bool
	SameSite string
}

// Cookies returns every cookie visible anywhere in the context, via the
// Storage domain's browser-context-scoped getCookies rather than Network's
// per-target variant, since a BrowserContext has no single session to issue
// a target-scoped command against.
func (bc *BrowserContext) Cookies(ctx context.Context) ([]Cookie, error) {
	exec := cdp.WithExecutor(ctx, bc.browser)
	cmd := storage.GetCookies()
	if bc.id != "" {
		cmd = cmd.WithBrowserContextID(bc.id)
	}
	cookies, err := cmd.Do(exec)
	if err != nil {
		return nil, wrapCdp("Storage.getCookies", err)
	}
	out := make([]Cookie, len(cookies))
	for i, c := range cookies {
		out[i] = Cookie{
			Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path,
			Expires: c.Expires, HTTPOnly: c.HTTPOnly, Secure: c.Secure,
			SameSite: string(c.SameSite),
		}
	}
	return out, nil
}

// AddCookies sets cookies in the context, visible to every page it owns
// (and every page it opens from now on).
func (bc *BrowserContext) AddCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*network.CookieParam, len(cookies))
	for i, c := range cookies {
		p := &network.CookieParam{
			Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path,
			Expires: network.TimeSinceEpoch(c.Expires), HTTPOnly: c.HTTPOnly, Secure: c.Secure,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		params[i] = p
	}
	cmd := storage.SetCookies(params)
	if bc.id != "" {
		cmd = cmd.WithBrowserContextID(bc.id)
	}
	return cmd.Do(cdp.WithExecutor(ctx, bc.browser))
}

// ClearCookies removes every cookie visible to the context.
func (bc *BrowserContext) ClearCookies(ctx context.Context) error {
	cmd := storage.ClearCookies()
	if bc.id != "" {
		cmd = cmd.WithBrowserContextID(bc.id)
	}
	return cmd.Do(cdp.WithExecutor(ctx, bc.browser))
}
