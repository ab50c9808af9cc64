package viewpoint

import (
	"context"
	"encoding/json"
	"net/url"
)

// OriginStorage is one origin's localStorage snapshot, the shape
// Playwright's storageState() uses for the "origins" array.
type OriginStorage struct {
	Origin       string            `json:"origin"`
	LocalStorage map[string]string `json:"localStorage"`
}

// StorageState is a portable snapshot of a BrowserContext's cookies and
// every page's localStorage, so a later NewContext(...) can be seeded with
// an already-authenticated session instead of repeating a login flow.
type StorageState struct {
	Cookies []Cookie        `json:"cookies"`
	Origins []OriginStorage `json:"origins"`
}

const dumpLocalStorageJS = `function() {
	const out = {};
	for (let i = 0; i < localStorage.length; i++) {
		const k = localStorage.key(i);
		out[k] = localStorage.getItem(k);
	}
	return out;
}`

// StorageState captures the context's cookies and, for every currently open
// page, that page's origin's localStorage.
func (bc *BrowserContext) StorageState(ctx context.Context) (*StorageState, error) {
	cookies, err := bc.Cookies(ctx)
	if err != nil {
		return nil, err
	}

	state := &StorageState{Cookies: cookies}
	for _, p := range bc.Pages() {
		u, err := url.Parse(p.URL())
		if err != nil || u.Host == "" {
			continue
		}
		origin := u.Scheme + "://" + u.Host
		ec, err := p.MainFrame().mainWorld(ctx)
		if err != nil {
			continue
		}
		var ls map[string]string
		if err := ec.Call(ctx, dumpLocalStorageJS, &ls); err != nil {
			continue
		}
		state.Origins = append(state.Origins, OriginStorage{Origin: origin, LocalStorage: ls})
	}
	return state, nil
}

// restoreLocalStorageJS writes back every key in data. applyStorageState
// wraps it in an origin-guarded init script, so it runs on every document
// load from a matching origin, before the page's own scripts.
const restoreLocalStorageJS = `function(data) {
	for (const k in data) localStorage.setItem(k, data[k]);
}`

// WithStorageState seeds a BrowserContext from a previously captured
// StorageState: cookies are applied immediately, and an init script restores
// each origin's localStorage whenever a page of the context loads a
// document from that origin.
func WithStorageState(state StorageState) ContextOption {
	return func(o *contextOptions) { o.storageState = &state }
}

// applyStorageState restores cookies (which, unlike localStorage, can be set
// without a live page) onto a freshly created context.
func (bc *BrowserContext) applyStorageState(ctx context.Context) error {
	if bc.opts.storageState == nil {
		return nil
	}
	if err := bc.AddCookies(ctx, bc.opts.storageState.Cookies); err != nil {
		return err
	}
	for _, o := range bc.opts.storageState.Origins {
		data, err := json.Marshal(o.LocalStorage)
		if err != nil {
			continue
		}
		script := "(" + restoreLocalStorageJS + ")(" + string(data) + ");"
		bc.AddInitScript(originScopedScript(o.Origin, script))
	}
	return nil
}

// originScopedScript guards script so it only runs when location.origin
// matches origin, since AddInitScript has no native per-origin targeting.
func originScopedScript(origin, script string) string {
	return `if (location.origin === ` + jsonString(origin) + `) { ` + script + ` }`
}
