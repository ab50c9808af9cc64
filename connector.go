package viewpoint

import (
	"context"
)

// Connect attaches to an already-running Chromium instance reachable at
// addr (either a full ws:// endpoint, or an http(s):// address whose
// /json/version util.go's modifyURL resolves for you), the direct
// replacement for the teacher's allocate.go RemoteAllocator.
func Connect(ctx context.Context, addr string, opts ...BrowserOption) (*Browser, error) {
	wsURL, err := modifyURL(ctx, addr)
	if err != nil {
		return nil, wrapCdp("resolve devtools endpoint", err)
	}
	return NewBrowser(ctx, wsURL, opts...)
}
