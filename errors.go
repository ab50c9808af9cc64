package viewpoint

import "fmt"

// Error is a viewpoint sentinel error, following the same closed
// string-constant idiom chromedp uses for its own error values.
type Error string

// Error satisfies the error interface.
func (err Error) Error() string {
	return string(err)
}

// Transport and protocol errors.
const (
	ErrInvalidWebsocketMessage Error = "invalid websocket message"
	ErrChannelClosed           Error = "channel closed"
	ErrInvalidTarget           Error = "invalid target"
	ErrInvalidContext          Error = "invalid context"
	ErrBrowserClosed           Error = "browser is closed"
)

// Launch/connect errors.
const (
	ErrChromiumNotFound   Error = "chromium executable not found"
	ErrLaunchTimeout      Error = "timed out waiting for chromium to start"
	ErrStderrParseFailed  Error = "could not parse devtools websocket url from chromium stderr"
	ErrProcessExitedEarly Error = "chromium process exited before a devtools endpoint was available"
	ErrEndpointDiscovery  Error = "could not discover devtools websocket endpoint"
	ErrConnectionFailed   Error = "could not connect to devtools endpoint"
	ErrConnectionTimeout  Error = "timed out connecting to devtools endpoint"
)

// Navigation errors.
const (
	ErrNavigationTimeout Error = "navigation timeout exceeded"
	ErrNavigationAborted Error = "navigation was aborted by a subsequent navigation"
	ErrNavigationFailed  Error = "navigation failed"
	ErrNoMainResponse    Error = "navigation produced no main frame response"
)

// Wait subsystem errors.
const (
	ErrWaitTimeout   Error = "waiting for function failed: timeout"
	ErrWaitCancelled Error = "wait was cancelled"
)

// Actionability errors, reported when a locator action cannot proceed.
const (
	ErrElementNotVisible    Error = "element is not visible"
	ErrElementNotStable     Error = "element bounding box is not stable"
	ErrElementNotEnabled    Error = "element is not enabled"
	ErrElementCovered       Error = "element is covered by another element at its center point"
	ErrElementDetached      Error = "element is detached from the dom"
	ErrInvalidBoxModel      Error = "could not compute element box model"
	ErrElementOutsideScroll Error = "element is outside the scrollable viewport"
)

// Selector/locator errors.
const (
	ErrNoElementsFound    Error = "no elements found for selector"
	ErrStrictModeMultiple Error = "selector resolved to more than one element, but strict mode requires exactly one"
)

// Ref resolution errors.
const (
	ErrRefInvalidFormat          Error = "ref has an invalid format"
	ErrRefContextIndexMismatch   Error = "ref context index does not match the current browser context"
	ErrRefPageIndexMismatch      Error = "ref page index does not match any open page"
	ErrRefStale                  Error = "ref no longer resolves to a live node"
	ErrFrameDetached             Error = "frame has been detached"
	ErrFrameExecutionContextGone Error = "frame has no execution context available"
)

// Route/auth errors.
const (
	ErrHandlerPanicked       Error = "route handler panicked"
	ErrInvalidFulfillment    Error = "route fulfillment is missing required fields"
	ErrUnsupportedAuthScheme Error = "unsupported www-authenticate scheme"
	ErrUnsupportedPermission Error = "unsupported permission name"
)

// ErrAssertion names a failed expectation (a condition that never becomes
// true before timeout). No function in this package returns it.
const ErrAssertion Error = "assertion failed"

// ErrExposeNameExist is returned by Page.ExposeFunction when the name is
// already bound on this page.
const ErrExposeNameExist Error = "a function with this name is already exposed on this page"

// CdpError wraps a low-level CDP protocol error (*cdproto.Error) with the
// higher-level operation that triggered it, so callers see both the
// viewpoint-level context and the underlying wire error.
type CdpError struct {
	Op  string
	Err error
}

func (e *CdpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CdpError) Unwrap() error {
	return e.Err
}

// wrapCdp wraps err (if non-nil) as a *CdpError tagged with op.
func wrapCdp(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CdpError{Op: op, Err: err}
}
