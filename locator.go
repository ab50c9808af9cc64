package viewpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
)

// locatorOp is a query-plan node resolveOpJS evaluates client-side: a
// plain selector chain, or one of the And/Or/Filter/First/Last
// combinators over other locatorOps. Building the whole plan in Go and
// shipping it as one JSON argument lets the And/Or/Filter set algebra run
// entirely inside a single CallFunctionOn call, comparing DOM nodes by
// real JS object identity instead of RemoteObjectIDs (which CDP gives no
// guarantee stay stable for the same node across separate calls).
type locatorOp struct {
	Kind       string     `json:"kind"`
	Base       *locatorOp `json:"base,omitempty"`
	Chain      []Selector `json:"chain,omitempty"`
	Left       *locatorOp `json:"left,omitempty"`
	Right      *locatorOp `json:"right,omitempty"`
	Inner      *locatorOp `json:"inner,omitempty"`
	Has        *locatorOp `json:"has,omitempty"`
	HasNot     *locatorOp `json:"hasNot,omitempty"`
	HasText    string     `json:"hasText,omitempty"`
	HasNotText string     `json:"hasNotText,omitempty"`
}

// Locator is a lazily-resolved reference to the elements matching a
// selector query within one Frame. Unlike an element handle, a Locator
// holds no element id: every action (Click, Fill, ...) re-resolves the
// query and re-runs actionability checks immediately before acting, so
// that it's safe to hold a Locator across a navigation or a re-render.
type Locator struct {
	frame     *Frame
	selectors []Selector
	op        *locatorOp
}

// Locator returns a Locator for selector, scoped to the frame.
func (f *Frame) Locator(selector string) *Locator {
	return &Locator{frame: f, selectors: []Selector{ParseSelector(selector)}}
}

// Locator returns a Locator for selector, scoped to the page's main frame.
func (p *Page) Locator(selector string) *Locator {
	return p.MainFrame().Locator(selector)
}

// Locator narrows the current match set with an additional selector
// scoped under each of this Locator's matches.
func (l *Locator) Locator(selector string) *Locator {
	return l.appendSelector(ParseSelector(selector))
}

// Nth returns a new Locator scoped to the n-th (0-based) current match.
// The narrowing is re-evaluated on every action, like the rest of Locator.
func (l *Locator) Nth(n int) *Locator {
	return l.appendSelector(Selector{Engine: EngineNth, Body: fmt.Sprintf("%d", n)})
}

// appendSelector scopes a new selector segment under this Locator's
// current matches. Plain selector chains stay as a flat []Selector (the
// common case, and what keeps resolveAll's query plan small); once a
// Locator has been built from a combinator (And/Or/Filter/First/Last),
// further chaining wraps the combinator's op instead.
func (l *Locator) appendSelector(s Selector) *Locator {
	if l.op == nil {
		chain := append(append([]Selector{}, l.selectors...), s)
		return &Locator{frame: l.frame, selectors: chain}
	}
	return &Locator{frame: l.frame, op: &locatorOp{Kind: "chain", Base: l.op, Chain: []Selector{s}}}
}

// toOp returns the query-plan node for this Locator, lazily wrapping a
// plain selector chain the first time it's needed.
func (l *Locator) toOp() *locatorOp {
	if l.op != nil {
		return l.op
	}
	return &locatorOp{Kind: "chain", Chain: l.selectors}
}

// And returns a Locator matching only elements both this Locator and
// other match, preserving document order.
func (l *Locator) And(other *Locator) *Locator {
	return &Locator{frame: l.frame, op: &locatorOp{Kind: "and", Left: l.toOp(), Right: other.toOp()}}
}

// Or returns a Locator matching the union of this Locator's and other's
// matches, deduplicated and in document order.
func (l *Locator) Or(other *Locator) *Locator {
	return &Locator{frame: l.frame, op: &locatorOp{Kind: "or", Left: l.toOp(), Right: other.toOp()}}
}

// First returns a Locator scoped to only the first of this Locator's
// current matches.
func (l *Locator) First() *Locator {
	return &Locator{frame: l.frame, op: &locatorOp{Kind: "first", Inner: l.toOp()}}
}

// Last returns a Locator scoped to only the last of this Locator's
// current matches.
func (l *Locator) Last() *Locator {
	return &Locator{frame: l.frame, op: &locatorOp{Kind: "last", Inner: l.toOp()}}
}

// FilterOptions narrows Locator.Filter's match set, mirroring
// Playwright's locator.filter() option bag.
type FilterOptions struct {
	Has        *Locator
	HasNot     *Locator
	HasText    string
	HasNotText string
}

// Filter returns a Locator scoped to the subset of this Locator's
// matches satisfying every non-zero field of opts.
func (l *Locator) Filter(opts FilterOptions) *Locator {
	op := &locatorOp{Kind: "filter", Inner: l.toOp(), HasText: opts.HasText, HasNotText: opts.HasNotText}
	if opts.Has != nil {
		op.Has = opts.Has.toOp()
	}
	if opts.HasNot != nil {
		op.HasNot = opts.HasNot.toOp()
	}
	return &Locator{frame: l.frame, op: op}
}

// GetByRole returns a Locator matching elements with the given ARIA role,
// narrowed by opts.
func (f *Frame) GetByRole(role string, opts ...RoleOption) *Locator {
	var o RoleOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &Locator{frame: f, selectors: []Selector{{Engine: EngineRole, Role: role, Options: o}}}
}

// GetByRole returns a Locator matching elements with the given ARIA role,
// scoped to the page's main frame.
func (p *Page) GetByRole(role string, opts ...RoleOption) *Locator {
	return p.MainFrame().GetByRole(role, opts...)
}

// GetByRole narrows the current match set by ARIA role.
func (l *Locator) GetByRole(role string, opts ...RoleOption) *Locator {
	var o RoleOptions
	for _, fn := range opts {
		fn(&o)
	}
	return l.appendSelector(Selector{Engine: EngineRole, Role: role, Options: o})
}

// GetByText returns a Locator matching elements whose rendered text
// contains (or, if exact, equals) text.
func (f *Frame) GetByText(text string, exact bool) *Locator {
	return &Locator{frame: f, selectors: []Selector{{Engine: EngineText, Body: text, Exact: exact}}}
}

// GetByText returns a Locator matching elements by rendered text, scoped
// to the page's main frame.
func (p *Page) GetByText(text string, exact bool) *Locator {
	return p.MainFrame().GetByText(text, exact)
}

// GetByText narrows the current match set by rendered text.
func (l *Locator) GetByText(text string, exact bool) *Locator {
	return l.appendSelector(Selector{Engine: EngineText, Body: text, Exact: exact})
}

// GetByTestID returns a Locator matching elements whose test id attribute
// (data-testid by default) equals id.
func (f *Frame) GetByTestID(id string) *Locator {
	return &Locator{frame: f, selectors: []Selector{{Engine: EngineTestID, Body: id}}}
}

// GetByTestID returns a Locator matching elements by test id, scoped to
// the page's main frame.
func (p *Page) GetByTestID(id string) *Locator {
	return p.MainFrame().GetByTestID(id)
}

// GetByTestID narrows the current match set by test id.
func (l *Locator) GetByTestID(id string) *Locator {
	return l.appendSelector(Selector{Engine: EngineTestID, Body: id})
}

// GetByLabel returns a Locator matching form controls by their associated
// <label> text or accessible name.
func (f *Frame) GetByLabel(text string, exact bool) *Locator {
	return &Locator{frame: f, selectors: []Selector{{Engine: EngineLabel, Body: text, Exact: exact}}}
}

// GetByLabel returns a Locator matching by label text, scoped to the
// page's main frame.
func (p *Page) GetByLabel(text string, exact bool) *Locator {
	return p.MainFrame().GetByLabel(text, exact)
}

// GetByLabel narrows the current match set by label text.
func (l *Locator) GetByLabel(text string, exact bool) *Locator {
	return l.appendSelector(Selector{Engine: EngineLabel, Body: text, Exact: exact})
}

// GetByPlaceholder returns a Locator matching elements by their
// placeholder attribute.
func (f *Frame) GetByPlaceholder(text string, exact bool) *Locator {
	return &Locator{frame: f, selectors: []Selector{{Engine: EnginePlaceholder, Body: text, Exact: exact}}}
}

// GetByPlaceholder returns a Locator matching by placeholder text, scoped
// to the page's main frame.
func (p *Page) GetByPlaceholder(text string, exact bool) *Locator {
	return p.MainFrame().GetByPlaceholder(text, exact)
}

// GetByPlaceholder narrows the current match set by placeholder text.
func (l *Locator) GetByPlaceholder(text string, exact bool) *Locator {
	return l.appendSelector(Selector{Engine: EnginePlaceholder, Body: text, Exact: exact})
}

// GetByAltText returns a Locator matching elements by their alt attribute.
func (f *Frame) GetByAltText(text string, exact bool) *Locator {
	return &Locator{frame: f, selectors: []Selector{{Engine: EngineAltText, Body: text, Exact: exact}}}
}

// GetByAltText returns a Locator matching by alt text, scoped to the
// page's main frame.
func (p *Page) GetByAltText(text string, exact bool) *Locator {
	return p.MainFrame().GetByAltText(text, exact)
}

// GetByAltText narrows the current match set by alt text.
func (l *Locator) GetByAltText(text string, exact bool) *Locator {
	return l.appendSelector(Selector{Engine: EngineAltText, Body: text, Exact: exact})
}

// GetByTitle returns a Locator matching elements by their title
// attribute.
func (f *Frame) GetByTitle(text string, exact bool) *Locator {
	return &Locator{frame: f, selectors: []Selector{{Engine: EngineTitle, Body: text, Exact: exact}}}
}

// GetByTitle returns a Locator matching by title text, scoped to the
// page's main frame.
func (p *Page) GetByTitle(text string, exact bool) *Locator {
	return p.MainFrame().GetByTitle(text, exact)
}

// GetByTitle narrows the current match set by title text.
func (l *Locator) GetByTitle(text string, exact bool) *Locator {
	return l.appendSelector(Selector{Engine: EngineTitle, Body: text, Exact: exact})
}

// Frame returns the frame the locator is scoped to.
func (l *Locator) Frame() *Frame { return l.frame }

type resolvedElement struct {
	objectID runtime.RemoteObjectID
}

// resolveAll evaluates the locator's query plan and returns every
// matching element as a RemoteObjectID, via Runtime.getProperties on the
// array CallFunctionOn returns (CDP has no native way to return multiple
// object handles from one call).
func (l *Locator) resolveAll(ctx context.Context) ([]resolvedElement, error) {
	ec, err := l.frame.mainWorld(ctx)
	if err != nil {
		return nil, err
	}

	exec := cdp.WithExecutor(ctx, l.frame.page.session)
	obj, exceptionDetails, err := runtime.CallFunctionOn(resolveOpJS).
		WithExecutionContextID(ec.id).
		WithArguments(marshalArgs([]interface{}{l.toOp()})).
		WithAwaitPromise(true).
		Do(exec)
	if err != nil {
		return nil, wrapCdp("resolve locator", err)
	}
	if exceptionDetails != nil {
		return nil, exceptionDetails.Err()
	}
	if obj.ObjectID == "" {
		return nil, nil
	}

	props, _, _, err := runtime.GetProperties(obj.ObjectID).WithOwnProperties(true).Do(exec)
	if err != nil {
		return nil, wrapCdp("Runtime.getProperties", err)
	}

	var out []resolvedElement
	for _, prop := range props {
		if prop.Value == nil || prop.Value.ObjectID == "" {
			continue
		}
		if prop.Name == "length" {
			continue
		}
		out = append(out, resolvedElement{objectID: prop.Value.ObjectID})
	}
	return out, nil
}

func marshalArgs(args []interface{}) []*runtime.CallArgument {
	out := make([]*runtime.CallArgument, len(args))
	for i, a := range args {
		buf, err := json.Marshal(a)
		if err != nil {
			continue
		}
		out[i] = &runtime.CallArgument{Value: buf}
	}
	return out
}

// Count returns the number of elements currently matching the locator.
func (l *Locator) Count(ctx context.Context) (int, error) {
	els, err := l.resolveAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// single resolves the locator to exactly one element, enforcing
// Playwright's "strict mode": zero matches is ErrNoElementsFound, more
// than one is ErrStrictModeMultiple.
func (l *Locator) single(ctx context.Context) (resolvedElement, error) {
	els, err := l.resolveAll(ctx)
	if err != nil {
		return resolvedElement{}, err
	}
	switch len(els) {
	case 0:
		return resolvedElement{}, ErrNoElementsFound
	case 1:
		return els[0], nil
	default:
		return resolvedElement{}, ErrStrictModeMultiple
	}
}

// callOnElement runs fnDecl (a `function(...){ ... }` bound to `this`)
// against the single resolved element and decodes the result into res.
func (l *Locator) callOnElement(ctx context.Context, fnDecl string, res interface{}, args ...interface{}) error {
	el, err := l.single(ctx)
	if err != nil {
		return err
	}
	return callOnObject(ctx, l.frame.page.session, el.objectID, fnDecl, res, args...)
}

func callOnObject(ctx context.Context, s *session, objectID runtime.RemoteObjectID, fnDecl string, res interface{}, args ...interface{}) error {
	exec := cdp.WithExecutor(ctx, s)
	obj, exceptionDetails, err := runtime.CallFunctionOn(fnDecl).
		WithObjectID(objectID).
		WithArguments(marshalArgs(args)).
		WithReturnByValue(res != nil).
		WithAwaitPromise(true).
		Do(exec)
	if err != nil {
		return wrapCdp("Runtime.callFunctionOn", err)
	}
	if exceptionDetails != nil {
		return exceptionDetails.Err()
	}
	return parseRemoteObject(obj, res)
}

// TextContent returns the element's textContent.
func (l *Locator) TextContent(ctx context.Context) (string, error) {
	var s string
	err := l.callOnElement(ctx, textContentJS, &s)
	return s, err
}

// InnerText returns the element's rendered innerText.
func (l *Locator) InnerText(ctx context.Context) (string, error) {
	var s string
	err := l.callOnElement(ctx, textJS, &s)
	return s, err
}

// GetAttribute returns the named attribute/property of the element.
func (l *Locator) GetAttribute(ctx context.Context, name string) (string, error) {
	var s string
	err := l.callOnElement(ctx, attributeJS, &s, name)
	return s, err
}

// InputValue returns the current value of a form control.
func (l *Locator) InputValue(ctx context.Context) (string, error) {
	return l.GetAttribute(ctx, "value")
}

// IsVisible reports whether the element has layout and isn't CSS-hidden.
func (l *Locator) IsVisible(ctx context.Context) (bool, error) {
	els, err := l.resolveAll(ctx)
	if err != nil || len(els) == 0 {
		return false, err
	}
	var res actionabilityResult
	err = callOnObject(ctx, l.frame.page.session, els[0].objectID, actionabilityJS, &res)
	return res.Visible, err
}

// IsChecked reports whether a checkbox/radio/ARIA-checkable element is
// checked.
func (l *Locator) IsChecked(ctx context.Context) (bool, error) {
	var checked bool
	err := l.callOnElement(ctx, isCheckedJS, &checked)
	return checked, err
}

// IsEnabled reports whether the element is not disabled.
func (l *Locator) IsEnabled(ctx context.Context) (bool, error) {
	el, err := l.single(ctx)
	if err != nil {
		return false, err
	}
	var res actionabilityResult
	if err := callOnObject(ctx, l.frame.page.session, el.objectID, actionabilityJS, &res); err != nil {
		return false, err
	}
	return res.Enabled, nil
}

// IsDisabled reports whether the element is disabled.
func (l *Locator) IsDisabled(ctx context.Context) (bool, error) {
	enabled, err := l.IsEnabled(ctx)
	return !enabled, err
}

// IsEditable reports whether the element accepts direct text input.
func (l *Locator) IsEditable(ctx context.Context) (bool, error) {
	var editable bool
	err := l.callOnElement(ctx, isEditableJS, &editable)
	return editable, err
}

// AllInnerTexts returns the rendered innerText of every currently
// matching element, in document order.
func (l *Locator) AllInnerTexts(ctx context.Context) ([]string, error) {
	els, err := l.resolveAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(els))
	for i, el := range els {
		if err := callOnObject(ctx, l.frame.page.session, el.objectID, textJS, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AllTextContents returns the textContent of every currently matching
// element, in document order.
func (l *Locator) AllTextContents(ctx context.Context) ([]string, error) {
	els, err := l.resolveAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(els))
	for i, el := range els {
		if err := callOnObject(ctx, l.frame.page.session, el.objectID, textContentJS, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Highlight briefly outlines the element, for interactive debugging.
func (l *Locator) Highlight(ctx context.Context) error {
	return l.callOnElement(ctx, highlightJS, nil)
}

// ElementHandle is a resolved JS object reference to a single DOM node,
// the escape hatch for callers who need a stable handle instead of a
// re-resolving Locator (spec.md's element_from_ref/locator_from_ref
// queries return one after resolving a Ref).
type ElementHandle struct {
	session  *session
	objectID runtime.RemoteObjectID
}

// BoundingBox returns the element's size and position relative to its
// owner document.
func (e *ElementHandle) BoundingBox(ctx context.Context) (rectDIP, error) {
	var r rectDIP
	err := callOnObject(ctx, e.session, e.objectID, getClientRectJS, &r)
	return r, err
}

// ElementHandle resolves the locator to a single element and returns a
// stable handle to it.
func (l *Locator) ElementHandle(ctx context.Context) (*ElementHandle, error) {
	el, err := l.single(ctx)
	if err != nil {
		return nil, err
	}
	return &ElementHandle{session: l.frame.page.session, objectID: el.objectID}, nil
}
