package viewpoint

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
)

// AriaNode is one node of a page's accessibility-tree snapshot: a role, a
// computed accessible name, and a Ref a caller can act on directly without
// re-resolving a selector.
type AriaNode struct {
	Role     string      `json:"role"`
	Name     string      `json:"name"`
	Ref      Ref         `json:"-"`
	Children []*AriaNode `json:"children"`
}

// Snapshot computes an ARIA-role accessibility tree for the frame's
// document. Every node is tagged with a data-vp-ref attribute during the
// walk and assigned a matching Ref, so LocatorFromRef can later resolve it
// with a plain CSS lookup instead of holding a RemoteObjectID that would
// go stale the moment the execution context is torn down.
func (f *Frame) Snapshot(ctx context.Context) (*AriaNode, error) {
	ec, err := f.mainWorld(ctx)
	if err != nil {
		return nil, err
	}

	f.page.ensureRefTable()
	epoch := f.page.refTable.reset()

	exec := cdp.WithExecutor(ctx, f.page.session)
	docObj, err := runtime.Evaluate("document.documentElement").
		WithContextID(ec.id).Do(exec)
	if err != nil {
		return nil, wrapCdp("resolve document element", err)
	}

	var raw rawAriaNode
	if err := callOnObject(ctx, f.page.session, docObj.ObjectID, ariaSnapshotJS, &raw, epoch); err != nil {
		return nil, err
	}

	return f.buildAriaTree(&raw, epoch), nil
}

// rawAriaNode decodes ariaSnapshotTemplate's {role, name, ref, children} output.
type rawAriaNode struct {
	Role     string        `json:"role"`
	Name     string        `json:"name"`
	Ref      int           `json:"ref"`
	Children []rawAriaNode `json:"children"`
}

func (f *Frame) buildAriaTree(raw *rawAriaNode, epoch int) *AriaNode {
	node := &AriaNode{
		Role: raw.Role,
		Name: raw.Name,
		Ref:  f.page.refTable.add(epoch, raw.Ref, refEntry{frame: f}),
	}
	for i := range raw.Children {
		node.Children = append(node.Children, f.buildAriaTree(&raw.Children[i], epoch))
	}
	return node
}

// LocatorFromRef resolves a Ref produced by a prior Snapshot back into a
// Locator scoped to the element it was taken from, failing with
// ErrRefContextIndexMismatch/ErrRefPageIndexMismatch if ref names a
// different context/page than p, or ErrRefStale if a newer Snapshot has
// since replaced the ref table.
func (p *Page) LocatorFromRef(ref Ref) (*Locator, error) {
	p.ensureRefTable()
	pr, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	entry, err := p.refTable.resolve(ref, p.ctxIndex, p.index)
	if err != nil {
		return nil, err
	}
	selector := fmt.Sprintf(`[data-vp-ref="%d-%d"]`, pr.epoch, pr.elemIdx)
	return &Locator{frame: entry.frame, selectors: []Selector{{Engine: EngineCSS, Body: selector}}}, nil
}

// ElementFromRef resolves ref the same way LocatorFromRef does, returning
// a stable ElementHandle instead of a re-resolving Locator.
func (p *Page) ElementFromRef(ctx context.Context, ref Ref) (*ElementHandle, error) {
	loc, err := p.LocatorFromRef(ref)
	if err != nil {
		return nil, err
	}
	return loc.ElementHandle(ctx)
}

func (p *Page) ensureRefTable() {
	p.handlersMu.Lock()
	if p.refTable == nil {
		p.refTable = newRefTable(p.ctxIndex, p.index)
	}
	p.handlersMu.Unlock()
}
