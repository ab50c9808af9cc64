package viewpoint

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
)

// Ref is an opaque, stable handle to an element captured by an ARIA
// snapshot (aria.go), in the shape "c<ctxIndex>p<pageIndex>[f<frameIndex>]e<epoch>-<index>".
// The frame segment is omitted for the page's main frame. Refs let a
// caller act on an element named in a snapshot (e.g. "click c0p0e1-14") without
// re-querying the DOM by selector, the same contract Playwright's MCP
// snapshot refs give an LLM-driven caller.
//
// The epoch is folded into the final "e" segment rather than kept as its
// own top-level token: elemIdx alone resets to 0 on every new snapshot, so
// without an epoch a stale Ref could alias a live entry from a later
// snapshot of the same page. This is a deliberate extension of the plain
// c{ctx}p{page}[f{frame}]e{idx} grammar (see DESIGN.md).
type Ref string

var refPattern = regexp.MustCompile(`^c(\d+)p(\d+)(?:f(\d+))?e(\d+)-(\d+)$`)

// refEntry is what a Ref resolves to: the frame the element lives in. The
// element itself is found at resolution time via its data-vp-ref attribute
// (see aria.go), not by holding a RemoteObjectID, which would go stale the
// moment its execution context is torn down.
type refEntry struct {
	frame *Frame
}

// refTable holds the Refs produced by one ARIA snapshot of one page. Taking
// a new snapshot bumps the epoch and replaces the table outright, so Refs
// from a stale snapshot fail with ErrRefStale instead of silently
// resolving to the wrong element.
type refTable struct {
	ctxIdx  int
	pageIdx int

	mu      sync.RWMutex
	epoch   int
	entries map[int]refEntry
}

func newRefTable(ctxIdx, pageIdx int) *refTable {
	return &refTable{ctxIdx: ctxIdx, pageIdx: pageIdx, entries: make(map[int]refEntry)}
}

func (t *refTable) reset() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.epoch++
	t.entries = make(map[int]refEntry)
	return t.epoch
}

func (t *refTable) add(epoch, index int, e refEntry) Ref {
	t.mu.Lock()
	t.entries[index] = e
	t.mu.Unlock()

	frameSeg := ""
	if e.frame != nil && e.frame.page != nil && e.frame.id != e.frame.page.mainFrameID {
		frameSeg = fmt.Sprintf("f%d", e.frame.index)
	}
	return Ref(fmt.Sprintf("c%dp%d%se%d-%d", t.ctxIdx, t.pageIdx, frameSeg, epoch, index))
}

type parsedRef struct {
	ctxIdx, pageIdx, frameIdx, epoch, elemIdx int
	hasFrame                                  bool
}

func parseRef(ref Ref) (parsedRef, error) {
	m := refPattern.FindStringSubmatch(string(ref))
	if m == nil {
		return parsedRef{}, ErrRefInvalidFormat
	}
	var pr parsedRef
	var err error
	if pr.ctxIdx, err = strconv.Atoi(m[1]); err != nil {
		return parsedRef{}, ErrRefInvalidFormat
	}
	if pr.pageIdx, err = strconv.Atoi(m[2]); err != nil {
		return parsedRef{}, ErrRefInvalidFormat
	}
	if m[3] != "" {
		pr.hasFrame = true
		if pr.frameIdx, err = strconv.Atoi(m[3]); err != nil {
			return parsedRef{}, ErrRefInvalidFormat
		}
	}
	if pr.epoch, err = strconv.Atoi(m[4]); err != nil {
		return parsedRef{}, ErrRefInvalidFormat
	}
	if pr.elemIdx, err = strconv.Atoi(m[5]); err != nil {
		return parsedRef{}, ErrRefInvalidFormat
	}
	return pr, nil
}

func (t *refTable) resolve(ref Ref, ctxIdx, pageIdx int) (refEntry, error) {
	pr, err := parseRef(ref)
	if err != nil {
		return refEntry{}, err
	}
	if pr.ctxIdx != ctxIdx {
		return refEntry{}, ErrRefContextIndexMismatch
	}
	if pr.pageIdx != pageIdx {
		return refEntry{}, ErrRefPageIndexMismatch
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if pr.epoch != t.epoch {
		return refEntry{}, ErrRefStale
	}
	e, ok := t.entries[pr.elemIdx]
	if !ok {
		return refEntry{}, ErrRefStale
	}
	return e, nil
}
