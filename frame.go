package viewpoint

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
)

// Frame is one frame (main or nested iframe) in a Page's frame tree. All
// script evaluation and element lookups on a Frame flow through its
// session's execution contexts (see execution_context.go). Locator
// resolution and the ARIA snapshot and actionability helpers (see aria.go,
// actionability.go) run in the main world; the isolated utility world
// (utilityWorld) is not used by any of them.
type Frame struct {
	page     *Page
	id       cdp.FrameID
	parentID cdp.FrameID
	name     string
	url      string
	index    int

	mu       sync.RWMutex
	detached bool
}

// ID returns the frame's CDP frame id.
func (f *Frame) ID() cdp.FrameID { return f.id }

// URL returns the frame's last committed URL.
func (f *Frame) URL() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.url
}

// Name returns the frame's window.name, if any.
func (f *Frame) Name() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.name
}

// IsDetached reports whether the frame has been removed from its page.
func (f *Frame) IsDetached() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.detached
}

// ParentFrame returns the frame's parent, or nil for the main frame.
func (f *Frame) ParentFrame() *Frame {
	f.page.framesMu.RLock()
	defer f.page.framesMu.RUnlock()
	return f.page.frames[f.parentID]
}

// ChildFrames returns the frame's immediate children.
func (f *Frame) ChildFrames() []*Frame {
	f.page.framesMu.RLock()
	defer f.page.framesMu.RUnlock()
	var out []*Frame
	for _, c := range f.page.frames {
		if c.parentID == f.id {
			out = append(out, c)
		}
	}
	return out
}

// Page returns the frame's owning page.
func (f *Frame) Page() *Page { return f.page }

func (f *Frame) mainWorld(ctx context.Context) (*ExecutionContext, error) {
	return f.waitForWorld(ctx, false)
}

func (f *Frame) utilityWorld(ctx context.Context) (*ExecutionContext, error) {
	return f.waitForWorld(ctx, true)
}

// waitForWorld polls the session's execution-context table until the
// requested world has been created for this frame, since navigation
// recreates both worlds asynchronously relative to Page.frameNavigated.
func (f *Frame) waitForWorld(ctx context.Context, utility bool) (*ExecutionContext, error) {
	s := f.page.session
	for {
		if utility {
			if ctxID, ok := s.utilityWorldContext(f.id); ok {
				return &ExecutionContext{frame: f, id: ctxID}, nil
			}
		} else {
			if ctxID, ok := s.mainWorldContext(f.id); ok {
				return &ExecutionContext{frame: f, id: ctxID}, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ErrFrameExecutionContextGone
		case <-time.After(15 * time.Millisecond):
		}
	}
}
