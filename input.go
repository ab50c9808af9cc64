package viewpoint

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
)

// Mouse issues low level Input.dispatchMouseEvent commands against a
// page, the way Locator actions do internally after resolving an element
// to a point; exposed directly for callers that need raw pointer control.
type Mouse struct {
	page *Page
}

// Mouse returns the page's mouse input controller.
func (p *Page) Mouse() *Mouse { return &Mouse{page: p} }

func (m *Mouse) exec(ctx context.Context) context.Context {
	return cdp.WithExecutor(ctx, m.page.session)
}

// Move moves the (virtual) mouse pointer to x, y in CSS pixels.
func (m *Mouse) Move(ctx context.Context, x, y float64) error {
	return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(m.exec(ctx))
}

// Click presses and releases the left mouse button at x, y.
func (m *Mouse) Click(ctx context.Context, x, y float64) error {
	if err := input.DispatchMouseEvent(input.MousePressed, x, y).
		WithButton(input.Left).WithClickCount(1).Do(m.exec(ctx)); err != nil {
		return err
	}
	return input.DispatchMouseEvent(input.MouseReleased, x, y).
		WithButton(input.Left).WithClickCount(1).Do(m.exec(ctx))
}

// DblClick presses and releases the left mouse button twice in quick
// succession at x, y, the native double-click sequence chromium expects
// (a single dispatch with clickCount 2 does not fire a dblclick event).
func (m *Mouse) DblClick(ctx context.Context, x, y float64) error {
	if err := m.Click(ctx, x, y); err != nil {
		return err
	}
	if err := input.DispatchMouseEvent(input.MousePressed, x, y).
		WithButton(input.Left).WithClickCount(2).Do(m.exec(ctx)); err != nil {
		return err
	}
	return input.DispatchMouseEvent(input.MouseReleased, x, y).
		WithButton(input.Left).WithClickCount(2).Do(m.exec(ctx))
}

// Keyboard issues low level Input.dispatchKeyEvent commands.
type Keyboard struct {
	page *Page
}

// Keyboard returns the page's keyboard input controller.
func (p *Page) Keyboard() *Keyboard { return &Keyboard{page: p} }

// Type dispatches a keyDown/char/keyUp sequence for every rune in s,
// using kb.go's key definition table to fill in the key, code and virtual
// key codes chromium's Input domain expects. No modifier flags are sent.
func (k *Keyboard) Type(ctx context.Context, s string) error {
	exec := cdp.WithExecutor(ctx, k.page.session)
	for _, r := range s {
		def, ok := lookupRuneKey(r)
		if !ok {
			def = keyDefinition{key: string(r), text: string(r)}
		}
		if err := k.dispatchKeyDown(exec, def); err != nil {
			return err
		}
		if def.text != "" {
			if err := input.DispatchKeyEvent(input.KeyChar).
				WithText(def.text).Do(exec); err != nil {
				return err
			}
		}
		if err := k.dispatchKeyUp(exec, def); err != nil {
			return err
		}
	}
	return nil
}

// Press dispatches a single named key (e.g. "Enter", "Tab", "Escape",
// "ArrowDown") by its kb.go definition.
func (k *Keyboard) Press(ctx context.Context, key string) error {
	exec := cdp.WithExecutor(ctx, k.page.session)
	def, ok := lookupKey(key)
	if !ok {
		return ErrRefInvalidFormat
	}
	if err := k.dispatchKeyDown(exec, def); err != nil {
		return err
	}
	return k.dispatchKeyUp(exec, def)
}

func (k *Keyboard) dispatchKeyDown(ctx context.Context, def keyDefinition) error {
	return input.DispatchKeyEvent(input.KeyDown).
		WithKey(def.key).
		WithCode(def.code).
		WithWindowsVirtualKeyCode(def.keyCode).
		WithNativeVirtualKeyCode(def.keyCode).
		Do(ctx)
}

func (k *Keyboard) dispatchKeyUp(ctx context.Context, def keyDefinition) error {
	return input.DispatchKeyEvent(input.KeyUp).
		WithKey(def.key).
		WithCode(def.code).
		WithWindowsVirtualKeyCode(def.keyCode).
		WithNativeVirtualKeyCode(def.keyCode).
		Do(ctx)
}

// Click scrolls the element into view, waits for it to be actionable, and
// clicks its center point.
func (l *Locator) Click(ctx context.Context, opts ...WaitOption) error {
	el, res, err := l.waitForActionable(ctx, true, opts...)
	if err != nil {
		return err
	}
	if err := l.scrollIntoViewIfNeeded(ctx, el.objectID); err != nil {
		return err
	}
	if err := callOnObject(ctx, l.frame.page.session, el.objectID, actionabilityJS, &res); err != nil {
		return err
	}
	x, y := l.centerPoint(res.Rect)
	return l.frame.page.Mouse().Click(ctx, x, y)
}

// Hover moves the mouse over the element's center point.
func (l *Locator) Hover(ctx context.Context, opts ...WaitOption) error {
	_, res, err := l.waitForActionable(ctx, false, opts...)
	if err != nil {
		return err
	}
	x, y := l.centerPoint(res.Rect)
	return l.frame.page.Mouse().Move(ctx, x, y)
}

// Fill replaces the element's value with value via setAttributeJS (a
// direct assignment, not keystrokes), then dispatches input/change events
// the way a real keystroke would.
func (l *Locator) Fill(ctx context.Context, value string) error {
	el, _, err := l.waitForActionable(ctx, true)
	if err != nil {
		return err
	}
	var unused string
	return callOnObject(ctx, l.frame.page.session, el.objectID, setAttributeJS, &unused, "value", value)
}

// Press focuses the element then dispatches the named key against it.
func (l *Locator) Press(ctx context.Context, key string) error {
	el, _, err := l.waitForActionable(ctx, true)
	if err != nil {
		return err
	}
	const focusJS = `function() { this.focus(); }`
	if err := callOnObject(ctx, l.frame.page.session, el.objectID, focusJS, nil); err != nil {
		return err
	}
	return l.frame.page.Keyboard().Press(ctx, key)
}

// Check sets a checkbox/radio input's checked state to true, a no-op if
// it's already checked.
func (l *Locator) Check(ctx context.Context) error {
	return l.setChecked(ctx, true)
}

// Uncheck sets a checkbox input's checked state to false.
func (l *Locator) Uncheck(ctx context.Context) error {
	return l.setChecked(ctx, false)
}

func (l *Locator) setChecked(ctx context.Context, checked bool) error {
	el, _, err := l.waitForActionable(ctx, true)
	if err != nil {
		return err
	}
	const checkJS = `function(v) {
		if (this.checked === v) return;
		this.checked = v;
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`
	return callOnObject(ctx, l.frame.page.session, el.objectID, checkJS, nil, checked)
}

// DblClick scrolls the element into view, waits for it to be actionable,
// and double-clicks its center point.
func (l *Locator) DblClick(ctx context.Context, opts ...WaitOption) error {
	el, res, err := l.waitForActionable(ctx, true, opts...)
	if err != nil {
		return err
	}
	if err := l.scrollIntoViewIfNeeded(ctx, el.objectID); err != nil {
		return err
	}
	if err := callOnObject(ctx, l.frame.page.session, el.objectID, actionabilityJS, &res); err != nil {
		return err
	}
	x, y := l.centerPoint(res.Rect)
	return l.frame.page.Mouse().DblClick(ctx, x, y)
}

// Tap scrolls the element into view and dispatches a touch tap at its
// center point, for pages that only wire up touch handlers.
func (l *Locator) Tap(ctx context.Context, opts ...WaitOption) error {
	el, res, err := l.waitForActionable(ctx, true, opts...)
	if err != nil {
		return err
	}
	if err := l.scrollIntoViewIfNeeded(ctx, el.objectID); err != nil {
		return err
	}
	if err := callOnObject(ctx, l.frame.page.session, el.objectID, actionabilityJS, &res); err != nil {
		return err
	}
	x, y := l.centerPoint(res.Rect)
	exec := cdp.WithExecutor(ctx, l.frame.page.session)
	points := []*input.TouchPoint{{X: x, Y: y}}
	if err := input.DispatchTouchEvent(input.TouchStart, points).Do(exec); err != nil {
		return err
	}
	return input.DispatchTouchEvent(input.TouchEnd, nil).Do(exec)
}

// SetInputFiles sets a <input type=file> element's selected files to
// paths, the CDP DOM.setFileInputFiles contract: paths must name real
// files on disk, not in-memory buffers.
func (l *Locator) SetInputFiles(ctx context.Context, paths ...string) error {
	el, err := l.single(ctx)
	if err != nil {
		return err
	}
	exec := cdp.WithExecutor(ctx, l.frame.page.session)
	return dom.SetFileInputFiles(paths).WithObjectID(el.objectID).Do(exec)
}

// Type focuses the element and dispatches a real keystroke sequence for
// every rune in text, unlike Fill's direct value assignment.
func (l *Locator) Type(ctx context.Context, text string) error {
	el, _, err := l.waitForActionable(ctx, true)
	if err != nil {
		return err
	}
	const focusJS = `function() { this.focus(); }`
	if err := callOnObject(ctx, l.frame.page.session, el.objectID, focusJS, nil); err != nil {
		return err
	}
	return l.frame.page.Keyboard().Type(ctx, text)
}

// Clear empties a form control's value.
func (l *Locator) Clear(ctx context.Context) error {
	return l.Fill(ctx, "")
}
