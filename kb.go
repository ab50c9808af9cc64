package viewpoint

// keyDefinition is the subset of a US keyboard layout entry viewpoint
// needs to fill in Input.dispatchKeyEvent: the DOM "key" value, the
// physical "code", the legacy Windows virtual-key code chromium still
// expects, and (for printable keys) the text a keypress/input event
// should carry.
type keyDefinition struct {
	key     string
	code    string
	keyCode int64
	text    string
}

// namedKeys covers the non-printable keys callers name directly, e.g.
// Keyboard.Press(ctx, "Enter"). Hand-curated from the DOM UI Events key
// values table rather than generated, since only a small, stable subset
// is ever needed for form and navigation automation.
var namedKeys = map[string]keyDefinition{
	"Enter":      {key: "Enter", code: "Enter", keyCode: 13, text: "\r"},
	"Tab":        {key: "Tab", code: "Tab", keyCode: 9},
	"Escape":     {key: "Escape", code: "Escape", keyCode: 27},
	"Backspace":  {key: "Backspace", code: "Backspace", keyCode: 8},
	"Delete":     {key: "Delete", code: "Delete", keyCode: 46},
	"ArrowUp":    {key: "ArrowUp", code: "ArrowUp", keyCode: 38},
	"ArrowDown":  {key: "ArrowDown", code: "ArrowDown", keyCode: 40},
	"ArrowLeft":  {key: "ArrowLeft", code: "ArrowLeft", keyCode: 37},
	"ArrowRight": {key: "ArrowRight", code: "ArrowRight", keyCode: 39},
	"Home":       {key: "Home", code: "Home", keyCode: 36},
	"End":        {key: "End", code: "End", keyCode: 35},
	"PageUp":     {key: "PageUp", code: "PageUp", keyCode: 33},
	"PageDown":   {key: "PageDown", code: "PageDown", keyCode: 34},
	"Space":      {key: " ", code: "Space", keyCode: 32, text: " "},
	"Shift":      {key: "Shift", code: "ShiftLeft", keyCode: 16},
	"Control":    {key: "Control", code: "ControlLeft", keyCode: 17},
	"Alt":        {key: "Alt", code: "AltLeft", keyCode: 18},
	"Meta":       {key: "Meta", code: "MetaLeft", keyCode: 91},
}

func lookupKey(name string) (keyDefinition, bool) {
	def, ok := namedKeys[name]
	return def, ok
}

// lookupRuneKey maps a printable rune typed via Keyboard.Type to a US
// layout key/code pair and Windows virtual-key code. Only the common
// ASCII ranges are tabulated; anything else falls back to a bare
// keyDefinition carrying just the rune as text, which is sufficient for
// the KeyChar event to insert it.
func lookupRuneKey(r rune) (keyDefinition, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return keyDefinition{key: string(r), code: "Key" + string(r-32), keyCode: int64(r - 32), text: string(r)}, true
	case r >= 'A' && r <= 'Z':
		return keyDefinition{key: string(r), code: "Key" + string(r), keyCode: int64(r), text: string(r)}, true
	case r >= '0' && r <= '9':
		return keyDefinition{key: string(r), code: "Digit" + string(r), keyCode: int64(r), text: string(r)}, true
	case r == ' ':
		return namedKeys["Space"], true
	}
	return keyDefinition{}, false
}
