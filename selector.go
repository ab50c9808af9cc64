package viewpoint

import "strings"

// SelectorEngine names which matching strategy a Selector segment uses.
type SelectorEngine string

const (
	EngineCSS         SelectorEngine = "css"
	EngineText        SelectorEngine = "text"
	EngineXPath       SelectorEngine = "xpath"
	EngineRole        SelectorEngine = "role"
	EngineTestID      SelectorEngine = "testid"
	EngineLabel       SelectorEngine = "label"
	EnginePlaceholder SelectorEngine = "placeholder"
	EngineAltText     SelectorEngine = "alt"
	EngineTitle       SelectorEngine = "title"
	// EngineNth is a synthetic engine Locator.Nth appends to a selector
	// chain: instead of querying, the resolver narrows the current match
	// set down to the single element at the given index.
	EngineNth SelectorEngine = "nth"
)

// RoleOptions narrows a Role selector match the way Playwright's
// get_by_role option bag does. A nil *bool leaves that ARIA state
// unconstrained; a non-nil one requires the element's computed state to
// equal it.
type RoleOptions struct {
	Name          string `json:"name,omitempty"`
	Exact         bool   `json:"exact,omitempty"`
	Checked       *bool  `json:"checked,omitempty"`
	Selected      *bool  `json:"selected,omitempty"`
	Expanded      *bool  `json:"expanded,omitempty"`
	Pressed       *bool  `json:"pressed,omitempty"`
	Disabled      *bool  `json:"disabled,omitempty"`
	Level         int    `json:"level,omitempty"`
	IncludeHidden bool   `json:"includeHidden,omitempty"`
}

// RoleOption configures RoleOptions when constructing a GetByRole locator.
type RoleOption func(*RoleOptions)

// WithRoleName additionally requires the element's accessible name to
// match name, exactly or as a case-insensitive substring.
func WithRoleName(name string, exact bool) RoleOption {
	return func(o *RoleOptions) { o.Name = name; o.Exact = exact }
}

// WithRoleChecked requires aria-checked/checked to equal v.
func WithRoleChecked(v bool) RoleOption { return func(o *RoleOptions) { o.Checked = &v } }

// WithRoleSelected requires aria-selected/selected to equal v.
func WithRoleSelected(v bool) RoleOption { return func(o *RoleOptions) { o.Selected = &v } }

// WithRoleExpanded requires aria-expanded to equal v.
func WithRoleExpanded(v bool) RoleOption { return func(o *RoleOptions) { o.Expanded = &v } }

// WithRolePressed requires aria-pressed to equal v.
func WithRolePressed(v bool) RoleOption { return func(o *RoleOptions) { o.Pressed = &v } }

// WithRoleDisabled requires the disabled state to equal v.
func WithRoleDisabled(v bool) RoleOption { return func(o *RoleOptions) { o.Disabled = &v } }

// WithRoleLevel restricts matches to headings (or aria-level elements) at
// the given level.
func WithRoleLevel(level int) RoleOption { return func(o *RoleOptions) { o.Level = level } }

// WithRoleIncludeHidden includes elements that are CSS- or aria-hidden,
// which role matching otherwise excludes.
func WithRoleIncludeHidden() RoleOption { return func(o *RoleOptions) { o.IncludeHidden = true } }

// Selector is one segment of a (possibly chained) locator query: "find
// elements via engine matching body (or role/options), scoped under
// whatever the previous segment resolved to". Locator.Locator(subSelector)
// chains segments by scoping the child query's root to each element the
// parent matched, exactly like Playwright's `page.locator('div').locator('button')`.
type Selector struct {
	Engine  SelectorEngine `json:"engine"`
	Body    string         `json:"body,omitempty"`
	Exact   bool           `json:"exact,omitempty"`
	Role    string         `json:"role,omitempty"`
	Options RoleOptions    `json:"options,omitempty"`
}

// ParseSelector accepts either a bare CSS selector, or an engine-prefixed
// selector string ("text=Sign in", "xpath=//button"), matching Playwright's
// selector string syntax.
func ParseSelector(s string) Selector {
	if rest, ok := cutPrefix(s, "text="); ok {
		return Selector{Engine: EngineText, Body: rest}
	}
	if rest, ok := cutPrefix(s, "xpath="); ok {
		return Selector{Engine: EngineXPath, Body: rest}
	}
	if rest, ok := cutPrefix(s, "css="); ok {
		return Selector{Engine: EngineCSS, Body: rest}
	}
	return Selector{Engine: EngineCSS, Body: s}
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return "", false
}
