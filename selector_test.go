package viewpoint

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseSelector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want Selector
	}{
		{"bare css", "#submit", Selector{Engine: EngineCSS, Body: "#submit"}},
		{"explicit css", "css=.btn-primary", Selector{Engine: EngineCSS, Body: ".btn-primary"}},
		{"text", `text=Sign in`, Selector{Engine: EngineText, Body: "Sign in"}},
		{"xpath", "xpath=//button[1]", Selector{Engine: EngineXPath, Body: "//button[1]"}},
		{"empty", "", Selector{Engine: EngineCSS, Body: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSelector(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseSelector(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestParseSelectorPrefixOnlyMatchesAtStart(t *testing.T) {
	t.Parallel()

	// "a[href=text=foo]" isn't an engine-prefixed selector just because
	// "text=" appears somewhere in it; only a leading prefix counts.
	got := ParseSelector(`a[href="text=foo"]`)
	want := Selector{Engine: EngineCSS, Body: `a[href="text=foo"]`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
