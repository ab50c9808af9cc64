package viewpoint

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStorageStateJSONRoundTrip(t *testing.T) {
	t.Parallel()

	want := StorageState{
		Cookies: []Cookie{
			{Name: "session", Value: "abc123", Domain: "example.com", Path: "/", Secure: true},
		},
		Origins: []OriginStorage{
			{Origin: "https://example.com", LocalStorage: map[string]string{"theme": "dark"}},
		},
	}

	buf, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got StorageState
	if err := json.Unmarshal(buf, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("StorageState round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestOriginScopedScriptGuardsOnLocationOrigin(t *testing.T) {
	t.Parallel()

	got := originScopedScript("https://example.com", "doStuff();")
	want := `if (location.origin === "https://example.com") { doStuff(); }`
	if got != want {
		t.Errorf("originScopedScript = %q, want %q", got, want)
	}
}
