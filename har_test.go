package viewpoint

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHarEntryJSONShape(t *testing.T) {
	t.Parallel()

	entry := HarEntry{
		StartedDateTime: "2026-01-01T00:00:00Z",
		URL:             "https://example.com/api",
		Method:          "GET",
		Status:          200,
		StatusText:      "OK",
		ResourceType:    "XHR",
	}

	buf, err := json.Marshal(harLog{Entries: []HarEntry{entry}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded harLog
	if err := json.Unmarshal(buf, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if diff := cmp.Diff([]HarEntry{entry}, decoded.Entries); diff != "" {
		t.Errorf("HarEntry round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestHarEntryOmitsEmptyHeaders(t *testing.T) {
	t.Parallel()

	buf, err := json.Marshal(HarEntry{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(buf, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := m["requestHeaders"]; ok {
		t.Errorf("expected requestHeaders to be omitted when empty, got %v", m["requestHeaders"])
	}
	if _, ok := m["responseHeaders"]; ok {
		t.Errorf("expected responseHeaders to be omitted when empty, got %v", m["responseHeaders"])
	}
}
