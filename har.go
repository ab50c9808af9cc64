package viewpoint

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// HarEntry is one request/response pair recorded by a Page's HAR recorder,
// a deliberately trimmed subset of the HAR 1.2 "entries" schema (enough to
// diagnose a test failure, not a byte-for-byte devtools-compatible export).
type HarEntry struct {
	StartedDateTime string            `json:"startedDateTime"`
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Status          int64             `json:"status"`
	StatusText      string            `json:"statusText"`
	RequestHeaders  map[string]string `json:"requestHeaders,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	ResourceType    string            `json:"resourceType"`
}

// harLog is the root object a recording is serialized as.
type harLog struct {
	Entries []HarEntry `json:"entries"`
}

// harRecorder accumulates HarEntry values from a page's request/response
// event stream; Page.StartHAR wires it to OnRequest/OnResponse rather than
// hooking Network events a second time.
type harRecorder struct {
	mu      sync.Mutex
	pending map[string]*HarEntry
	entries []HarEntry
}

// StartHAR begins recording every request/response pair the page makes.
// Call the returned stop function to finish recording and write the
// resulting HAR-like JSON log to path.
func (p *Page) StartHAR(path string) (stop func() error) {
	rec := &harRecorder{pending: make(map[string]*HarEntry)}

	p.OnRequest(func(r *Request) {
		rec.mu.Lock()
		rec.pending[string(r.requestID)] = &HarEntry{
			StartedDateTime: time.Now().UTC().Format(time.RFC3339Nano),
			URL:             r.URL,
			Method:          r.Method,
			RequestHeaders:  r.Headers,
			ResourceType:    r.Resource,
		}
		rec.mu.Unlock()
	})
	p.OnResponse(func(resp *Response) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		e, ok := rec.pending[string(resp.Request.requestID)]
		if !ok {
			e = &HarEntry{URL: resp.Request.URL, ResourceType: resp.Request.Resource}
		} else {
			delete(rec.pending, string(resp.Request.requestID))
		}
		e.Status = resp.Status
		e.StatusText = resp.StatusText
		e.ResponseHeaders = resp.Headers
		rec.entries = append(rec.entries, *e)
	})

	return func() error {
		rec.mu.Lock()
		out := harLog{Entries: append([]HarEntry{}, rec.entries...)}
		rec.mu.Unlock()
		buf, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(path, buf, 0o644)
	}
}
