package viewpoint

import (
	"context"
	"testing"
)

func TestGlobMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		url     string
		want    bool
	}{
		{"*", "https://example.com/any/path", true},
		{"https://example.com/*", "https://example.com/api/users", true},
		{"https://example.com/*", "https://other.com/api/users", false},
		{"*.png", "image.png", true},
		{"*.png", "image.jpg", false},
		{"img?.png", "img1.png", true},
		{"img?.png", "img12.png", false},
		{"", "", true},
		{"", "x", false},
		{"exact", "exact", true},
		{"exact", "exacty", false},
	}

	for _, tt := range tests {
		if got := globMatch(tt.pattern, tt.url); got != tt.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tt.pattern, tt.url, got, tt.want)
		}
	}
}

func TestRunRouteHandlerFallsThroughOnFallback(t *testing.T) {
	t.Parallel()

	var p *Page
	route := &Route{}

	handled := p.runRouteHandler(context.Background(), func(ctx context.Context, route *Route) error {
		return route.Fallback()
	}, route)

	if handled {
		t.Fatal("runRouteHandler reported handled=true for a handler that called Fallback")
	}
}

func TestRunRouteHandlerFallsThroughOnBareNilReturn(t *testing.T) {
	t.Parallel()

	var p *Page
	route := &Route{}

	handled := p.runRouteHandler(context.Background(), func(ctx context.Context, route *Route) error {
		return nil // no terminal action taken
	}, route)

	if handled {
		t.Fatal("runRouteHandler reported handled=true for a handler that took no terminal action")
	}
}

func TestRunRouteHandlerReportsHandledAfterTerminalAction(t *testing.T) {
	t.Parallel()

	var p *Page
	route := &Route{}

	handled := p.runRouteHandler(context.Background(), func(ctx context.Context, route *Route) error {
		route.markHandled() // stands in for Continue/Fulfill/Abort
		return nil
	}, route)

	if !handled {
		t.Fatal("runRouteHandler reported handled=false after a terminal action")
	}
}

// TestLIFOFallbackChain exercises scenario H1/H2/H3: three handlers
// registered in order H1, H2, H3 (most-recently-registered first, as
// Page.Route's prepend produces); only H1 finally handles, H3 and H2 both
// decline via Fallback.
func TestLIFOFallbackChain(t *testing.T) {
	t.Parallel()

	var p *Page
	var order []string

	handlers := []RouteHandler{
		func(ctx context.Context, route *Route) error { // H3, tried first
			order = append(order, "H3")
			return route.Fallback()
		},
		func(ctx context.Context, route *Route) error { // H2, tried second
			order = append(order, "H2")
			return route.Fallback()
		},
		func(ctx context.Context, route *Route) error { // H1, tried third, handles
			order = append(order, "H1")
			route.markHandled()
			return nil
		},
	}

	route := &Route{}
	for _, h := range handlers {
		if p.runRouteHandler(context.Background(), h, route) {
			break
		}
	}

	want := []string{"H3", "H2", "H1"}
	if len(order) != len(want) {
		t.Fatalf("handler invocation order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("handler invocation order = %v, want %v", order, want)
		}
	}
	if !route.handled {
		t.Fatal("route not marked handled after H1 ran")
	}
}
