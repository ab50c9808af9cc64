package viewpoint

import (
	"errors"
	"testing"
)

func TestErrorSatisfiesErrorInterface(t *testing.T) {
	t.Parallel()

	var err error = ErrElementNotVisible
	if err.Error() != string(ErrElementNotVisible) {
		t.Errorf("Error() = %q, want %q", err.Error(), string(ErrElementNotVisible))
	}
}

func TestWrapCdpNilPassthrough(t *testing.T) {
	t.Parallel()

	if wrapCdp("some op", nil) != nil {
		t.Fatal("wrapCdp(op, nil) should return nil")
	}
}

func TestWrapCdpWrapsAndUnwraps(t *testing.T) {
	t.Parallel()

	inner := errors.New("socket closed")
	wrapped := wrapCdp("Page.navigate", inner)

	var cdpErr *CdpError
	if !errors.As(wrapped, &cdpErr) {
		t.Fatalf("errors.As failed to unwrap *CdpError from %v", wrapped)
	}
	if cdpErr.Op != "Page.navigate" {
		t.Errorf("Op = %q, want %q", cdpErr.Op, "Page.navigate")
	}
	if !errors.Is(wrapped, inner) {
		t.Errorf("errors.Is(wrapped, inner) = false, want true")
	}
}
