package viewpoint

import (
	"fmt"
	"testing"
)

func TestRefTableAddAndResolve(t *testing.T) {
	t.Parallel()

	tbl := newRefTable(0, 1)
	epoch := tbl.reset()

	f := &Frame{}
	ref := tbl.add(epoch, 3, refEntry{frame: f})

	pr, err := parseRef(ref)
	if err != nil {
		t.Fatalf("parseRef(%q): %v", ref, err)
	}
	if pr.ctxIdx != 0 || pr.pageIdx != 1 || pr.epoch != epoch || pr.elemIdx != 3 {
		t.Fatalf("parseRef(%q) = %+v, want ctxIdx=0 pageIdx=1 epoch=%d elemIdx=3", ref, pr, epoch)
	}

	entry, err := tbl.resolve(ref, 0, 1)
	if err != nil {
		t.Fatalf("resolve(%q): %v", ref, err)
	}
	if entry.frame != f {
		t.Fatalf("resolve(%q) returned wrong frame", ref)
	}
}

func TestRefTableResolveWrongContextOrPage(t *testing.T) {
	t.Parallel()

	tbl := newRefTable(0, 1)
	epoch := tbl.reset()
	ref := tbl.add(epoch, 0, refEntry{frame: &Frame{}})

	if _, err := tbl.resolve(ref, 9, 1); err != ErrRefContextIndexMismatch {
		t.Fatalf("resolve with wrong ctx = %v, want ErrRefContextIndexMismatch", err)
	}
	if _, err := tbl.resolve(ref, 0, 9); err != ErrRefPageIndexMismatch {
		t.Fatalf("resolve with wrong page = %v, want ErrRefPageIndexMismatch", err)
	}
}

func TestRefTableResetInvalidatesOldRefs(t *testing.T) {
	t.Parallel()

	tbl := newRefTable(0, 0)
	epoch1 := tbl.reset()
	ref := tbl.add(epoch1, 0, refEntry{frame: &Frame{}})

	tbl.reset() // bump to a new epoch, discarding entries from epoch1

	if _, err := tbl.resolve(ref, 0, 0); err != ErrRefStale {
		t.Fatalf("resolve(%q) after reset = %v, want ErrRefStale", ref, err)
	}
}

func TestRefTableResolveUnknownIndex(t *testing.T) {
	t.Parallel()

	tbl := newRefTable(0, 0)
	epoch := tbl.reset()
	ref := Ref(fmt.Sprintf("c0p0e%d-99", epoch))

	if _, err := tbl.resolve(ref, 0, 0); err != ErrRefStale {
		t.Fatalf("resolve(%q) = %v, want ErrRefStale", ref, err)
	}
}

func TestParseRefInvalidFormat(t *testing.T) {
	t.Parallel()

	tests := []string{"", "no-prefix", "e5", "eX-1", "e1-Y", "e1", "c0p0e1", "p0e1-2"}
	for _, s := range tests {
		if _, err := parseRef(Ref(s)); err != ErrRefInvalidFormat {
			t.Errorf("parseRef(%q) = %v, want ErrRefInvalidFormat", s, err)
		}
	}
}

func TestParseRefOptionalFrameSegment(t *testing.T) {
	t.Parallel()

	pr, err := parseRef(Ref("c1p2f3e4-5"))
	if err != nil {
		t.Fatalf("parseRef: %v", err)
	}
	if !pr.hasFrame || pr.ctxIdx != 1 || pr.pageIdx != 2 || pr.frameIdx != 3 || pr.epoch != 4 || pr.elemIdx != 5 {
		t.Fatalf("parseRef = %+v, want ctxIdx=1 pageIdx=2 frameIdx=3 epoch=4 elemIdx=5 hasFrame=true", pr)
	}

	pr, err = parseRef(Ref("c1p2e4-5"))
	if err != nil {
		t.Fatalf("parseRef: %v", err)
	}
	if pr.hasFrame {
		t.Fatalf("parseRef(%q).hasFrame = true, want false", "c1p2e4-5")
	}
}
