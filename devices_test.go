package viewpoint

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDevicesTableIsWellFormed(t *testing.T) {
	t.Parallel()

	for name, d := range Devices {
		if d.Name != name {
			t.Errorf("Devices[%q].Name = %q, want %q", name, d.Name, name)
		}
		if d.UserAgent == "" {
			t.Errorf("Devices[%q] has empty UserAgent", name)
		}
		if d.Viewport.Width <= 0 || d.Viewport.Height <= 0 {
			t.Errorf("Devices[%q] has non-positive viewport %+v", name, d.Viewport)
		}
		if len(d.Options) == 0 {
			t.Errorf("Devices[%q] has no viewport options", name)
		}
	}
}

func TestDevicesIPhoneSEViewport(t *testing.T) {
	t.Parallel()

	got := Devices["iPhone SE"].Viewport
	want := Viewport{Width: 375, Height: 667}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("iPhone SE viewport mismatch (-want +got):\n%s", diff)
	}
}
