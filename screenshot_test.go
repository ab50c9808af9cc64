package viewpoint

import (
	"image"
	"image/color"
	"testing"

	"github.com/chromedp/cdproto/page"
	"github.com/orisano/pixelmatch"
)

func TestRoundClipSnapsToWholePixels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   page.Viewport
		want page.Viewport
	}{
		{
			name: "already whole",
			in:   page.Viewport{X: 10, Y: 20, Width: 100, Height: 50},
			want: page.Viewport{X: 10, Y: 20, Width: 100, Height: 50, Scale: 1},
		},
		{
			name: "fractional origin grows dimensions to cover the true edge",
			in:   page.Viewport{X: 10.4, Y: 20.6, Width: 100.2, Height: 50.1},
			want: page.Viewport{X: 10, Y: 21, Width: 101, Height: 50, Scale: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundClip(tt.in)
			if got != tt.want {
				t.Errorf("roundClip(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

// solidImage builds a w*h image filled with c, the same synthetic-fixture
// approach the teacher's screenshot_test.go uses decoded PNGs for, minus the
// dependency on a running browser to produce them.
func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPixelmatchDetectsScreenshotRegressions(t *testing.T) {
	t.Parallel()

	baseline := solidImage(20, 20, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	identical := solidImage(20, 20, color.RGBA{R: 10, G: 10, B: 10, A: 255})

	diff, err := pixelmatch.MatchPixel(baseline, identical, pixelmatch.Threshold(0.1))
	if err != nil {
		t.Fatalf("MatchPixel: %v", err)
	}
	if diff != 0 {
		t.Errorf("identical images: got %d differing pixels, want 0", diff)
	}

	regressed := solidImage(20, 20, color.RGBA{R: 250, G: 250, B: 250, A: 255})
	diff, err = pixelmatch.MatchPixel(baseline, regressed, pixelmatch.Threshold(0.1))
	if err != nil {
		t.Fatalf("MatchPixel: %v", err)
	}
	if diff != 20*20 {
		t.Errorf("fully regressed image: got %d differing pixels, want %d", diff, 20*20)
	}
}
