package viewpoint

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
)

// StartVideoCapture begins streaming the page's rendered frames via
// Page.startScreencast and writes each as a numbered PNG under dir. CDP has
// no native video muxer; stitching the frames into an actual video file
// (e.g. with ffmpeg) is left to the caller, the same boundary Playwright
// draws between its screencast-frame capture and its video encoding step.
func (p *Page) StartVideoCapture(ctx context.Context, dir string) (stop func() error, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	exec := cdp.WithExecutor(ctx, p.session)
	var frameNum int64

	cancel := p.session.listen(func(ev interface{}) {
		e, ok := ev.(*page.EventScreencastFrame)
		if !ok {
			return
		}
		go func() {
			data, err := base64.StdEncoding.DecodeString(e.Data)
			if err == nil {
				n := atomic.AddInt64(&frameNum, 1)
				name := filepath.Join(dir, fmt.Sprintf("frame-%06d.png", n))
				_ = os.WriteFile(name, data, 0o644)
			}
			_ = page.ScreencastFrameAck(e.SessionID).Do(exec)
		}()
	})

	if err := page.StartScreencast().WithFormat(page.ScreencastFormatPng).Do(exec); err != nil {
		cancel()
		return nil, wrapCdp("Page.startScreencast", err)
	}

	return func() error {
		defer cancel()
		return page.StopScreencast().Do(cdp.WithExecutor(context.Background(), p.session))
	}, nil
}
