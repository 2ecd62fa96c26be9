package summary

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Rasterizer turns an HTML document into PNG bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, html string) ([]byte, error)
}

// RasterizerFunc adapts a function to the Rasterizer interface.
type RasterizerFunc func(ctx context.Context, html string) ([]byte, error)

func (f RasterizerFunc) Rasterize(ctx context.Context, html string) ([]byte, error) {
	return f(ctx, html)
}

// ChromeRasterizer renders pages in a headless Chrome started per call.
type ChromeRasterizer struct {
	execPath  string
	noSandbox bool
}

// NewChromeRasterizer creates a rasterizer. An empty execPath lets chromedp
// find a browser on the host.
func NewChromeRasterizer(execPath string, noSandbox bool) *ChromeRasterizer {
	return &ChromeRasterizer{execPath: execPath, noSandbox: noSandbox}
}

func (c *ChromeRasterizer) Rasterize(ctx context.Context, html string) ([]byte, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.WindowSize(Width, Height))
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}
	if c.noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var png []byte
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(Width, Height),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.CaptureScreenshot(&png),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome render: %w", err)
	}
	return png, nil
}
