package report

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"ropastore/internal/log"
)

const renderTimeout = 30 * time.Second

// PDFRenderer prints the server's own report page to PDF through headless
// Chrome. The render URL carries a one-shot token so the route stays closed
// to anyone but the renderer itself.
type PDFRenderer struct {
	baseURL    string
	chromePath string
	logger     *log.Logger
}

func NewPDFRenderer(baseURL, chromePath string, logger *log.Logger) *PDFRenderer {
	return &PDFRenderer{
		baseURL:    baseURL,
		chromePath: chromePath,
		logger:     logger.WithComponent(log.ComponentReport),
	}
}

// Render navigates to the report page and returns the PDF bytes.
func (r *PDFRenderer) Render(ctx context.Context, renderPath string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
	)
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	defer chromeCancel()

	renderURL := r.baseURL + renderPath
	r.logger.InfoContext(ctx, "Rendering report PDF", "url", r.baseURL+"/reports/render")

	var pdf []byte
	err := chromedp.Run(chromeCtx,
		chromedp.Navigate(renderURL),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			// A4 portrait.
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.4).
				WithMarginBottom(0.4).
				WithMarginLeft(0.4).
				WithMarginRight(0.4).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print report to pdf: %w", err)
	}

	r.logger.InfoContext(ctx, "Report PDF rendered", "bytes", len(pdf))
	return pdf, nil
}
