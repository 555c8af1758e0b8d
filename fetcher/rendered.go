package fetcher

import (
	"context"
	"time"

	"pricehound/browser"
)

// RenderedFetcher loads the page in a fresh browser session and returns the resulting DOM.
type RenderedFetcher struct {
	opts    browser.Options
	timeout time.Duration
}

// NewRenderedFetcher creates a RenderedFetcher bounded by timeout per page.
func NewRenderedFetcher(opts browser.Options, timeout time.Duration) *RenderedFetcher {
	return &RenderedFetcher{opts: opts, timeout: timeout}
}

// Fetch implements Fetcher.
func (f *RenderedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var html string
	err := browser.WithSession(ctx, f.opts, func(ctx context.Context) error {
		if err := browser.Navigate(ctx, url, f.timeout/2); err != nil {
			return err
		}
		if err := browser.ScrollUntilStable(ctx, 3, 500*time.Millisecond); err != nil {
			return err
		}
		var err error
		html, err = browser.OuterHTML(ctx)
		return err
	})
	return html, err
}
