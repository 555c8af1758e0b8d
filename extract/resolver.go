package extract

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pricehound/fetcher"
	"pricehound/utils"
)

// ErrTitleNotFound is returned when neither the fast nor the rendered document yields a title.
var ErrTitleNotFound = errors.New("product title not found")

// DocumentSource fetches a document in the requested mode. *fetcher.Router satisfies it.
type DocumentSource interface {
	Fetch(ctx context.Context, mode fetcher.Mode, url string) (string, error)
}

// Page is what the resolver learned about a product page.
type Page struct {
	URL      string
	Title    string
	ImageURL string
	Mode     fetcher.Mode
}

// Resolver extracts the product title, trying a plain HTTP fetch before a browser render.
type Resolver struct {
	source  DocumentSource
	cascade *Cascade
	logger  *utils.Logger
}

// NewResolver creates a Resolver.
func NewResolver(source DocumentSource, cascade *Cascade, logger *utils.Logger) *Resolver {
	return &Resolver{source: source, cascade: cascade, logger: logger}
}

// Resolve validates rawURL and returns its title and preview image.
// The rendered path runs only when the fast path produced no title.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Page, error) {
	base, err := fetcher.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, mode := range []fetcher.Mode{fetcher.Fast, fetcher.Rendered} {
		markup, err := r.source.Fetch(ctx, mode, rawURL)
		if err != nil {
			r.logger.Warn("[resolver] %s fetch of %s failed: %v", mode, rawURL, err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
		if err != nil {
			lastErr = utils.E(utils.KindMalformed, "parse "+rawURL, err)
			continue
		}
		if title, ok := r.cascade.Extract(doc); ok {
			r.logger.Info("[resolver] %s: %q via %s path", rawURL, title, mode)
			return &Page{URL: rawURL, Title: title, ImageURL: ImageURL(doc, base), Mode: mode}, nil
		}
		r.logger.Debug("[resolver] %s path found no title for %s", mode, rawURL)
	}

	if lastErr != nil {
		return nil, utils.E(utils.KindNotFound, "resolve "+rawURL, errors.Join(ErrTitleNotFound, lastErr))
	}
	return nil, utils.E(utils.KindNotFound, "resolve "+rawURL, ErrTitleNotFound)
}

// Title returns only the cleaned title of url.
func (r *Resolver) Title(ctx context.Context, url string) (string, error) {
	page, err := r.Resolve(ctx, url)
	if err != nil {
		return "", err
	}
	return page.Title, nil
}
