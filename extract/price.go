package extract

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"

	"pricehound/browser"
	"pricehound/config"
	"pricehound/fetcher"
	"pricehound/utils"
)

var (
	// ErrUnsupportedHost means no price locator is known for the URL's marketplace.
	ErrUnsupportedHost = errors.New("unsupported marketplace host")
	// ErrPriceNotFound means the page had no usable price.
	ErrPriceNotFound = errors.New("price not found")
)

// PriceSource returns the current price of a product page.
type PriceSource interface {
	ExtractPrice(ctx context.Context, url string) (float64, error)
}

// renderFunc returns the text of the first element matching css on url.
type renderFunc func(ctx context.Context, url, css string) (string, error)

// PriceExtractor reads the current price with a per-marketplace locator on the rendered page.
type PriceExtractor struct {
	selectors *config.Selectors
	logger    *utils.Logger
	render    renderFunc
}

// NewPriceExtractor creates a PriceExtractor that waits up to timeout for the price element.
func NewPriceExtractor(selectors *config.Selectors, opts browser.Options, timeout time.Duration, logger *utils.Logger) *PriceExtractor {
	return &PriceExtractor{
		selectors: selectors,
		logger:    logger,
		render:    browserText(opts, timeout),
	}
}

// ExtractPrice implements PriceSource.
func (p *PriceExtractor) ExtractPrice(ctx context.Context, url string) (float64, error) {
	u, err := fetcher.ValidateURL(url)
	if err != nil {
		return 0, err
	}
	css, ok := p.selectors.PriceSelectorFor(u.Hostname())
	if !ok {
		return 0, utils.E(utils.KindNotFound, "price "+url, ErrUnsupportedHost)
	}

	text, err := p.render(ctx, url, css)
	if err != nil {
		p.logger.Warn("[price] %s: %v", url, err)
		return 0, err
	}
	price, ok := ParsePriceDigits(text)
	if !ok {
		return 0, utils.E(utils.KindNotFound, "price "+url, ErrPriceNotFound)
	}
	p.logger.Debug("[price] %s: %.0f", url, price)
	return price, nil
}

func browserText(opts browser.Options, timeout time.Duration) renderFunc {
	return func(ctx context.Context, url, css string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var text string
		err := browser.WithSession(ctx, opts, func(ctx context.Context) error {
			if err := browser.Navigate(ctx, url, timeout); err != nil {
				return err
			}
			err := chromedp.Run(ctx,
				chromedp.WaitVisible(css, chromedp.ByQuery),
				chromedp.Text(css, &text, chromedp.ByQuery),
			)
			if err != nil {
				if utils.KindOf(err) == utils.KindTimeout {
					return utils.E(utils.KindNotFound, "price element "+css, ErrPriceNotFound)
				}
				return utils.E(utils.KindRenderer, "price element "+css, err)
			}
			return nil
		})
		return text, err
	}
}
