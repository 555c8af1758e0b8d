package scraper

import (
	"context"

	"pricehound/models"
	"pricehound/utils"
)

// PageFunc loads one 1-based results page. blocked reports an anti-bot interstitial.
type PageFunc func(ctx context.Context, page int) (cards []*models.RawListing, blocked bool, err error)

// Paginate walks result pages until maxPages, an empty page, a block, an error or ctx expiry.
// Cards gathered before the stop are always returned.
func Paginate(ctx context.Context, name string, maxPages int, logger *utils.Logger, load PageFunc) []*models.RawListing {
	var all []*models.RawListing
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("[%s] Budget exhausted before page %d", name, page)
			break
		}

		cards, blocked, err := load(ctx, page)
		if err != nil {
			logger.Error("[%s] Page %d failed: %v", name, page, err)
			break
		}
		if blocked {
			logger.Warn("[%s] Captcha on page %d, stopping", name, page)
			break
		}
		if len(cards) == 0 {
			logger.Debug("[%s] Page %d returned 0 cards, stopping", name, page)
			break
		}

		all = append(all, cards...)
		logger.Debug("[%s] Page %d done, %d cards so far", name, page, len(all))
	}
	return all
}
