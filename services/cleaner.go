package services

import (
	"strings"
	"unicode"

	"pricehound/extract"
	"pricehound/models"
	"pricehound/utils"
)

// Cleaner transforms RawListings into Listings. Only cards with a title and a parseable
// price are retained; duplicate links are dropped.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean processes raw cards and returns retained listings in discovery order.
func (c *Cleaner) Clean(raw []*models.RawListing) []*models.Listing {
	seen := utils.NewURLSet()
	result := make([]*models.Listing, 0, len(raw))

	for _, r := range raw {
		title := normaliseText(r.Title)
		if title == "" {
			c.logger.Debug("[cleaner] Dropping card without title: %s", r.Link)
			continue
		}
		price, ok := extract.ParseListingPrice(r.RawPrice)
		if !ok {
			c.logger.Debug("[cleaner] Dropping %q: unparseable price %q", title, r.RawPrice)
			continue
		}

		link := strings.TrimSpace(r.Link)
		if link != "" {
			if !seen.Add(link) {
				c.logger.Debug("[cleaner] Duplicate link skipped: %s", link)
				continue
			}
		}

		result = append(result, &models.Listing{
			Backend:    normaliseBackend(r.Backend),
			Title:      title,
			Price:      price,
			Link:       link,
			ImageURL:   strings.TrimSpace(r.ImageURL),
			ExternalID: strings.TrimSpace(r.ExternalID),
		})
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

func normaliseBackend(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
