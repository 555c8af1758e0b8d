package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// MarketplaceSelectors describes how one marketplace search page is laid out.
type MarketplaceSelectors struct {
	// Key is the name the backend reports its results under.
	Key       string `toml:"key"`
	SearchURL string `toml:"search_url"`
	Card      string `toml:"card"`
	Title     string `toml:"title"`
	// TitleMeta, when set, is an itemprop meta inside the card preferred over Title.
	TitleMeta string `toml:"title_meta"`
	Price     string `toml:"price"`
	Link      string `toml:"link"`
	Image     string `toml:"image"`
	ImageMeta string `toml:"image_meta"`
	// IDAttr is read from the card (or the link when IDFromLink is set).
	IDAttr     string `toml:"id_attr"`
	IDFromLink bool   `toml:"id_from_link"`
	Captcha    string `toml:"captcha"`
}

// PageURL builds the search URL for query and a 1-based page number.
func (m MarketplaceSelectors) PageURL(escapedQuery string, page int) string {
	u := strings.ReplaceAll(m.SearchURL, "{query}", escapedQuery)
	return strings.ReplaceAll(u, "{page}", fmt.Sprint(page))
}

// Selectors groups every site-specific locator table.
type Selectors struct {
	Marketplaces map[string]MarketplaceSelectors `toml:"marketplaces"`
	// PriceByHost maps a host suffix to the CSS selector of the current price on a product page.
	PriceByHost map[string]string `toml:"price_by_host"`
}

// DefaultSelectors returns the built-in tables.
func DefaultSelectors() *Selectors {
	return &Selectors{
		Marketplaces: map[string]MarketplaceSelectors{
			"ozon": {
				Key:        "ozon",
				SearchURL:  "https://www.ozon.ru/search/?from_global=true&text={query}&page={page}",
				Card:       "div.tile-root",
				Title:      "span[class*='tsBody'][class*='Medium']",
				Price:      "span[class*='tsHeadline'][class*='Medium']",
				Link:       "a[href*='/product/']",
				Image:      "img",
				IDFromLink: true,
				Captcha:    "div.captcha-container",
			},
			"wildberries": {
				Key:       "wildberries",
				SearchURL: "https://www.wildberries.ru/catalog/0/search.aspx?search={query}&page={page}",
				Card:      ".product-card",
				Title:     "span.product-card__name",
				Price:     "ins.price__lower-price",
				Link:      "a.product-card__link",
				Image:     "img.j-thumbnail",
				IDAttr:    "data-nm-id",
			},
			"megamarket": {
				Key:        "sbermegamarket",
				SearchURL:  "https://megamarket.ru/catalog/?q={query}&page={page}",
				Card:       "div[class*='catalog-item-regular']",
				Title:      "a.catalog-item-regular-desktop__title-link",
				TitleMeta:  "meta[itemprop='name']",
				Price:      "div.catalog-item-regular-desktop__price",
				Link:       "a.ddl_product_link",
				Image:      "img.pui-img",
				ImageMeta:  "meta[itemprop='image']",
				IDAttr:     "data-product-id",
				IDFromLink: false,
			},
		},
		PriceByHost: map[string]string{
			"ozon.ru":        "[data-widget='webPrice'] span",
			"wildberries.ru": ".price-block__final-price",
			"megamarket.ru":  ".pdp-price__current",
		},
	}
}

// LoadSelectors returns the defaults, overridden field by field from a TOML file when path is set.
func LoadSelectors(path string) (*Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selectors %s: %w", path, err)
	}
	var override Selectors
	if err := toml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse selectors %s: %w", path, err)
	}

	for name, m := range override.Marketplaces {
		sel.Marketplaces[name] = mergeMarketplace(sel.Marketplaces[name], m)
	}
	for host, css := range override.PriceByHost {
		sel.PriceByHost[strings.ToLower(host)] = css
	}
	return sel, nil
}

func mergeMarketplace(base, over MarketplaceSelectors) MarketplaceSelectors {
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&base.Key, over.Key)
	pick(&base.SearchURL, over.SearchURL)
	pick(&base.Card, over.Card)
	pick(&base.Title, over.Title)
	pick(&base.TitleMeta, over.TitleMeta)
	pick(&base.Price, over.Price)
	pick(&base.Link, over.Link)
	pick(&base.Image, over.Image)
	pick(&base.ImageMeta, over.ImageMeta)
	pick(&base.IDAttr, over.IDAttr)
	pick(&base.Captcha, over.Captcha)
	if over.IDFromLink {
		base.IDFromLink = true
	}
	return base
}

// PriceSelectorFor finds the price selector for host by suffix match.
func (s *Selectors) PriceSelectorFor(host string) (string, bool) {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for suffix, css := range s.PriceByHost {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return css, true
		}
	}
	return "", false
}
