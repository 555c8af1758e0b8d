package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var imageLocators = []struct {
	selector string
	attr     string
}{
	{"meta[property='og:image']", "content"},
	{"meta[name='twitter:image']", "content"},
	{"link[rel='image_src']", "href"},
	{"meta[itemprop='image']", "content"},
}

// ImageURL returns the page's preview image resolved against base, or "".
func ImageURL(doc *goquery.Document, base *url.URL) string {
	if doc == nil {
		return ""
	}
	for _, loc := range imageLocators {
		v, ok := doc.Find(loc.selector).First().Attr(loc.attr)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			continue
		}
		ref, err := url.Parse(v)
		if err != nil {
			continue
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme == "http" || ref.Scheme == "https" {
			return ref.String()
		}
	}
	return ""
}
