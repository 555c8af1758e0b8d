// Package fetcher retrieves product pages either over plain HTTP or through a headless browser.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"pricehound/utils"
)

// Mode selects how a document is retrieved.
type Mode int

const (
	// Fast issues a single HTTP request and returns the raw markup.
	Fast Mode = iota
	// Rendered loads the page in a browser and returns the DOM after scripts ran.
	Rendered
)

func (m Mode) String() string {
	if m == Rendered {
		return "rendered"
	}
	return "fast"
}

// ErrBadScheme is returned for URLs that are not http(s).
var ErrBadScheme = errors.New("url must start with http:// or https://")

// Fetcher returns the HTML of url. Failures are *utils.Error values carrying a Kind.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Router dispatches to the fetcher registered for a mode.
type Router struct {
	FastFetcher     Fetcher
	RenderedFetcher Fetcher
}

// Fetch retrieves url using the given mode.
func (r *Router) Fetch(ctx context.Context, mode Mode, url string) (string, error) {
	f := r.FastFetcher
	if mode == Rendered {
		f = r.RenderedFetcher
	}
	if f == nil {
		return "", utils.E(utils.KindPermanent, "fetch "+mode.String(), errors.New("no fetcher configured"))
	}
	return f.Fetch(ctx, url)
}

// ValidateURL accepts only absolute http(s) URLs with a host.
func ValidateURL(raw string) (*url.URL, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return nil, utils.E(utils.KindMalformed, "validate url", ErrBadScheme)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, utils.E(utils.KindMalformed, "validate url", err)
	}
	if u.Host == "" {
		return nil, utils.E(utils.KindMalformed, "validate url", fmt.Errorf("missing host in %q", raw))
	}
	return u, nil
}
