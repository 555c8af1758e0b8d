package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"pricehound/config"
	"pricehound/utils"
)

// HTTPFetcher is the fast path: one GET per attempt, no script execution.
type HTTPFetcher struct {
	base   *colly.Collector
	retry  *utils.RetryConfig
	logger *utils.Logger
}

// NewHTTPFetcher builds a fetcher whose requests time out after cfg.FetchTimeout
// and are retried only on timeouts.
func NewHTTPFetcher(cfg *config.Config, logger *utils.Logger) *HTTPFetcher {
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.Headers(map[string]string{
			"Accept":          "text/html,application/xhtml+xml",
			"Accept-Language": cfg.AcceptLanguage,
		}),
	)
	base.SetRequestTimeout(cfg.FetchTimeout)

	return &HTTPFetcher{
		base:   base,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.FetchRetries,
			BaseDelay:   2 * time.Second,
			RetryOn:     []utils.Kind{utils.KindTimeout},
			Logger:      logger,
		},
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	var body string
	err := f.retry.Do(ctx, "fetch "+url, func(ctx context.Context) error {
		var err error
		body, err = f.fetchOnce(ctx, url)
		return err
	})
	return body, err
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	c := f.base.Clone()
	c.Context = ctx

	var (
		body   []byte
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	op := "fetch " + url
	if err := c.Visit(url); err != nil {
		return "", classifyHTTP(op, status, err)
	}
	if len(body) == 0 {
		return "", utils.E(utils.KindNotFound, op, fmt.Errorf("empty body (status %d)", status))
	}
	f.logger.Debug("[fetcher] %s: %d bytes", url, len(body))
	return string(body), nil
}

func classifyHTTP(op string, status int, err error) error {
	switch {
	case utils.KindOf(err) == utils.KindTimeout:
		return utils.E(utils.KindTimeout, op, err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return utils.E(utils.KindTimeout, op, err)
	case status == http.StatusTooManyRequests || status >= 500:
		return utils.E(utils.KindTransport, op, err)
	case status >= 400:
		return utils.E(utils.KindPermanent, op, fmt.Errorf("status %d: %w", status, err))
	default:
		return utils.E(utils.KindTransport, op, err)
	}
}
