// Package browser owns headless Chrome sessions. Every session is scoped: WithSession
// closes the tab and the browser process on all exit paths, including panics.
package browser

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"pricehound/config"
	"pricehound/utils"
)

// Options configures how a browser process is launched.
type Options struct {
	ChromeBin      string
	Headless       bool
	UserAgent      string
	AcceptLanguage string
	Logger         *utils.Logger
}

// OptionsFrom derives browser options from the application config.
func OptionsFrom(cfg *config.Config, logger *utils.Logger) Options {
	return Options{
		ChromeBin:      cfg.ChromeBin,
		Headless:       cfg.Headless,
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
		Logger:         logger,
	}
}

func (o Options) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	ua := o.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	opts = append(opts, chromedp.UserAgent(ua))
	if bin := FindChromeBinary(o.ChromeBin); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}
	return opts
}

func (o Options) debugf(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Debug("[browser] "+format, args...)
	}
}

// WithSession launches a browser, opens one tab and runs fn against the tab context.
// The tab and the browser are released before WithSession returns, whatever fn does.
func WithSession(ctx context.Context, opts Options, fn func(ctx context.Context) error) (err error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts.allocatorOptions()...)
	defer cancelAlloc()

	// Suppress chromedp log noise; its errors go to the debug log.
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}),
		chromedp.WithErrorf(opts.debugf),
	)
	defer cancelTab()

	defer func() {
		if r := recover(); r != nil {
			err = utils.E(utils.KindRenderer, "browser session", utils.PanicError(r))
		}
	}()

	if opts.AcceptLanguage != "" {
		headers := network.Headers{"Accept-Language": opts.AcceptLanguage}
		if err := chromedp.Run(tabCtx, network.Enable(), network.SetExtraHTTPHeaders(headers)); err != nil {
			return classify("browser start", err)
		}
	}

	return fn(tabCtx)
}

// Navigate loads url and waits until the document reports readyState "complete".
func Navigate(ctx context.Context, url string, readyTimeout time.Duration) error {
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		WaitReady(readyTimeout),
	)
	if err != nil {
		return classify("navigate "+url, err)
	}
	return nil
}

// WaitReady polls document.readyState until it is "complete" or timeout elapses.
func WaitReady(timeout time.Duration) chromedp.Action {
	var ready bool
	return chromedp.Poll(`document.readyState === "complete"`, &ready,
		chromedp.WithPollingTimeout(timeout),
		chromedp.WithPollingInterval(250*time.Millisecond),
	)
}

// ScrollUntilStable scrolls to the bottom repeatedly until the page height stops growing,
// maxRounds is reached or ctx ends.
func ScrollUntilStable(ctx context.Context, maxRounds int, pause time.Duration) error {
	return scrollLoop(ctx, maxRounds, pause, func() (int64, error) {
		var height int64
		err := chromedp.Run(ctx, chromedp.Evaluate(
			`window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight`, &height))
		return height, err
	})
}

func scrollLoop(ctx context.Context, maxRounds int, pause time.Duration, step func() (int64, error)) error {
	last := int64(-1)
	for round := 0; round < maxRounds; round++ {
		height, err := step()
		if err != nil {
			return classify("scroll", err)
		}
		if height == last {
			return nil
		}
		last = height

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(pause):
		}
	}
	return nil
}

// OuterHTML returns the serialized document of the current tab.
func OuterHTML(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", classify("outer html", err)
	}
	return html, nil
}

func classify(op string, err error) error {
	if utils.KindOf(err) == utils.KindTimeout {
		return utils.E(utils.KindTimeout, op, err)
	}
	return utils.E(utils.KindRenderer, op, err)
}

// FindChromeBinary locates a Chrome/Chromium binary. An explicitly configured path wins.
func FindChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
