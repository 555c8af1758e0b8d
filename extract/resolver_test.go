package extract

import (
	"context"
	"errors"
	"io"
	"testing"

	"pricehound/fetcher"
	"pricehound/utils"
)

type fakeSource struct {
	pages map[fetcher.Mode]string
	errs  map[fetcher.Mode]error
	calls []fetcher.Mode
}

func (f *fakeSource) Fetch(_ context.Context, mode fetcher.Mode, _ string) (string, error) {
	f.calls = append(f.calls, mode)
	if err := f.errs[mode]; err != nil {
		return "", err
	}
	return f.pages[mode], nil
}

func newTestResolver(src DocumentSource) *Resolver {
	logger := utils.NewLoggerTo(io.Discard, "error")
	return NewResolver(src, NewCascade(logger), logger)
}

func TestResolveEndToEnd(t *testing.T) {
	src := &fakeSource{pages: map[fetcher.Mode]string{
		fetcher.Fast: `<html><head><meta property="og:title" content="Acme Fan — Best Price">
			<meta property="og:image" content="/img/fan.jpg"></head></html>`,
	}}
	page, err := newTestResolver(src).Resolve(context.Background(), "https://example-shop.test/item/42")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if page.Title != "Acme Fan" {
		t.Errorf("title: got %q, want %q", page.Title, "Acme Fan")
	}
	if page.ImageURL != "https://example-shop.test/img/fan.jpg" {
		t.Errorf("image: got %q", page.ImageURL)
	}
	if len(src.calls) != 1 || page.Mode != fetcher.Fast {
		t.Errorf("rendered path should not run when the fast path succeeds, calls=%v", src.calls)
	}
}

func TestResolveFallsBackToRendered(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeSource
	}{
		{
			name: "fast path has no title",
			src: &fakeSource{pages: map[fetcher.Mode]string{
				fetcher.Fast:     `<html><body><div id="app"></div></body></html>`,
				fetcher.Rendered: `<html><body><h1>Rendered Widget</h1></body></html>`,
			}},
		},
		{
			name: "fast path fails",
			src: &fakeSource{
				pages: map[fetcher.Mode]string{fetcher.Rendered: `<title>Rendered Widget</title>`},
				errs:  map[fetcher.Mode]error{fetcher.Fast: utils.E(utils.KindPermanent, "fetch", errors.New("403"))},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := newTestResolver(tt.src).Resolve(context.Background(), "https://shop.test/p/1")
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if page.Title != "Rendered Widget" || page.Mode != fetcher.Rendered {
				t.Errorf("got %+v", page)
			}
		})
	}
}

func TestResolveFailures(t *testing.T) {
	src := &fakeSource{pages: map[fetcher.Mode]string{}}
	r := newTestResolver(src)

	_, err := r.Resolve(context.Background(), "ftp://shop.test/p/1")
	if !utils.IsKind(err, utils.KindMalformed) {
		t.Errorf("bad scheme: got kind %v, want malformed", utils.KindOf(err))
	}
	if len(src.calls) != 0 {
		t.Errorf("no fetch expected for a malformed URL, got %v", src.calls)
	}

	_, err = r.Resolve(context.Background(), "https://shop.test/p/1")
	if !errors.Is(err, ErrTitleNotFound) {
		t.Errorf("got %v, want ErrTitleNotFound", err)
	}
	if len(src.calls) != 2 {
		t.Errorf("both paths should be tried, calls=%v", src.calls)
	}
}
