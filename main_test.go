package main

import (
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pricehound/config"
	"pricehound/scraper"
	"pricehound/utils"
)

func TestNewBackendsOrderAndKeys(t *testing.T) {
	backends, err := newBackends(config.DefaultSelectors(), scraper.Deps{Logger: utils.NewLoggerTo(io.Discard, "error")})
	if err != nil {
		t.Fatalf("newBackends: %v", err)
	}
	var names []string
	for _, b := range backends {
		names = append(names, b.Name())
	}
	want := []string{"ozon", "wildberries", "sbermegamarket"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("backend names (-want +got):\n%s", diff)
	}
}

func TestNewBackendsMissingSelectors(t *testing.T) {
	sel := config.DefaultSelectors()
	delete(sel.Marketplaces, "wildberries")
	if _, err := newBackends(sel, scraper.Deps{}); err == nil {
		t.Error("expected an error for a marketplace without selectors")
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	a := &app{cfg: &config.Config{StoreDriver: "mongo"}, logger: utils.NewLoggerTo(io.Discard, "error")}
	if _, err := a.openStore(); err == nil {
		t.Error("expected an error for an unknown driver")
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"title", "search", "track", "serve"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %s: got %v, %v", name, cmd, err)
		}
	}
}
