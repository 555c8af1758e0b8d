package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"pricehound/extract"
	"pricehound/fetcher"
	"pricehound/models"
	"pricehound/notify"
	"pricehound/services"
	"pricehound/utils"
)

type fakeTitles struct{}

func (fakeTitles) Resolve(_ context.Context, url string) (*extract.Page, error) {
	if _, err := fetcher.ValidateURL(url); err != nil {
		return nil, err
	}
	if strings.Contains(url, "blank") {
		return nil, utils.E(utils.KindNotFound, "resolve", extract.ErrTitleNotFound)
	}
	return &extract.Page{URL: url, Title: "Acme Fan"}, nil
}

type fakeSearch struct{ query string }

func (f *fakeSearch) Aggregate(_ context.Context, query string) models.AggregatedResult {
	f.query = query
	return models.AggregatedResult{
		"ozon":           {{Title: "Acme Fan", Price: decimal.NewFromInt(999), Link: "https://ozon.test/1", ExternalID: "1"}},
		"wildberries":    {},
		"sbermegamarket": {},
	}
}

type fakeTracking struct {
	registered map[string]bool
	priceErr   bool
}

func (f *fakeTracking) Register(_ context.Context, req services.TrackRequest) (*models.PriceSample, error) {
	if f.priceErr {
		return nil, errors.Join(services.ErrPriceUnavailable, errors.New("no price element"))
	}
	key := models.TrackingKey(req.SubscriberID, req.URL)
	if f.registered[key] {
		return nil, services.ErrAlreadyTracked
	}
	f.registered[key] = true
	return &models.PriceSample{URL: req.URL, SubscriberID: req.SubscriberID, Price: 999, Title: "Acme Fan"}, nil
}

func (f *fakeTracking) Unregister(_ context.Context, sub, url string) error {
	key := models.TrackingKey(sub, url)
	if !f.registered[key] {
		return services.ErrNotTracked
	}
	delete(f.registered, key)
	return nil
}

func (f *fakeTracking) Tracked() []*models.TrackedItem {
	var out []*models.TrackedItem
	for key := range f.registered {
		sub, url, _ := strings.Cut(key, "|")
		out = append(out, &models.TrackedItem{SubscriberID: sub, URL: url})
	}
	return out
}

func newTestServer() (*Server, *fakeSearch, *fakeTracking) {
	search := &fakeSearch{}
	tracking := &fakeTracking{registered: map[string]bool{}}
	s := New(":0", Deps{
		Titles:  fakeTitles{},
		Search:  search,
		Tracker: tracking,
		Logger:  utils.NewLoggerTo(io.Discard, "error"),
	})
	return s, search, tracking
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer()
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"status": "healthy", "message": "API is running"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	s, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id: got %q, want abc-123", got)
	}
}

func TestScrapeProducts(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"ok", `{"url":"https://example-shop.test/item/42"}`, http.StatusOK},
		{"bad scheme", `{"url":"ftp://example-shop.test/item/42"}`, http.StatusBadRequest},
		{"no title", `{"url":"https://example-shop.test/blank"}`, http.StatusBadRequest},
		{"missing url", `{}`, http.StatusBadRequest},
		{"not json", `url=x`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, search, _ := newTestServer()
			rec := do(t, s.Handler(), http.MethodPost, "/scrape-products", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status: got %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			if search.query != "Acme Fan" {
				t.Errorf("query: got %q, want Acme Fan", search.query)
			}
			var got map[string][]map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			for _, key := range []string{"ozon", "wildberries", "sbermegamarket"} {
				if _, ok := got[key]; !ok {
					t.Errorf("key %s missing", key)
				}
			}
			if len(got["ozon"]) != 1 {
				t.Errorf("ozon: got %d listings, want 1", len(got["ozon"]))
			}
		})
	}
}

func TestTrackPriceLifecycle(t *testing.T) {
	s, _, _ := newTestServer()
	h := s.Handler()
	body := `{"url":"https://example-shop.test/item/42","user_id":"u1","chat_id":"100"}`

	rec := do(t, h, http.MethodPost, "/track-price", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("register: got %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var resp trackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.InitialPrice != 999 || resp.Title != "Acme Fan" {
		t.Errorf("response: got %+v", resp)
	}

	if rec := do(t, h, http.MethodPost, "/track-price", body); rec.Code != http.StatusConflict {
		t.Errorf("duplicate: got %d, want 409", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/tracked", "")
	var items []models.TrackedItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil || len(items) != 1 {
		t.Errorf("tracked: got %d items (%v), want 1", len(items), err)
	}

	untrack := `{"url":"https://example-shop.test/item/42","user_id":"u1"}`
	if rec := do(t, h, http.MethodDelete, "/track-price", untrack); rec.Code != http.StatusNoContent {
		t.Errorf("untrack: got %d, want 204", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/track-price", untrack); rec.Code != http.StatusNotFound {
		t.Errorf("second untrack: got %d, want 404", rec.Code)
	}
}

func TestTrackPriceUnavailable(t *testing.T) {
	s, _, tracking := newTestServer()
	tracking.priceErr = true

	rec := do(t, s.Handler(), http.MethodPost, "/track-price", `{"url":"https://example-shop.test/item/42","user_id":"u1"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want 422", rec.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || got["error"] == "" {
		t.Errorf("body: got %s, want an error message", rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer()
	if rec := do(t, s.Handler(), http.MethodGet, "/track-price", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rec.Code)
	}
}

type sentAlert struct {
	channel   notify.Channel
	recipient string
	alert     *models.PriceAlert
}

type fakeSender struct {
	sent []sentAlert
	err  error
}

func (f *fakeSender) SendAlert(_ context.Context, channel notify.Channel, recipient string, a *models.PriceAlert) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentAlert{channel, recipient, a})
	return nil
}

func newAlertServer(t *testing.T) (http.Handler, *fakeSender, string) {
	t.Helper()
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
	}))
	t.Cleanup(images.Close)

	sender := &fakeSender{}
	s := New(":0", Deps{
		Alerts:  sender,
		Checker: notify.NewValidator(images.Client()),
		Logger:  utils.NewLoggerTo(io.Discard, "error"),
	})
	return s.Handler(), sender, images.URL
}

func alertBody(image string, oldPrice, newPrice float64, extra string) string {
	b, _ := json.Marshal(map[string]any{
		"username":  "Ann",
		"old_price": oldPrice,
		"new_price": newPrice,
		"url":       "https://example-shop.test/item/42",
		"image":     image,
	})
	if extra == "" {
		return string(b)
	}
	return strings.TrimSuffix(string(b), "}") + "," + extra + "}"
}

func TestSendAlert(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		image     string
		from, to  float64
		extra     string
		status    int
		recipient string
	}{
		{"telegram ok", "/send-telegram-alert", "/fan.jpg", 1200, 999, `"userid":"100"`, http.StatusOK, "100"},
		{"telegram without chat id", "/send-telegram-alert", "/fan.jpg", 1200, 999, "", http.StatusBadRequest, ""},
		{"price rose", "/send-telegram-alert", "/fan.jpg", 999, 1200, `"userid":"100"`, http.StatusBadRequest, ""},
		{"negative price", "/send-telegram-alert", "/fan.jpg", 1200, -1, `"userid":"100"`, http.StatusBadRequest, ""},
		{"image missing", "/send-telegram-alert", "/missing.jpg", 1200, 999, `"userid":"100"`, http.StatusBadRequest, ""},
		{"email ok", "/send-email-alert", "/fan.jpg", 1200, 999, `"email":"ann@example.test"`, http.StatusOK, "ann@example.test"},
		{"bad email", "/send-email-alert", "/fan.jpg", 1200, 999, `"email":"ann-at-example"`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, sender, images := newAlertServer(t)
			rec := do(t, h, http.MethodPost, tt.path, alertBody(images+tt.image, tt.from, tt.to, tt.extra))
			if rec.Code != tt.status {
				t.Fatalf("status: got %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				if len(sender.sent) != 0 {
					t.Errorf("sent: got %d alerts, want 0", len(sender.sent))
				}
				return
			}
			if len(sender.sent) != 1 {
				t.Fatalf("sent: got %d alerts, want 1", len(sender.sent))
			}
			if got := sender.sent[0].recipient; got != tt.recipient {
				t.Errorf("recipient: got %q, want %q", got, tt.recipient)
			}
			var resp alertResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Message == "" || resp.TelegramMessage == "" && resp.EmailMessage == "" {
				t.Errorf("response: got %+v", resp)
			}
		})
	}
}

func TestSendAlertChannelFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"disabled", fmt.Errorf("chat: %w", notify.ErrChannelDisabled), http.StatusServiceUnavailable},
		{"transport", errors.New("telegram: 502"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, sender, images := newAlertServer(t)
			sender.err = tt.err
			rec := do(t, h, http.MethodPost, "/send-telegram-alert", alertBody(images+"/fan.jpg", 1200, 999, `"userid":"100"`))
			if rec.Code != tt.status {
				t.Errorf("status: got %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}
