package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"pricehound/models"
	"pricehound/utils"
)

type recordingSender struct {
	mu     sync.Mutex
	err    error
	sent   []string
	images []string
}

func (s *recordingSender) Send(_ context.Context, recipient string, a *models.PriceAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, recipient)
	s.images = append(s.images, a.ImageURL)
	return s.err
}

func newTestDispatcher(chat, email Sender, client *http.Client) *Dispatcher {
	return NewDispatcher(&Transports{Chat: chat, Email: email}, NewValidator(client), utils.NewLoggerTo(io.Discard, "error"))
}

func TestDispatcherFansOut(t *testing.T) {
	chat, email := &recordingSender{}, &recordingSender{}
	d := newTestDispatcher(chat, email, nil)

	item := &models.TrackedItem{SubscriberID: "u1", ChatID: "100", Email: "u1@example.com"}
	alert := &models.PriceAlert{SubscriberID: "u1", OldPrice: 999, NewPrice: 899, URL: "https://shop.test/1"}
	if err := d.Notify(context.Background(), item, alert); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(chat.sent) != 1 || chat.sent[0] != "100" {
		t.Errorf("chat: got %v", chat.sent)
	}
	if len(email.sent) != 1 || email.sent[0] != "u1@example.com" {
		t.Errorf("email: got %v", email.sent)
	}
}

func TestDispatcherSkipsInvalidEmail(t *testing.T) {
	chat, email := &recordingSender{}, &recordingSender{}
	d := newTestDispatcher(chat, email, nil)

	item := &models.TrackedItem{SubscriberID: "u1", ChatID: "100", Email: "not-an-email"}
	alert := &models.PriceAlert{OldPrice: 999, NewPrice: 899, URL: "https://shop.test/1"}
	if err := d.Notify(context.Background(), item, alert); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(email.sent) != 0 || len(chat.sent) != 1 {
		t.Errorf("chat=%v email=%v", chat.sent, email.sent)
	}
}

func TestDispatcherDropsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	}))
	defer srv.Close()

	chat := &recordingSender{}
	d := newTestDispatcher(chat, nil, srv.Client())

	alert := &models.PriceAlert{OldPrice: 999, NewPrice: 899, URL: "https://shop.test/1", ImageURL: srv.URL + "/x.jpg"}
	if err := d.Notify(context.Background(), &models.TrackedItem{ChatID: "100"}, alert); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(chat.images) != 1 || chat.images[0] != "" {
		t.Errorf("image should be dropped, got %v", chat.images)
	}
	if alert.ImageURL == "" {
		t.Error("caller's alert must not be modified")
	}
}

func TestDispatcherErrors(t *testing.T) {
	failing := &recordingSender{err: errors.New("smtp down")}
	chat := &recordingSender{}
	d := newTestDispatcher(chat, failing, nil)
	alert := &models.PriceAlert{OldPrice: 999, NewPrice: 899, URL: "https://shop.test/1"}

	err := d.Notify(context.Background(), &models.TrackedItem{ChatID: "1", Email: "a@b.co"}, alert)
	if err == nil || len(chat.sent) != 1 {
		t.Errorf("one channel failing must not block the other: err=%v chat=%v", err, chat.sent)
	}

	err = d.Notify(context.Background(), &models.TrackedItem{SubscriberID: "u"}, alert)
	if !errors.Is(err, ErrNoRecipient) {
		t.Errorf("got %v, want ErrNoRecipient", err)
	}

	bad := &models.PriceAlert{OldPrice: 899, NewPrice: 899, URL: "https://shop.test/1"}
	if err := d.Notify(context.Background(), &models.TrackedItem{ChatID: "1"}, bad); !errors.Is(err, ErrInvalidAlert) {
		t.Errorf("got %v, want ErrInvalidAlert", err)
	}
}
