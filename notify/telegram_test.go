package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pricehound/models"
	"pricehound/utils"
)

func testAlert() *models.PriceAlert {
	return &models.PriceAlert{SubscriberID: "u1", OldPrice: 999, NewPrice: 899, URL: "https://shop.test/1", ImageURL: "https://cdn.test/1.jpg"}
}

func TestTelegramSendsPhotoThenMessage(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
		last  map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		calls = append(calls, r.URL.Path)
		last = payload
		mu.Unlock()
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tg := NewTelegramTransport(srv.URL, "TOKEN", time.Second, utils.NewLoggerTo(io.Discard, "error"))
	if err := tg.Send(context.Background(), "100", testAlert()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	want := []string{"/botTOKEN/sendPhoto", "/botTOKEN/sendMessage"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls: got %v, want %v", calls, want)
	}
	if last["parse_mode"] != "MarkdownV2" || last["chat_id"] != "100" {
		t.Errorf("message payload: got %v", last)
	}
}

func TestTelegramRetriesOnlyTimeouts(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tg := NewTelegramTransport(srv.URL, "T", 100*time.Millisecond, utils.NewLoggerTo(io.Discard, "error"))
	tg.retry.BaseDelay = 10 * time.Millisecond
	a := testAlert()
	a.ImageURL = ""

	if err := tg.Send(context.Background(), "100", a); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := atomic.LoadInt64(&hits); got != 2 {
		t.Errorf("hits: got %d, want 2 (one timeout, one success)", got)
	}
}

func TestTelegramDoesNotRetryRejections(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	tg := NewTelegramTransport(srv.URL, "T", time.Second, utils.NewLoggerTo(io.Discard, "error"))
	a := testAlert()
	a.ImageURL = ""

	err := tg.Send(context.Background(), "100", a)
	if !utils.IsKind(err, utils.KindPermanent) || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("got %v, want permanent chat-not-found error", err)
	}
	if hits != 1 {
		t.Errorf("hits: got %d, want 1", hits)
	}
}
