package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestTelegram(t *testing.T, handler http.HandlerFunc) *Telegram {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Telegram{
		botToken:            "123:abc",
		chatID:              "-100",
		disableNotification: true,
		apiBase:             srv.URL,
		client:              srv.Client(),
	}
}

func TestTelegramDeliver(t *testing.T) {
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot123:abc/sendVideo" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.FormValue("chat_id"); got != "-100" {
			t.Errorf("chat_id: %s", got)
		}
		if got := r.FormValue("caption"); got != "Front Door: Motion Detected" {
			t.Errorf("caption: %s", got)
		}
		if got := r.FormValue("disable_notification"); got != "true" {
			t.Errorf("disable_notification: %s", got)
		}
		if _, _, err := r.FormFile("video"); err != nil {
			t.Errorf("video part: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	})
	if err := tg.Deliver(context.Background(), []byte("mp4"), "Front Door: Motion Detected"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
}

func TestTelegramDeliverAPIError(t *testing.T) {
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	})
	err := tg.Deliver(context.Background(), []byte("mp4"), "caption")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
}

func TestTelegramDeliverHTTPError(t *testing.T) {
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	err := tg.Deliver(context.Background(), []byte("mp4"), "caption")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
}
