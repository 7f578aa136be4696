package nest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"camsync/internal/config"
	"camsync/internal/model"
	"camsync/internal/source"
)

const sampleManifest = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011">
  <Period programDateTime="2026-08-22T10:30:00.000Z" duration="PT12.5S"/>
  <Period programDateTime="2026-08-22T10:00:00.000Z" duration="PT5M"/>
</MPD>`

func testDevice() model.DeviceDescriptor {
	return model.DeviceDescriptor{InternalID: "DEVICE_A", DisplayName: "Front Door"}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(config.NestConfig{APIBase: srv.URL, AccessToken: "tok"}, nil, nil)
	return c, srv
}

func TestFetchEventsParsesManifest(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization header: %q", got)
		}
		q := r.URL.Query()
		if q.Get("types") != "4" || q.Get("variant") != "2" {
			t.Errorf("missing fixed query params: %v", q)
		}
		w.Write([]byte(sampleManifest))
	})

	events, err := c.FetchEvents(context.Background(), testDevice(), time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	// Sorted chronologically regardless of manifest order.
	if !events[0].StartTime.Before(events[1].StartTime) {
		t.Fatalf("events not sorted: %v, %v", events[0].StartTime, events[1].StartTime)
	}
	// 5-minute period is clamped to one minute.
	if d := events[0].EndTime.Sub(events[0].StartTime); d != time.Minute {
		t.Fatalf("duration not clamped: %v", d)
	}
	if d := events[1].EndTime.Sub(events[1].StartTime); d != 12500*time.Millisecond {
		t.Fatalf("fractional duration: %v", d)
	}
	if events[0].DeviceID != "DEVICE_A" || events[0].Origin != model.OriginPoll {
		t.Fatalf("event metadata: %+v", events[0])
	}
}

func TestFetchEventsServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.FetchEvents(context.Background(), testDevice(), time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, source.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestDownloadClipSendsMillisecondWindow(t *testing.T) {
	start := time.Date(2026, 8, 22, 10, 30, 0, 0, time.UTC)
	end := start.Add(20 * time.Second)
	clip := []byte("mp4-bytes")
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("start_time") != "1787394600000" {
			t.Errorf("start_time: %s", q.Get("start_time"))
		}
		if q.Get("end_time") != "1787394620000" {
			t.Errorf("end_time: %s", q.Get("end_time"))
		}
		w.Write(clip)
	})
	got, err := c.DownloadClip(context.Background(), testDevice(), start, end)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !bytes.Equal(got, clip) {
		t.Fatalf("clip bytes mismatch")
	}
}

func TestParseISODuration(t *testing.T) {
	cases := map[string]time.Duration{
		"PT19S":    19 * time.Second,
		"PT19.5S":  19500 * time.Millisecond,
		"PT1M":     time.Minute,
		"PT1M30S":  90 * time.Second,
		"PT1H2M3S": time.Hour + 2*time.Minute + 3*time.Second,
	}
	for in, want := range cases {
		got, err := parseISODuration(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "12S", "PT", "PTXS"} {
		if _, err := parseISODuration(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
