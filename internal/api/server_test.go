package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"camsync/internal/caption"
	"camsync/internal/config"
	"camsync/internal/device"
	"camsync/internal/history"
	"camsync/internal/ledger"
	"camsync/internal/metrics"
	"camsync/internal/model"
	"camsync/internal/realtime"
)

type stubClips struct{}

func (stubClips) DownloadClip(_ context.Context, _ model.DeviceDescriptor, _, _ time.Time) ([]byte, error) {
	return []byte("clip"), nil
}

type countingSink struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSink) Deliver(_ context.Context, _ []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// The /push endpoint answers 202 before the handler has run its debounce, so
// the injected event must not die with the request context.
func TestPushEndpointDeliversAfterResponse(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Devices = []model.DeviceDescriptor{
		{InternalID: "DEVICE_A", DisplayName: "Front Door"},
	}
	cfg.Realtime.Debounce = 50 * time.Millisecond
	cfgMgr := config.NewStaticManager(cfg)

	led := ledger.New(filepath.Join(t.TempDir(), "sent.json"), ledger.DefaultRetention, nil)
	sink := &countingSink{}
	fmtter := &caption.Formatter{Location: time.UTC, TimeLayout: caption.Format24H}
	handler := realtime.NewHandler(cfgMgr, device.NewRegistry(cfg.Devices), stubClips{}, sink, led, fmtter, nil, history.NewStore(10), metrics.NewStore(), nil)
	listener := realtime.NewListener(cfgMgr, handler, nil)

	s := &Server{cfg: cfgMgr, pusher: listener}
	srv := httptest.NewServer(http.HandlerFunc(s.handlePush))
	defer srv.Close()

	record := `{
		"eventId": "ev-http-1",
		"timestamp": "2026-08-22T19:51:58Z",
		"resourceUpdate": {
			"name": "enterprises/proj/devices/cam",
			"traits": {"sdm.devices.traits.Info": {"customName": "Front Door"}},
			"events": {
				"sdm.devices.events.CameraClipPreview.ClipPreview": {},
				"sdm.devices.events.CameraPerson.Person": {}
			}
		}
	}`
	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(record))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	listener.Wait()
	if sink.count() != 1 {
		t.Fatalf("deliveries: %d, want 1", sink.count())
	}
	if !led.Contains("ev-http-1") {
		t.Fatalf("delivered event must stay marked")
	}
}

func TestPushEndpointRejectsEmptyBody(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Devices = []model.DeviceDescriptor{
		{InternalID: "DEVICE_A", DisplayName: "Front Door"},
	}
	cfgMgr := config.NewStaticManager(cfg)
	handler := realtime.NewHandler(cfgMgr, device.NewRegistry(cfg.Devices), stubClips{}, &countingSink{}, ledger.New(filepath.Join(t.TempDir(), "sent.json"), ledger.DefaultRetention, nil), &caption.Formatter{}, nil, nil, nil, nil)
	listener := realtime.NewListener(cfgMgr, handler, nil)

	s := &Server{cfg: cfgMgr, pusher: listener}
	srv := httptest.NewServer(http.HandlerFunc(s.handlePush))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(""))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}
