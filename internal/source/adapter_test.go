package source

import (
	"testing"
	"time"

	"camsync/internal/model"
)

func TestParsePushMessage(t *testing.T) {
	data := []byte(`{
		"eventId": "ev-123",
		"timestamp": "2026-08-22T19:51:58.217Z",
		"resourceUpdate": {
			"name": "enterprises/proj/devices/DEVICE_A",
			"events": {
				"sdm.devices.events.CameraClipPreview.ClipPreview": {"previewUrl": "x"},
				"sdm.devices.events.CameraPerson.Person": {}
			}
		}
	}`)
	msg, err := ParsePushMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.EventID != "ev-123" {
		t.Fatalf("event id: %s", msg.EventID)
	}
	if msg.DeviceName != "DEVICE_A" {
		t.Fatalf("device name: %s", msg.DeviceName)
	}
	want := time.Date(2026, 8, 22, 19, 51, 58, 217000000, time.UTC)
	if !msg.Timestamp.Equal(want) {
		t.Fatalf("timestamp: %v", msg.Timestamp)
	}
	if !msg.HasClipReady() {
		t.Fatalf("clip-ready tag not detected")
	}
	foundPerson := false
	for _, k := range msg.Kinds {
		if k == model.KindPerson {
			foundPerson = true
		}
	}
	if !foundPerson {
		t.Fatalf("person tag missing: %v", msg.Kinds)
	}
}

func TestParsePushMessageCustomName(t *testing.T) {
	data := []byte(`{
		"eventId": "ev-1",
		"timestamp": "2026-08-22T19:51:58Z",
		"resourceUpdate": {
			"name": "enterprises/proj/devices/DEVICE_A",
			"traits": {"sdm.devices.traits.Info": {"customName": "Front Door"}},
			"events": {"sdm.devices.events.CameraMotion.Motion": {}}
		}
	}`)
	msg, err := ParsePushMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.DeviceName != "Front Door" {
		t.Fatalf("device name: %s", msg.DeviceName)
	}
	if msg.HasClipReady() {
		t.Fatalf("motion-only message must not report clip-ready")
	}
}

func TestParsePushMessageMissingEventID(t *testing.T) {
	if _, err := ParsePushMessage([]byte(`{"timestamp":"2026-08-22T19:51:58Z"}`)); err == nil {
		t.Fatalf("expected error for missing eventId")
	}
}

func TestParsePushMessageInvalidJSON(t *testing.T) {
	if _, err := ParsePushMessage([]byte(`{broken`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestParsePushMessageBadTimestamp(t *testing.T) {
	data := []byte(`{"eventId":"e","timestamp":"yesterday"}`)
	if _, err := ParsePushMessage(data); err == nil {
		t.Fatalf("expected timestamp error")
	}
}

func TestParseKindAliases(t *testing.T) {
	cases := map[string]model.EventKind{
		"Chime":         model.KindChime,
		"DoorbellChime": model.KindChime,
		"ClipPreview":   model.KindClipReady,
		"Person":        model.KindPerson,
		"garage_door":   model.EventKind("garage_door"),
	}
	for raw, want := range cases {
		if got := ParseKind(raw); got != want {
			t.Fatalf("ParseKind(%q) = %q, want %q", raw, got, want)
		}
	}
}
