package model

import (
	"fmt"
	"time"
)

// EventKind is a normalized camera event type tag. Both feeds report raw
// vendor strings; the adapter maps the known ones onto these values and
// passes unknown tags through verbatim.
type EventKind string

const (
	KindChime   EventKind = "chime"
	KindPackage EventKind = "package"
	KindPerson  EventKind = "person"
	KindAnimal  EventKind = "animal"
	KindVehicle EventKind = "vehicle"
	KindMotion  EventKind = "motion"
	KindSound   EventKind = "sound"

	// KindClipReady is the sentinel the push feed attaches to the final
	// message of a physical event, once the clip is encoded and
	// downloadable. It never appears in a caption.
	KindClipReady EventKind = "clippreview"
)

// CameraEvent is a normalized event from the poll feed. EndTime >= StartTime.
type CameraEvent struct {
	DeviceID  string      `json:"device_id"`
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
	Kinds     []EventKind `json:"kinds,omitempty"`
	Origin    string      `json:"origin,omitempty"`
}

// Identity derives the poll-scheme ledger key. Millisecond precision matches
// what the vendor API reports. The push feed keys the ledger with its own
// opaque ids, so the two schemes never collide.
func (e CameraEvent) Identity() string {
	return fmt.Sprintf("%d->%d|%s", e.StartTime.UnixMilli(), e.EndTime.UnixMilli(), e.DeviceID)
}

// PushMessage is a validated push-feed record.
type PushMessage struct {
	EventID    string      `json:"event_id"`
	Timestamp  time.Time   `json:"timestamp"`
	DeviceName string      `json:"device_name"`
	Kinds      []EventKind `json:"kinds,omitempty"`
}

// HasClipReady reports whether the message carries the clip-ready sentinel.
func (m PushMessage) HasClipReady() bool {
	for _, k := range m.Kinds {
		if k == KindClipReady {
			return true
		}
	}
	return false
}

// DeviceDescriptor identifies a physical camera across the two source ID
// spaces. AlternateID is the id used by the poll feed's metadata endpoint;
// it may be empty when the account exposes only one id.
type DeviceDescriptor struct {
	InternalID  string `json:"internal_id" yaml:"internal_id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	AlternateID string `json:"alternate_id,omitempty" yaml:"alternate_id,omitempty"`
}

// DeliveryRecord is the audit entry recorded after a successful delivery.
type DeliveryRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	EventID    string    `json:"event_id"`
	Caption    string    `json:"caption"`
	Origin     string    `json:"origin"`
	ClipBytes  int       `json:"clip_bytes"`
}

const (
	OriginPoll = "poll"
	OriginPush = "push"
)
