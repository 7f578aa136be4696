// Package source defines the feed capabilities the sync pipeline consumes
// and normalizes raw feed records at the boundary.
package source

import (
	"context"
	"errors"
	"time"

	"camsync/internal/model"
)

// ErrSourceUnavailable wraps transport or auth failures talking to a feed.
// Callers skip the affected device or event and rely on the next cycle.
var ErrSourceUnavailable = errors.New("event source unavailable")

// EventSource fetches normalized events observed for a device in [start, end).
type EventSource interface {
	FetchEvents(ctx context.Context, dev model.DeviceDescriptor, start, end time.Time) ([]model.CameraEvent, error)
}

// ClipDownloader fetches the video clip covering [start, end] for a device.
type ClipDownloader interface {
	DownloadClip(ctx context.Context, dev model.DeviceDescriptor, start, end time.Time) ([]byte, error)
}
