// Package delivery sends clips with captions to the notification channel.
package delivery

import (
	"context"
	"errors"
	"log/slog"
)

// ErrDeliveryFailed wraps transport failures to the notification channel.
// The affected event stays unmarked so a later poll cycle can retry it.
var ErrDeliveryFailed = errors.New("delivery failed")

type Sink interface {
	Deliver(ctx context.Context, clip []byte, caption string) error
}

// DryRun logs the intended delivery and sends nothing.
type DryRun struct {
	Logger *slog.Logger
}

func (d *DryRun) Deliver(_ context.Context, clip []byte, caption string) error {
	if d.Logger != nil {
		d.Logger.Info("dry run: would deliver clip", "caption", caption, "clip_bytes", len(clip))
	}
	return nil
}
