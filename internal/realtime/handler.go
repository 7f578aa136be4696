// Package realtime consumes push notifications and delivers clips for them.
// Each push message is handled as an independent unit of concurrency; the
// ledger is the only shared state and is only touched through its own lock.
package realtime

import (
	"context"
	"log/slog"
	"time"

	"camsync/internal/caption"
	"camsync/internal/config"
	"camsync/internal/delivery"
	"camsync/internal/device"
	"camsync/internal/history"
	"camsync/internal/ledger"
	"camsync/internal/metrics"
	"camsync/internal/model"
	"camsync/internal/source"
	"camsync/internal/storage"
)

// Outcome is the terminal state of one push message.
type Outcome string

const (
	OutcomeDelivered      Outcome = "delivered"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeDeviceNotFound Outcome = "device-not-found"
	OutcomeDownloadFailed Outcome = "download-failed"
	OutcomeDeliveryFailed Outcome = "delivery-failed"
	OutcomeIgnored        Outcome = "ignored"
	OutcomeCanceled       Outcome = "canceled"
)

type Handler struct {
	cfg      *config.Manager
	registry *device.Registry
	clips    source.ClipDownloader
	sink     delivery.Sink
	ledger   *ledger.Ledger
	captions *caption.Formatter
	store    storage.Store
	history  *history.Store
	stats    *metrics.Store
	logger   *slog.Logger
}

func NewHandler(cfg *config.Manager, registry *device.Registry, clips source.ClipDownloader, sink delivery.Sink, led *ledger.Ledger, captions *caption.Formatter, store storage.Store, hist *history.Store, stats *metrics.Store, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		registry: registry,
		clips:    clips,
		sink:     sink,
		ledger:   led,
		captions: captions,
		store:    store,
		history:  hist,
		stats:    stats,
		logger:   logger,
	}
}

// Handle runs the stage machine for one push message:
//
//	filter -> dedup (mark first) -> device resolution -> debounce ->
//	download -> caption -> deliver
//
// The ledger mark happens before the debounce so a second push for the same
// event, arriving while the first is still waiting, terminates as a
// duplicate. Failure states roll the mark back so a later poll cycle can
// still pick the event up.
func (h *Handler) Handle(ctx context.Context, msg model.PushMessage) Outcome {
	// A physical event produces several messages; only the one carrying the
	// clip-ready sentinel has a downloadable clip behind it.
	if !msg.HasClipReady() {
		h.log(slog.LevelDebug, "push message without clip-ready tag ignored", msg, nil)
		return OutcomeIgnored
	}

	if !h.ledger.CheckAndMark(msg.EventID) {
		h.log(slog.LevelDebug, "duplicate push event", msg, nil)
		return OutcomeDuplicate
	}

	dev, err := h.registry.Resolve(msg.DeviceName)
	if err != nil {
		h.ledger.Forget(msg.EventID)
		h.log(slog.LevelWarn, "push event for unconfigured device", msg, err)
		return OutcomeDeviceNotFound
	}

	cfg := h.cfg.Get().Realtime

	// Give the backend time to finish encoding the clip. This runs inside
	// the per-message goroutine and holds no locks, so concurrent messages
	// and the poll cycle proceed freely.
	select {
	case <-time.After(cfg.Debounce):
	case <-ctx.Done():
		h.ledger.Forget(msg.EventID)
		return OutcomeCanceled
	}

	start := msg.Timestamp.Add(-cfg.PreRoll)
	end := msg.Timestamp.Add(cfg.PostRoll)
	clip, err := h.clips.DownloadClip(ctx, dev, start, end)
	if err != nil {
		h.ledger.Forget(msg.EventID)
		h.log(slog.LevelWarn, "push clip download failed", msg, err)
		return OutcomeDownloadFailed
	}

	capn := h.captions.Caption(dev.DisplayName, msg.Kinds, msg.Timestamp)
	if err := h.sink.Deliver(ctx, clip, capn); err != nil {
		h.ledger.Forget(msg.EventID)
		h.log(slog.LevelWarn, "push delivery failed", msg, err)
		return OutcomeDeliveryFailed
	}

	h.ledger.Persist()
	if h.stats != nil {
		h.stats.RecordPush(dev.InternalID)
	}
	rec := model.DeliveryRecord{
		Timestamp:  time.Now().UTC(),
		DeviceID:   dev.InternalID,
		DeviceName: dev.DisplayName,
		EventID:    msg.EventID,
		Caption:    capn,
		Origin:     model.OriginPush,
		ClipBytes:  len(clip),
	}
	if h.history != nil {
		h.history.Add(rec)
	}
	if h.store != nil {
		if err := h.store.SaveDelivery(ctx, rec); err != nil {
			h.log(slog.LevelWarn, "could not persist delivery record", msg, err)
		}
	}
	h.log(slog.LevelInfo, "push event delivered", msg, nil)
	return OutcomeDelivered
}

func (h *Handler) log(level slog.Level, text string, msg model.PushMessage, err error) {
	if h.logger == nil {
		return
	}
	attrs := []any{"event_id", msg.EventID, "device_name", msg.DeviceName}
	if err != nil {
		attrs = append(attrs, "err", err)
	}
	h.logger.Log(context.Background(), level, text, attrs...)
}
