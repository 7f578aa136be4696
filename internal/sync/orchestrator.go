// Package sync drives the periodic poll cycle: fetch events per device,
// deliver the new ones in chronological order, and persist the ledger.
package sync

import (
	"context"
	"log/slog"
	"sort"
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

type Orchestrator struct {
	cfg      *config.Manager
	registry *device.Registry
	events   source.EventSource
	clips    source.ClipDownloader
	sink     delivery.Sink
	ledger   *ledger.Ledger
	captions *caption.Formatter
	store    storage.Store
	history  *history.Store
	stats    *metrics.Store
	logger   *slog.Logger
	kick     chan struct{}
}

func New(cfg *config.Manager, registry *device.Registry, events source.EventSource, clips source.ClipDownloader, sink delivery.Sink, led *ledger.Ledger, captions *caption.Formatter, store storage.Store, hist *history.Store, stats *metrics.Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: registry,
		events:   events,
		clips:    clips,
		sink:     sink,
		ledger:   led,
		captions: captions,
		store:    store,
		history:  hist,
		stats:    stats,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
}

// SyncNow requests an out-of-schedule cycle. Non-blocking; a request made
// while one is already pending is collapsed into it.
func (o *Orchestrator) SyncNow() {
	select {
	case o.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done, executing one cycle after the configured
// startup delay and then on every interval tick. The interval is re-read
// each cycle so config reloads take effect without restart.
func (o *Orchestrator) Run(ctx context.Context) {
	delay := o.cfg.Get().Sync.StartupDelay
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
	o.SyncAll(ctx)
	for {
		interval := o.cfg.Get().Sync.Interval
		select {
		case <-time.After(interval):
			o.SyncAll(ctx)
		case <-o.kick:
			o.SyncAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// SyncAll runs one cycle over every configured device. Device failures are
// isolated: one unreachable camera never blocks the rest of the cycle.
func (o *Orchestrator) SyncAll(ctx context.Context) {
	if !o.cfg.Get().Sync.Enabled {
		return
	}
	if o.logger != nil {
		o.logger.Info("syncing all camera devices", "devices", o.registry.Len())
	}
	for _, dev := range o.registry.All() {
		if ctx.Err() != nil {
			return
		}
		o.SyncDevice(ctx, dev)
	}
}

// SyncDevice processes one device for one cycle: fetch the lookback window,
// sort chronologically, deliver everything the ledger has not seen, then
// persist the ledger once. Running it twice with no new events delivers
// nothing the second time.
func (o *Orchestrator) SyncDevice(ctx context.Context, dev model.DeviceDescriptor) (sent, skipped int) {
	cfg := o.cfg.Get()
	now := time.Now().UTC()
	windowStart := now.Add(-cfg.Sync.Lookback)

	events, err := o.events.FetchEvents(ctx, dev, windowStart, now)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("event fetch failed, skipping device this cycle", "device_id", dev.InternalID, "err", err)
		}
		if o.stats != nil {
			o.stats.RecordCycle(dev.InternalID, 0, 0, 0, err.Error())
		}
		return 0, 0
	}
	if o.logger != nil {
		o.logger.Info("received camera events", "device_id", dev.InternalID, "count", len(events))
	}

	// Delivery order is chronological, not source-array order.
	sort.SliceStable(events, func(i, j int) bool { return events[i].StartTime.Before(events[j].StartTime) })

	failed := 0
	for _, ev := range events {
		id := ev.Identity()
		if o.ledger.Contains(id) {
			skipped++
			continue
		}
		clip, err := o.clips.DownloadClip(ctx, dev, ev.StartTime, ev.EndTime)
		if err != nil {
			// Not marked, so a later cycle retries this event.
			if o.logger != nil {
				o.logger.Warn("clip download failed", "device_id", dev.InternalID, "event_id", id, "err", err)
			}
			failed++
			continue
		}
		capn := o.captions.Caption(dev.DisplayName, ev.Kinds, ev.StartTime)
		if err := o.sink.Deliver(ctx, clip, capn); err != nil {
			if o.logger != nil {
				o.logger.Warn("delivery failed", "device_id", dev.InternalID, "event_id", id, "err", err)
			}
			failed++
			continue
		}
		o.ledger.Mark(id)
		sent++
		o.record(ctx, model.DeliveryRecord{
			Timestamp:  time.Now().UTC(),
			DeviceID:   dev.InternalID,
			DeviceName: dev.DisplayName,
			EventID:    id,
			Caption:    capn,
			Origin:     model.OriginPoll,
			ClipBytes:  len(clip),
		})
	}

	// One save per device, not per event.
	o.ledger.Persist()

	if o.stats != nil {
		o.stats.RecordCycle(dev.InternalID, sent, skipped, failed, "")
	}
	if o.logger != nil {
		o.logger.Info("device cycle complete", "device_id", dev.InternalID, "sent", sent, "skipped", skipped, "failed", failed)
	}
	return sent, skipped
}

func (o *Orchestrator) record(ctx context.Context, rec model.DeliveryRecord) {
	if o.history != nil {
		o.history.Add(rec)
	}
	if o.store != nil {
		if err := o.store.SaveDelivery(ctx, rec); err != nil && o.logger != nil {
			o.logger.Warn("could not persist delivery record", "event_id", rec.EventID, "err", err)
		}
	}
}
