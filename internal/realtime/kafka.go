package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"

	"camsync/internal/config"
	"camsync/internal/source"
)

// Listener consumes raw push records from Kafka and dispatches one goroutine
// per message, so acknowledgment and the per-message debounce never
// serialize unrelated events.
type Listener struct {
	cfg     *config.Manager
	handler *Handler
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewListener(cfg *config.Manager, handler *Handler, logger *slog.Logger) *Listener {
	return &Listener{cfg: cfg, handler: handler, logger: logger}
}

// Start launches the consume loop; it returns immediately. Returns false
// when the realtime feed is disabled in config.
func (l *Listener) Start(ctx context.Context) bool {
	current := l.cfg.Get().Realtime
	if !current.Enabled {
		if l.logger != nil {
			l.logger.Info("realtime push feed disabled")
		}
		return false
	}
	if l.logger != nil {
		l.logger.Info("realtime push feed enabled",
			"brokers", current.Kafka.Brokers,
			"topic", current.Kafka.Topic,
			"group_id", current.Kafka.GroupID,
		)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Kafka.Brokers,
		Topic:    current.Kafka.Topic,
		GroupID:  current.Kafka.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if l.logger != nil {
					l.logger.Warn("kafka read error", "err", err)
				}
				continue
			}
			l.Dispatch(ctx, m.Value)
		}
	}()
	return true
}

// Dispatch parses one raw push record and hands it to the handler on its own
// goroutine. Parse failures are logged and dropped; they never reach the
// handler.
//
// The handler context is detached from the caller's cancellation: the caller's
// context ends when the HTTP injection request returns or when shutdown stops
// the consume loop, while an accepted message must survive its debounce and
// finish delivering. In-flight handlers are bounded by Wait instead.
func (l *Listener) Dispatch(ctx context.Context, raw []byte) {
	msg, err := source.ParsePushMessage(raw)
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("invalid push record", "err", err)
		}
		return
	}
	handleCtx := context.WithoutCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.handler.Handle(handleCtx, msg)
	}()
}

// Wait blocks until the consume loop and all in-flight message handlers have
// finished. Called during shutdown so in-flight deliveries complete.
func (l *Listener) Wait() {
	l.wg.Wait()
}
