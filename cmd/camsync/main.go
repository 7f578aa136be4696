package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"camsync/internal/api"
	"camsync/internal/caption"
	"camsync/internal/config"
	"camsync/internal/delivery"
	"camsync/internal/device"
	"camsync/internal/history"
	"camsync/internal/ledger"
	"camsync/internal/logging"
	"camsync/internal/metrics"
	"camsync/internal/nest"
	"camsync/internal/realtime"
	"camsync/internal/storage"
	"camsync/internal/sync"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (json or yaml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("camsync", version)
		return
	}

	cfgMgr, err := config.NewManager(config.ResolvePath(*configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	cfg := cfgMgr.Get()
	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("camsync starting",
		"version", version,
		"config", cfgMgr.Path(),
		"devices", len(cfg.Devices),
		"delivery_mode", cfg.Delivery.Mode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := device.NewRegistry(cfg.Devices)

	led := ledger.New(cfg.Ledger.Path, cfg.Ledger.Retention, logger.With("component", "ledger"))
	if cfg.Sync.ForceResendAll {
		logger.Warn("force_resend_all set, starting with an empty ledger; every event in the lookback window will be re-delivered")
	} else {
		n := led.Load()
		logger.Info("ledger loaded", "path", cfg.Ledger.Path, "entries", n)
	}

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage setup failed", "err", err)
		os.Exit(1)
	}
	if store != nil {
		if err := store.Init(ctx); err != nil {
			logger.Error("storage init failed", "driver", cfg.Storage.Driver, "err", err)
			os.Exit(1)
		}
		logger.Info("delivery audit store enabled", "driver", cfg.Storage.Driver)
		defer store.Close()
	}

	nestClient := nest.NewClient(cfg.Nest, nil, logger.With("component", "nest"))
	logger.Info("nest source configured",
		"api_base", cfg.Nest.APIBase,
		"token", logging.MaskToken(cfg.Nest.AccessToken),
	)

	var sink delivery.Sink
	switch cfg.Delivery.Mode {
	case "telegram":
		sink = delivery.NewTelegram(cfg.Delivery.BotToken, cfg.Delivery.ChannelID, cfg.Delivery.DisableNotification, logger.With("component", "delivery"))
		logger.Info("telegram delivery configured",
			"channel_id", cfg.Delivery.ChannelID,
			"token", logging.MaskToken(cfg.Delivery.BotToken),
		)
	default:
		sink = &delivery.DryRun{Logger: logger.With("component", "delivery")}
		logger.Info("dry run delivery configured, clips will not be sent")
	}

	captions := caption.NewFormatter(!cfg.Delivery.PlainCaptions, cfg.Delivery.Timezone, cfg.Delivery.TimeFormat)
	hist := history.NewStore(0)
	stats := metrics.NewStore()

	orch := sync.New(cfgMgr, registry, nestClient, nestClient, sink, led, captions, store, hist, stats, logger.With("component", "sync"))
	go orch.Run(ctx)

	handler := realtime.NewHandler(cfgMgr, registry, nestClient, sink, led, captions, store, hist, stats, logger.With("component", "realtime"))
	listener := realtime.NewListener(cfgMgr, handler, logger.With("component", "realtime"))
	listener.Start(ctx)

	api.Start(ctx, cfgMgr, stats, hist, led, orch, listener, logger.With("component", "api"), version)

	if cfgMgr.Path() != "" {
		go cfgMgr.Watch(3*time.Second,
			func(c *config.Config) {
				// Reload picks up timings, flags and the device set. The
				// delivery sink and source credentials are fixed at startup
				// and need a restart to change.
				registry.Replace(c.Devices)
				logger.Info("config reloaded", "devices", len(c.Devices))
			},
			func(err error) { logger.Warn("config reload failed", "err", err) },
			ctx.Done(),
		)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting down", "signal", s.String())

	cancel()
	// Cancel stops the consume loop, scheduler and API; in-flight push
	// handlers run on a detached context and finish delivering here.
	listener.Wait()
	led.Persist()
	logger.Info("camsync stopped")
}
