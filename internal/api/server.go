package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"camsync/internal/config"
	"camsync/internal/history"
	"camsync/internal/ledger"
	"camsync/internal/metrics"
	"camsync/internal/model"
)

// SyncControl triggers an out-of-schedule poll cycle.
type SyncControl interface {
	SyncNow()
}

// PushInjector hands a raw push record to the realtime pipeline. Exposed
// over HTTP as an alternative transport to the Kafka feed and as a testing
// aid.
type PushInjector interface {
	Dispatch(ctx context.Context, raw []byte)
}

type Server struct {
	cfg     *config.Manager
	stats   *metrics.Store
	history *history.Store
	ledger  *ledger.Ledger
	syncer  SyncControl
	pusher  PushInjector
	logger  *slog.Logger
	version string
	started time.Time
}

type statusResponse struct {
	Status     string         `json:"status"`
	Time       string         `json:"time"`
	Version    string         `json:"version"`
	UptimeSec  int64          `json:"uptime_sec"`
	ConfigPath string         `json:"config_path"`
	Devices    int            `json:"devices"`
	LedgerSize int            `json:"ledger_size"`
	Sync       syncStatus     `json:"sync"`
	Realtime   realtimeStatus `json:"realtime"`
	Delivery   string         `json:"delivery_mode"`
}

type syncStatus struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval"`
	Lookback string `json:"lookback"`
}

type realtimeStatus struct {
	Enabled  bool   `json:"enabled"`
	Debounce string `json:"debounce"`
}

func Start(ctx context.Context, cfg *config.Manager, stats *metrics.Store, hist *history.Store, led *ledger.Ledger, syncer SyncControl, pusher PushInjector, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		stats:   stats,
		history: hist,
		ledger:  led,
		syncer:  syncer,
		pusher:  pusher,
		logger:  logger,
		version: version,
		started: time.Now().UTC(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.handleHealth)
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/metrics", server.handleMetrics)
	mux.HandleFunc("/metrics/", server.handleMetrics)
	mux.HandleFunc("/deliveries", server.handleDeliveries)
	mux.HandleFunc("/sync", server.handleSync)
	mux.HandleFunc("/push", server.handlePush)

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	ledgerSize := 0
	if s.ledger != nil {
		ledgerSize = s.ledger.Len()
	}
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		UptimeSec:  int64(time.Since(s.started).Seconds()),
		ConfigPath: s.cfg.Path(),
		Devices:    len(cfg.Devices),
		LedgerSize: ledgerSize,
		Sync: syncStatus{
			Enabled:  cfg.Sync.Enabled,
			Interval: cfg.Sync.Interval.String(),
			Lookback: cfg.Sync.Lookback.String(),
		},
		Realtime: realtimeStatus{
			Enabled:  cfg.Realtime.Enabled,
			Debounce: cfg.Realtime.Debounce.String(),
		},
		Delivery: cfg.Delivery.Mode,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.stats == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/metrics")
	path = strings.TrimPrefix(path, "/")
	if path != "" {
		stats, ok := s.stats.Get(path)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"device_id": path,
			"stats":     stats,
		})
		return
	}
	all := s.stats.GetAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": all,
		"count":   len(all),
	})
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []model.DeliveryRecord
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.history.Since(ts)
	} else {
		list = s.history.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deliveries": list,
		"count":      len(list),
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.syncer == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	s.syncer.SyncNow()
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "sync scheduled"})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.pusher == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil || len(body) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.pusher.Dispatch(r.Context(), body)
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
