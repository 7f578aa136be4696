package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"camsync/internal/model"
)

type Config struct {
	LogLevel string                   `json:"log_level" yaml:"log_level"`
	Devices  []model.DeviceDescriptor `json:"devices" yaml:"devices"`
	Sync     SyncConfig               `json:"sync" yaml:"sync"`
	Realtime RealtimeConfig           `json:"realtime" yaml:"realtime"`
	Ledger   LedgerConfig             `json:"ledger" yaml:"ledger"`
	Nest     NestConfig               `json:"nest" yaml:"nest"`
	Delivery DeliveryConfig           `json:"delivery" yaml:"delivery"`
	Storage  StorageConfig            `json:"storage" yaml:"storage"`
	API      APIConfig                `json:"api" yaml:"api"`
}

type SyncConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	Interval       time.Duration `json:"interval" yaml:"interval"`
	Lookback       time.Duration `json:"lookback" yaml:"lookback"`
	StartupDelay   time.Duration `json:"startup_delay" yaml:"startup_delay"`
	ForceResendAll bool          `json:"force_resend_all" yaml:"force_resend_all"`
}

type RealtimeConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
	PreRoll  time.Duration `json:"pre_roll" yaml:"pre_roll"`
	PostRoll time.Duration `json:"post_roll" yaml:"post_roll"`
	Kafka    KafkaConfig   `json:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type LedgerConfig struct {
	Path      string        `json:"path" yaml:"path"`
	Retention time.Duration `json:"retention" yaml:"retention"`
}

type NestConfig struct {
	APIBase     string `json:"api_base" yaml:"api_base"`
	AccessToken string `json:"access_token" yaml:"access_token"`
}

type DeliveryConfig struct {
	Mode                string `json:"mode" yaml:"mode"` // dryrun or telegram
	BotToken            string `json:"bot_token" yaml:"bot_token"`
	ChannelID           string `json:"channel_id" yaml:"channel_id"`
	DisableNotification bool   `json:"disable_notification" yaml:"disable_notification"`
	Timezone            string `json:"timezone" yaml:"timezone"`
	TimeFormat          string `json:"time_format" yaml:"time_format"` // 24h, 12h, or a Go layout
	PlainCaptions       bool   `json:"plain_captions" yaml:"plain_captions"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Sync: SyncConfig{
			Enabled:      true,
			Interval:     2 * time.Minute,
			Lookback:     3 * time.Hour,
			StartupDelay: 10 * time.Second,
		},
		Realtime: RealtimeConfig{
			Enabled:  false,
			Debounce: 30 * time.Second,
			PreRoll:  5 * time.Second,
			PostRoll: 55 * time.Second,
		},
		Ledger: LedgerConfig{
			Path:      "sent_events.json",
			Retention: 7 * 24 * time.Hour,
		},
		Nest: NestConfig{
			APIBase: "https://nest-camera-frontend.googleapis.com",
		},
		Delivery: DeliveryConfig{
			Mode:                "dryrun",
			DisableNotification: true,
			Timezone:            "UTC",
		},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:camsync.db?_pragma=busy_timeout(5000)"},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Sync.Interval <= 0 {
		cfg.Sync.Interval = 2 * time.Minute
	}
	if cfg.Sync.Lookback <= 0 {
		cfg.Sync.Lookback = 3 * time.Hour
	}
	if cfg.Sync.StartupDelay < 0 {
		cfg.Sync.StartupDelay = 0
	}
	if cfg.Realtime.Debounce <= 0 {
		cfg.Realtime.Debounce = 30 * time.Second
	}
	if cfg.Realtime.PreRoll <= 0 {
		cfg.Realtime.PreRoll = 5 * time.Second
	}
	if cfg.Realtime.PostRoll <= 0 {
		cfg.Realtime.PostRoll = 55 * time.Second
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "sent_events.json"
	}
	if cfg.Ledger.Retention <= 0 {
		cfg.Ledger.Retention = 7 * 24 * time.Hour
	}
	if cfg.Nest.APIBase == "" {
		cfg.Nest.APIBase = "https://nest-camera-frontend.googleapis.com"
	}
	if cfg.Delivery.Mode == "" {
		cfg.Delivery.Mode = "dryrun"
	}
	if cfg.Delivery.Timezone == "" {
		cfg.Delivery.Timezone = "UTC"
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if len(cfg.Devices) == 0 {
		return errors.New("at least one device must be configured")
	}
	for i, dev := range cfg.Devices {
		if strings.TrimSpace(dev.InternalID) == "" {
			return fmt.Errorf("devices[%d].internal_id is required", i)
		}
		if strings.TrimSpace(dev.DisplayName) == "" {
			return fmt.Errorf("devices[%d].display_name is required", i)
		}
	}
	if cfg.Realtime.Enabled {
		k := cfg.Realtime.Kafka
		if len(k.Brokers) == 0 || k.Topic == "" || k.GroupID == "" {
			return errors.New("realtime.kafka requires brokers, topic, group_id")
		}
	}
	switch strings.ToLower(cfg.Delivery.Mode) {
	case "dryrun":
	case "telegram":
		if cfg.Delivery.BotToken == "" || cfg.Delivery.ChannelID == "" {
			return errors.New("delivery.bot_token and delivery.channel_id required for telegram mode")
		}
	default:
		return fmt.Errorf("unsupported delivery.mode: %q", cfg.Delivery.Mode)
	}
	if cfg.Delivery.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Delivery.Timezone); err != nil {
			return fmt.Errorf("delivery.timezone: %w", err)
		}
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps an already-built config, for tests and embedding.
func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
