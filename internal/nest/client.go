// Package nest implements the poll feed against the vendor camera API: event
// discovery via the DASH manifest endpoint and clip download by time window.
package nest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"camsync/internal/config"
	"camsync/internal/model"
	"camsync/internal/source"
)

const (
	eventsPath = "/dashmanifest/namespace/nest-phoenix-prod/device/"
	clipPath   = "/mp4clip/namespace/nest-phoenix-prod/device/"

	// The vendor reports at most one minute of footage per manifest period;
	// longer durations are clamped.
	maxEventDuration = time.Minute
)

// TokenFunc supplies a bearer token per request. Credential refresh lives
// outside this package.
type TokenFunc func(ctx context.Context) (string, error)

type Client struct {
	apiBase string
	token   TokenFunc
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(cfg config.NestConfig, token TokenFunc, logger *slog.Logger) *Client {
	if token == nil {
		staticToken := cfg.AccessToken
		token = func(context.Context) (string, error) { return staticToken, nil }
	}
	return &Client{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// manifest is the subset of the DASH MPD document the feed exposes events
// through: one Period per event, carrying its start and duration.
type manifest struct {
	XMLName xml.Name         `xml:"MPD"`
	Periods []manifestPeriod `xml:"Period"`
}

type manifestPeriod struct {
	ProgramDateTime string `xml:"programDateTime,attr"`
	Duration        string `xml:"duration,attr"`
}

func (c *Client) FetchEvents(ctx context.Context, dev model.DeviceDescriptor, start, end time.Time) ([]model.CameraEvent, error) {
	params := url.Values{}
	params.Set("start_time", formatAPITime(start))
	params.Set("end_time", formatAPITime(end))
	params.Set("types", "4")
	params.Set("variant", "2")

	body, err := c.get(ctx, c.apiBase+eventsPath+dev.InternalID, params)
	if err != nil {
		return nil, err
	}

	var m manifest
	if err := xml.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %v", source.ErrSourceUnavailable, err)
	}

	events := make([]model.CameraEvent, 0, len(m.Periods))
	for _, p := range m.Periods {
		ev, err := eventFromPeriod(p, dev.InternalID)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("skipping unparsable manifest period", "device_id", dev.InternalID, "err", err)
			}
			continue
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartTime.Before(events[j].StartTime) })
	return events, nil
}

func (c *Client) DownloadClip(ctx context.Context, dev model.DeviceDescriptor, start, end time.Time) ([]byte, error) {
	params := url.Values{}
	params.Set("start_time", strconv.FormatInt(start.UnixMilli(), 10))
	params.Set("end_time", strconv.FormatInt(end.UnixMilli(), 10))
	return c.get(ctx, c.apiBase+clipPath+dev.InternalID, params)
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: token: %v", source.ErrSourceUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrSourceUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d from %s", source.ErrSourceUnavailable, resp.StatusCode, rawURL)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", source.ErrSourceUnavailable, err)
	}
	return body, nil
}

func eventFromPeriod(p manifestPeriod, deviceID string) (model.CameraEvent, error) {
	start, err := time.Parse(time.RFC3339Nano, p.ProgramDateTime)
	if err != nil {
		return model.CameraEvent{}, fmt.Errorf("parse programDateTime %q: %w", p.ProgramDateTime, err)
	}
	dur, err := parseISODuration(p.Duration)
	if err != nil {
		return model.CameraEvent{}, fmt.Errorf("parse duration %q: %w", p.Duration, err)
	}
	if dur > maxEventDuration {
		dur = maxEventDuration
	}
	if dur < 0 {
		dur = 0
	}
	start = start.UTC()
	return model.CameraEvent{
		DeviceID:  deviceID,
		StartTime: start,
		EndTime:   start.Add(dur),
		Origin:    model.OriginPoll,
	}, nil
}

// formatAPITime renders the millisecond-precision UTC form the events
// endpoint expects, e.g. 2026-08-22T19:32:25.250Z.
func formatAPITime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// parseISODuration handles the PT…H…M…S subset the manifest uses, with
// fractional seconds.
func parseISODuration(s string) (time.Duration, error) {
	orig := s
	s = strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "PT") {
		return 0, fmt.Errorf("unsupported duration: %q", orig)
	}
	s = s[2:]
	if s == "" {
		return 0, fmt.Errorf("unsupported duration: %q", orig)
	}
	var total time.Duration
	for s != "" {
		i := 0
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
			i++
		}
		if i == 0 || i == len(s) {
			return 0, fmt.Errorf("unsupported duration: %q", orig)
		}
		value, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, fmt.Errorf("unsupported duration: %q", orig)
		}
		switch s[i] {
		case 'H':
			total += time.Duration(value * float64(time.Hour))
		case 'M':
			total += time.Duration(value * float64(time.Minute))
		case 'S':
			total += time.Duration(value * float64(time.Second))
		default:
			return 0, fmt.Errorf("unsupported duration: %q", orig)
		}
		s = s[i+1:]
	}
	return total, nil
}
