package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram delivers clips via the Bot API sendVideo method.
type Telegram struct {
	botToken            string
	chatID              string
	disableNotification bool
	apiBase             string
	client              *http.Client
	logger              *slog.Logger
}

func NewTelegram(botToken, chatID string, disableNotification bool, logger *slog.Logger) *Telegram {
	return &Telegram{
		botToken:            botToken,
		chatID:              chatID,
		disableNotification: disableNotification,
		apiBase:             telegramAPIBase,
		client:              &http.Client{Timeout: 2 * time.Minute},
		logger:              logger,
	}
}

func (t *Telegram) Deliver(ctx context.Context, clip []byte, caption string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", t.chatID); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if err := w.WriteField("caption", caption); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if err := w.WriteField("disable_notification", strconv.FormatBool(t.disableNotification)); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	part, err := w.CreateFormFile("video", "clip.mp4")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if _, err := part.Write(clip); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	url := fmt.Sprintf("%s/bot%s/sendVideo", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode, truncate(payload, 200))
	}
	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(payload, &apiResp); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrDeliveryFailed, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("%w: %s", ErrDeliveryFailed, apiResp.Description)
	}
	if t.logger != nil {
		t.logger.Debug("clip delivered", "caption", caption, "clip_bytes", len(clip))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
