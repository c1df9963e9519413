package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// LogSink writes notifications to the application log instead of a chat
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, n Notification) error {
	s.logger.InfoContext(ctx, "order notification",
		"order_id", n.OrderID,
		"event_id", n.EventID,
		"text", n.Text,
	)
	return nil
}

// TelegramSink posts notifications straight to the Telegram Bot API
type TelegramSink struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
}

// NewTelegramSink creates a sink for the given bot token and chat.
// baseURL is normally https://api.telegram.org.
func NewTelegramSink(baseURL, token, chatID string) *TelegramSink {
	return &TelegramSink{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		chatID:  chatID,
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (s *TelegramSink) Send(ctx context.Context, n Notification) error {
	return s.SendText(ctx, n.Text)
}

// SendText delivers a plain message to the configured chat
func (s *TelegramSink) SendText(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	resp, err := postJSON(ctx, s.client, url, sendMessageRequest{ChatID: s.chatID, Text: text})
	if err != nil {
		// transport errors carry the request URL, which embeds the bot token
		return fmt.Errorf("telegram sendMessage: %s", s.redact(err.Error()))
	}
	defer resp.Body.Close()

	var body telegramResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return fmt.Errorf("telegram sendMessage: unexpected response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !body.OK {
		return fmt.Errorf("telegram sendMessage: status %d: %s", resp.StatusCode, body.Description)
	}
	return nil
}

func (s *TelegramSink) redact(msg string) string {
	if s.token == "" {
		return msg
	}
	return strings.ReplaceAll(msg, s.token, "<token>")
}

// RelaySink forwards notifications to the bot relay service (cmd/bot)
type RelaySink struct {
	client *http.Client
	url    string
}

func NewRelaySink(url string) *RelaySink {
	return &RelaySink{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
	}
}

// RelayMessage is the body accepted by the relay's /send_order endpoint
type RelayMessage struct {
	Message string `json:"message"`
}

func (s *RelaySink) Send(ctx context.Context, n Notification) error {
	resp, err := postJSON(ctx, s.client, s.url, RelayMessage{Message: n.Text})
	if err != nil {
		return fmt.Errorf("bot relay: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bot relay: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
