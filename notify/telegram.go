package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramURL = "https://api.telegram.org"

// Telegram sends messages through the Bot API.
type Telegram struct {
	Token   string
	ChatID  string
	BaseURL string
	Client  *http.Client
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		Token:   token,
		ChatID:  chatID,
		BaseURL: telegramURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message.
func (t *Telegram) Send(ctx context.Context, message string) error {
	if t.Token == "" || t.ChatID == "" {
		return fmt.Errorf("telegram: token and chat id are required")
	}
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.BaseURL, "/"), t.Token)
	form := url.Values{
		"chat_id": {t.ChatID},
		"text":    {message},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send failed: %s", resp.Status)
	}
	return nil
}

func (t *Telegram) NotifyEntry(ctx context.Context, e Entry) {
	t.deliver(ctx, "🚀 "+e.String())
}

func (t *Telegram) NotifyWarning(ctx context.Context, text string) {
	t.deliver(ctx, "⚠️ "+text)
}

func (t *Telegram) deliver(ctx context.Context, text string) {
	if err := t.Send(ctx, text); err != nil {
		slog.Warn("notification not delivered", slog.String("err", err.Error()))
	}
}
