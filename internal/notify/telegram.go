package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const sendTimeout = 10 * time.Second

// Telegram delivers notifications through the Bot API's sendMessage call
type Telegram struct {
	Token  string
	Client *http.Client
}

func NewTelegram(token string) *Telegram {
	return &Telegram{
		Token:  token,
		Client: &http.Client{Timeout: sendTimeout},
	}
}

// Notify formats and sends the event message in the background. Errors
// are logged and swallowed, never retried
func (t *Telegram) Notify(chatID int64, event Event, info EventInfo) {
	if chatID == 0 {
		return
	}

	text := message(event, info)
	if text == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := t.Send(ctx, chatID, text); err != nil {
			zap.L().Error("Failed to send notification",
				zap.Int64("chatID", chatID),
				zap.String("event", string(event)),
				zap.Error(err),
			)
		}
	}()
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts one message to a chat and waits for the API response
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call telegram API, %w", err)
	}
	defer resp.Body.Close()

	var out sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode telegram response, %w", err)
	}

	if !out.OK {
		return fmt.Errorf("telegram API error: %s", out.Description)
	}

	return nil
}

// Nop is used when the telegram side-channel is disabled
type Nop struct{}

func (Nop) Notify(int64, Event, EventInfo) {}

func (Nop) Send(context.Context, int64, string) error { return nil }
