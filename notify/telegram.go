package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pricehound/models"
	"pricehound/utils"
)

// TelegramTransport delivers alerts through the Telegram Bot API.
type TelegramTransport struct {
	apiBase string
	token   string
	client  *http.Client
	retry   *utils.RetryConfig
	logger  *utils.Logger
}

// NewTelegramTransport creates a transport. Requests that time out are retried up to three
// times with a fixed two second pause; other failures are returned immediately.
func NewTelegramTransport(apiBase, token string, timeout time.Duration, logger *utils.Logger) *TelegramTransport {
	return &TelegramTransport{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		retry: &utils.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			RetryOn:     []utils.Kind{utils.KindTimeout},
			Logger:      logger,
		},
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts the photo (when the alert has one) and then the message to chatID.
func (t *TelegramTransport) Send(ctx context.Context, chatID string, a *models.PriceAlert) error {
	if a.ImageURL != "" {
		err := t.call(ctx, "sendPhoto", map[string]any{
			"chat_id": chatID,
			"photo":   a.ImageURL,
		})
		if err != nil {
			t.logger.Warn("[telegram] photo for %s failed: %v", chatID, err)
		}
	}

	return t.call(ctx, "sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       ChatMessage(a),
		"parse_mode": "MarkdownV2",
	})
}

func (t *TelegramTransport) call(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.token, method)

	return t.retry.Do(ctx, "telegram "+method, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return utils.E(utils.KindMalformed, method, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			kind := utils.KindOf(err)
			if kind == utils.KindUnknown {
				kind = utils.KindTransport
			}
			return utils.E(kind, method, err)
		}
		defer resp.Body.Close()

		var tr telegramResponse
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return utils.E(utils.KindTransport, method, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err))
		}
		if !tr.OK {
			return utils.E(utils.KindPermanent, method, errors.New(tr.Description))
		}
		return nil
	})
}
