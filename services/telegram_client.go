// services/telegram_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TelegramClient is the slice of the Bot API the system depends on. The
// delivery worker, the channel gate and the bot worker all take this
// interface so tests can substitute a fake; any API error is treated
// uniformly by callers (delivery failure / not a member).
type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyMarkup any) error
	SendPhoto(ctx context.Context, chatID int64, media string, caption string, replyMarkup any) error
	SendVideo(ctx context.Context, chatID int64, media string, caption string, replyMarkup any) error
	GetChatMember(ctx context.Context, chatID string, userID int64) (string, error)
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error)
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
	ApproveChatJoinRequest(ctx context.Context, chatID int64, userID int64) error
}

// Update is one long-poll event from getUpdates.
type Update struct {
	UpdateID        int64            `json:"update_id"`
	Message         *IncomingMessage `json:"message,omitempty"`
	CallbackQuery   *CallbackQuery   `json:"callback_query,omitempty"`
	ChatJoinRequest *ChatJoinRequest `json:"chat_join_request,omitempty"`
}

type IncomingMessage struct {
	MessageID int64         `json:"message_id"`
	From      *TelegramUser `json:"from,omitempty"`
	Chat      TelegramChat  `json:"chat"`
	Text      string        `json:"text,omitempty"`
}

type TelegramUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type TelegramChat struct {
	ID int64 `json:"id"`
}

type CallbackQuery struct {
	ID      string           `json:"id"`
	From    TelegramUser     `json:"from"`
	Data    string           `json:"data,omitempty"`
	Message *IncomingMessage `json:"message,omitempty"`
}

type ChatJoinRequest struct {
	Chat TelegramChat `json:"chat"`
	From TelegramUser `json:"from"`
}

// InlineButton is a single URL button; helpers below build the reply_markup
// shapes the Bot API expects.
type InlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// InlineURLKeyboard builds an inline keyboard of one URL button per row.
func InlineURLKeyboard(buttons ...InlineButton) map[string]any {
	rows := make([][]InlineButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineButton{b})
	}
	return map[string]any{"inline_keyboard": rows}
}

// BotAPI is the HTTP implementation of TelegramClient against
// api.telegram.org.
type BotAPI struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

func NewBotAPI(token string) *BotAPI {
	return &BotAPI{
		Token:   token,
		BaseURL: "https://api.telegram.org",
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func (c *BotAPI) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s call failed: %w", method, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&api); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !api.OK {
		return fmt.Errorf("telegram %s rejected: %s", method, api.Description)
	}
	if result != nil && api.Result != nil {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

func (c *BotAPI) SendMessage(ctx context.Context, chatID int64, text string, replyMarkup any) error {
	payload := map[string]any{"chat_id": chatID, "text": text}
	if replyMarkup != nil {
		payload["reply_markup"] = replyMarkup
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

func (c *BotAPI) SendPhoto(ctx context.Context, chatID int64, media string, caption string, replyMarkup any) error {
	payload := map[string]any{"chat_id": chatID, "photo": media}
	if caption != "" {
		payload["caption"] = caption
	}
	if replyMarkup != nil {
		payload["reply_markup"] = replyMarkup
	}
	return c.call(ctx, "sendPhoto", payload, nil)
}

func (c *BotAPI) SendVideo(ctx context.Context, chatID int64, media string, caption string, replyMarkup any) error {
	payload := map[string]any{"chat_id": chatID, "video": media}
	if caption != "" {
		payload["caption"] = caption
	}
	if replyMarkup != nil {
		payload["reply_markup"] = replyMarkup
	}
	return c.call(ctx, "sendVideo", payload, nil)
}

// GetChatMember returns the membership status string (member, administrator,
// creator, left, kicked, ...).
func (c *BotAPI) GetChatMember(ctx context.Context, chatID string, userID int64) (string, error) {
	var member struct {
		Status string `json:"status"`
	}
	payload := map[string]any{"chat_id": chatID, "user_id": userID}
	if err := c.call(ctx, "getChatMember", payload, &member); err != nil {
		return "", err
	}
	return member.Status, nil
}

func (c *BotAPI) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	var updates []Update
	payload := map[string]any{
		"offset":  offset,
		"timeout": timeoutSec,
		"allowed_updates": []string{
			"message", "callback_query", "chat_join_request",
		},
	}
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *BotAPI) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": callbackID}, nil)
}

func (c *BotAPI) ApproveChatJoinRequest(ctx context.Context, chatID int64, userID int64) error {
	payload := map[string]any{"chat_id": chatID, "user_id": userID}
	return c.call(ctx, "approveChatJoinRequest", payload, nil)
}
