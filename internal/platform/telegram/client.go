package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"merge-verse-backend/internal/common/config"
)

// Telegram ограничивает ботов примерно 30 сообщениями в секунду
const messagesPerSecond = 25

type Client struct {
	httpClient *http.Client
	token      string
	webAppURL  string
	limiter    *rate.Limiter
}

// RPSError представляет ошибку превышения лимита запросов
type RPSError struct {
	Msg string
}

func (e *RPSError) Error() string {
	return e.Msg
}

// Response представляет ответ от Telegram API
type Response struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

type inlineKeyboardButton struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		token:     cfg.Telegram.BotToken,
		webAppURL: cfg.Telegram.WebAppURL,
		limiter:   rate.NewLimiter(rate.Limit(messagesPerSecond), messagesPerSecond),
	}
}

// SendMessage отправляет текстовое сообщение пользователю
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := url.Values{
		"chat_id":    {fmt.Sprintf("%d", chatID)},
		"text":       {text},
		"parse_mode": {"HTML"},
	}
	return c.send(ctx, params)
}

// SendMessageWithWebApp отправляет сообщение с кнопкой, открывающей мини-апп
func (c *Client) SendMessageWithWebApp(ctx context.Context, chatID int64, text, buttonText string) error {
	markup := inlineKeyboardMarkup{
		InlineKeyboard: [][]inlineKeyboardButton{
			{{Text: buttonText, URL: c.webAppURL}},
		},
	}

	markupJSON, err := json.Marshal(markup)
	if err != nil {
		return fmt.Errorf("failed to marshal reply markup: %w", err)
	}

	params := url.Values{
		"chat_id":      {fmt.Sprintf("%d", chatID)},
		"text":         {text},
		"parse_mode":   {"HTML"},
		"reply_markup": {string(markupJSON)},
	}
	return c.send(ctx, params)
}

// NotifyGiveawayWin уведомляет победителя розыгрыша и просит выбрать вариант приза
func (c *Client) NotifyGiveawayWin(ctx context.Context, userID int64, giftName string) error {
	text := fmt.Sprintf(
		"🎉 Поздравляем! Вы выиграли <b>%s</b> в ежемесячном розыгрыше!\n\n"+
			"Откройте приложение, чтобы забрать приз или выбрать компенсацию.",
		giftName,
	)
	return c.SendMessageWithWebApp(ctx, userID, text, "Забрать приз")
}

// NotifyGiveawayRefund уведомляет участника об отмене розыгрыша
func (c *Client) NotifyGiveawayRefund(ctx context.Context, userID int64, giftName string) error {
	text := fmt.Sprintf(
		"Розыгрыш <b>%s</b> не собрал достаточно участников и был отменен.\n"+
			"Ваш билет возвращен на баланс.",
		giftName,
	)
	return c.SendMessage(ctx, userID, text)
}

// NotifyAuctionWin уведомляет победителя аукциона
func (c *Client) NotifyAuctionWin(ctx context.Context, userID int64, itemName string) error {
	text := fmt.Sprintf(
		"🏆 Ваша ставка победила! Предмет <b>%s</b> уже в вашей коллекции.",
		itemName,
	)
	return c.SendMessageWithWebApp(ctx, userID, text, "Открыть коллекцию")
}

// NotifyAuctionSold уведомляет продавца о завершении аукциона
func (c *Client) NotifyAuctionSold(ctx context.Context, userID int64, itemName, amount string) error {
	text := fmt.Sprintf(
		"💰 Ваш лот <b>%s</b> продан за %s TON. Средства зачислены на баланс.",
		itemName, amount,
	)
	return c.SendMessage(ctx, userID, text)
}

// NotifyOutbid уведомляет перебитого лидера ставки
func (c *Client) NotifyOutbid(ctx context.Context, userID int64, itemName string) error {
	text := fmt.Sprintf(
		"⚡ Вашу ставку на <b>%s</b> перебили. Ставка и комиссия возвращены на баланс.",
		itemName,
	)
	return c.SendMessageWithWebApp(ctx, userID, text, "Перебить ставку")
}

func (c *Client) send(ctx context.Context, params url.Values) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", c.token)

	var response Response
	if err := c.makeRequest(ctx, http.MethodPost, endpoint, params, &response); err != nil {
		return err
	}

	if !response.Ok {
		if strings.Contains(response.Description, "Too Many Requests") {
			return &RPSError{Msg: "rate limit exceeded"}
		}
		return fmt.Errorf("telegram API error: %s", response.Description)
	}

	return nil
}

func (c *Client) makeRequest(ctx context.Context, method, endpoint string, data url.Values, result interface{}) error {
	var req *http.Request
	var err error

	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(data.Encode()))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		if len(data) > 0 {
			endpoint = fmt.Sprintf("%s?%s", endpoint, data.Encode())
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RPSError{Msg: "too many requests"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
