package nowpayments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"merge-verse-backend/internal/common/config"
)

const baseURL = "https://api.nowpayments.io/v1"

// Комиссия платежного провайдера: при пополнении пользователь получает
// на 1% меньше, при выводе сумма увеличивается на ~6%.
var (
	depositRate  = decimal.RequireFromString("0.99")
	withdrawRate = decimal.RequireFromString("0.94")
)

type Client struct {
	httpClient  *http.Client
	apiKey      string
	ipnKey      string
	successURL  string
	cancelURL   string
	callbackURL string
}

// Invoice представляет счет на оплату
type Invoice struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	InvoiceURL string `json:"invoice_url"`
}

// IPNPayload представляет уведомление о статусе платежа
type IPNPayload struct {
	PaymentID     json.Number `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	OrderID       string      `json:"order_id"`
	PriceAmount   json.Number `json:"price_amount"`
	PriceCurrency string      `json:"price_currency"`
}

// Payout представляет заявку на вывод средств
type Payout struct {
	ID          string `json:"id"`
	BatchStatus string `json:"status"`
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		apiKey:      cfg.Payment.NowPaymentsAPIKey,
		ipnKey:      cfg.Payment.NowPaymentsIPNKey,
		successURL:  cfg.Payment.SuccessURL,
		cancelURL:   cfg.Payment.CancelURL,
		callbackURL: cfg.Payment.CallbackURL,
	}
}

// CreateInvoice создает счет на пополнение баланса. Сумма счета увеличивается
// так, чтобы после комиссии провайдера пользователь получил ровно amount.
func (c *Client) CreateInvoice(ctx context.Context, orderID string, amount decimal.Decimal) (*Invoice, error) {
	gross := amount.Div(depositRate).RoundCeil(6)

	body := map[string]interface{}{
		"price_amount":     gross,
		"price_currency":   "ton",
		"pay_currency":     "ton",
		"order_id":         orderID,
		"ipn_callback_url": c.callbackURL,
		"success_url":      c.successURL,
		"cancel_url":       c.cancelURL,
	}

	var invoice Invoice
	if err := c.post(ctx, "/invoice", body, &invoice); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	return &invoice, nil
}

// CreatePayout создает выплату на TON-адрес. Запрошенная сумма увеличивается
// на комиссию провайдера, чтобы адресат получил ровно amount.
func (c *Client) CreatePayout(ctx context.Context, address string, amount decimal.Decimal) (*Payout, error) {
	gross := amount.Div(withdrawRate).RoundCeil(6)

	body := map[string]interface{}{
		"withdrawals": []map[string]interface{}{
			{
				"address":  address,
				"currency": "ton",
				"amount":   gross,
			},
		},
	}

	var payout Payout
	if err := c.post(ctx, "/payout", body, &payout); err != nil {
		return nil, fmt.Errorf("failed to create payout: %w", err)
	}

	return &payout, nil
}

// ValidateAddress проверяет адрес на стороне провайдера перед выводом
func (c *Client) ValidateAddress(ctx context.Context, address string) error {
	body := map[string]interface{}{
		"address":  address,
		"currency": "ton",
	}

	if err := c.post(ctx, "/payout/validate-address", body, nil); err != nil {
		return fmt.Errorf("failed to validate address: %w", err)
	}

	return nil
}

// VerifyIPN проверяет подпись IPN-уведомления: HMAC-SHA512 от JSON тела
// с отсортированными по алфавиту ключами.
func (c *Client) VerifyIPN(body []byte, signature string) bool {
	if c.ipnKey == "" || signature == "" {
		return false
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}

	// json.Marshal для map сортирует ключи
	sorted, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	mac := hmac.New(sha512.New, []byte(c.ipnKey))
	mac.Write(sorted)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("nowpayments API error: status %d: %s", resp.StatusCode, string(respBody))
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// ParseIPN разбирает тело уведомления после проверки подписи
func ParseIPN(body []byte) (*IPNPayload, error) {
	var payload IPNPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse IPN payload: %w", err)
	}
	return &payload, nil
}
