package tonapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"

	"merge-verse-backend/internal/common/config"
)

const baseURL = "https://tonapi.io/v2"

type Client struct {
	httpClient *http.Client
	apiKey     string
	wallet     string
}

// Transaction представляет входящий перевод на кошелек проекта
type Transaction struct {
	Hash    string
	Amount  decimal.Decimal
	Comment string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		apiKey: cfg.Payment.TonAPIKey,
		wallet: cfg.Payment.TonWalletAddress,
	}
}

// GetTONPrice возвращает текущий курс TON в долларах
func (c *Client) GetTONPrice(ctx context.Context) (decimal.Decimal, error) {
	var result struct {
		Rates struct {
			TON struct {
				Prices struct {
					USD float64 `json:"USD"`
				} `json:"prices"`
			} `json:"TON"`
		} `json:"rates"`
	}

	if err := c.get(ctx, "/rates?tokens=ton&currencies=usd", &result); err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch TON price: %w", err)
	}

	price := decimal.NewFromFloat(result.Rates.TON.Prices.USD)
	if price.IsZero() {
		return decimal.Zero, fmt.Errorf("tonapi returned zero price")
	}

	return price, nil
}

// GetIncomingTransactions возвращает последние входящие переводы на кошелек
// проекта. Сумма конвертируется из нанотонов.
func (c *Client) GetIncomingTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	var result struct {
		Events []struct {
			EventID string `json:"event_id"`
			Actions []struct {
				Type        string `json:"type"`
				TonTransfer *struct {
					Amount    int64  `json:"amount"`
					Comment   string `json:"comment"`
					Recipient struct {
						Address string `json:"address"`
					} `json:"recipient"`
				} `json:"TonTransfer"`
			} `json:"actions"`
		} `json:"events"`
	}

	path := fmt.Sprintf("/accounts/%s/events?limit=%d", c.wallet, limit)
	if err := c.get(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	var txs []Transaction
	for _, event := range result.Events {
		for _, action := range event.Actions {
			if action.Type != "TonTransfer" || action.TonTransfer == nil {
				continue
			}
			txs = append(txs, Transaction{
				Hash:    event.EventID,
				Amount:  decimal.New(action.TonTransfer.Amount, -9),
				Comment: action.TonTransfer.Comment,
			})
		}
	}

	return txs, nil
}

// ValidateAddress проверяет синтаксис TON-адреса
func ValidateAddress(raw string) error {
	if _, err := address.ParseAddr(raw); err != nil {
		return fmt.Errorf("invalid TON address: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tonapi error: status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
