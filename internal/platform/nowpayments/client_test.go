package nowpayments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"merge-verse-backend/internal/common/config"
)

func signedBody(t *testing.T, key string, payload map[string]interface{}) ([]byte, string) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	mac := hmac.New(sha512.New, []byte(key))
	mac.Write(body)
	return body, hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyIPN(t *testing.T) {
	cfg := &config.Config{}
	cfg.Payment.NowPaymentsIPNKey = "test-ipn-key"
	client := NewClient(cfg)

	payload := map[string]interface{}{
		"payment_id":     123456,
		"payment_status": "finished",
		"order_id":       "pay-1",
	}

	t.Run("accepts a valid signature", func(t *testing.T) {
		body, signature := signedBody(t, "test-ipn-key", payload)
		require.True(t, client.VerifyIPN(body, signature))
	})

	t.Run("rejects a wrong key", func(t *testing.T) {
		body, signature := signedBody(t, "other-key", payload)
		require.False(t, client.VerifyIPN(body, signature))
	})

	t.Run("rejects a tampered body", func(t *testing.T) {
		_, signature := signedBody(t, "test-ipn-key", payload)
		tampered := map[string]interface{}{
			"payment_id":     123456,
			"payment_status": "finished",
			"order_id":       "pay-2",
		}
		body, err := json.Marshal(tampered)
		require.NoError(t, err)
		require.False(t, client.VerifyIPN(body, signature))
	})

	t.Run("rejects an empty signature", func(t *testing.T) {
		body, _ := signedBody(t, "test-ipn-key", payload)
		require.False(t, client.VerifyIPN(body, ""))
	})

	t.Run("rejects when no key is configured", func(t *testing.T) {
		unconfigured := NewClient(&config.Config{})
		body, signature := signedBody(t, "test-ipn-key", payload)
		require.False(t, unconfigured.VerifyIPN(body, signature))
	})
}

func TestParseIPN(t *testing.T) {
	body := []byte(`{"payment_id":123456,"payment_status":"finished","order_id":"pay-1","price_amount":"12.5","price_currency":"usd"}`)

	payload, err := ParseIPN(body)
	require.NoError(t, err)
	require.Equal(t, "123456", payload.PaymentID.String())
	require.Equal(t, "finished", payload.PaymentStatus)
	require.Equal(t, "pay-1", payload.OrderID)

	_, err = ParseIPN([]byte("not json"))
	require.Error(t, err)
}
