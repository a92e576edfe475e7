package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Sign - hex(HMAC_SHA256(payload, secret))
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyPaymentSignature проверяет подпись checkout: HMAC(order_id|payment_id, key_secret)
func VerifyPaymentSignature(orderID, paymentID, signature, keySecret string) bool {
	return verify([]byte(orderID+"|"+paymentID), signature, keySecret)
}

// VerifyWebhookSignature проверяет X-Razorpay-Signature: HMAC(body, webhook_secret)
func VerifyWebhookSignature(body []byte, signature, webhookSecret string) bool {
	return verify(body, signature, webhookSecret)
}

const EventPaymentCaptured = "payment.captured"

// WebhookEvent - нужная часть тела вебхука
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("parse webhook: %w", err)
	}
	return &ev, nil
}
